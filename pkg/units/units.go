package units

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"dualswap/pkg/types"
)

// Rounding selects how fractional base units are dropped
type Rounding int

const (
	// Truncate rounds toward zero (wei conversion)
	Truncate Rounding = iota
	// Floor rounds toward negative infinity (lamport conversion)
	Floor
)

// MaxDecimals bounds the token decimals we accept from catalogs and storage
const MaxDecimals = 36

// plainAmount matches unsigned fixed-point numbers; exponent notation is rejected
var plainAmount = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseAmount parses a human-unit amount and requires it to be positive
func ParseAmount(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", types.ErrValidation)
	}

	if !plainAmount.MatchString(amount) {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", types.ErrValidation, amount)
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", types.ErrValidation, amount)
	}

	if !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than 0", types.ErrValidation)
	}

	return value, nil
}

// ToBaseUnits converts a human-unit amount into integer base units
func ToBaseUnits(amount string, decimals int, mode Rounding) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: unsupported token decimals %d", types.ErrValidation, decimals)
	}

	value, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := value.Shift(int32(decimals))
	switch mode {
	case Floor:
		scaled = scaled.Floor()
	default:
		scaled = scaled.Truncate(0)
	}

	base := scaled.BigInt()
	if base.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount %s is below the smallest unit of the token", types.ErrValidation, value.String())
	}

	return base, nil
}

// ForNetwork converts an amount using the rounding rule of the network
func ForNetwork(network types.NetworkMode, amount string, decimals int) (*big.Int, error) {
	if network == types.NetworkSolana {
		return ToBaseUnits(amount, decimals, Floor)
	}
	return ToBaseUnits(amount, decimals, Truncate)
}

// FromBaseUnits converts an integer base-unit string back into human units
func FromBaseUnits(base string, decimals int) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(base))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid base unit amount %q: %w", base, err)
	}
	return value.Shift(-int32(decimals)), nil
}

// FormatEVM renders an EVM base-unit amount as a fixed-point value scaled by decimals
func FormatEVM(base string, decimals int) string {
	value, err := FromBaseUnits(base, decimals)
	if err != nil {
		return base
	}
	return value.String()
}

// FormatSolana renders a Solana base-unit amount with six fractional digits
func FormatSolana(base string, decimals int) string {
	value, err := FromBaseUnits(base, decimals)
	if err != nil {
		return base
	}
	return value.StringFixed(6)
}

// FormatPriceImpact renders a price-impact fraction as a percentage with two fractional digits
func FormatPriceImpact(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).StringFixed(2)
}

// SlippageBps converts a slippage percentage into basis points, rounding half away from zero
func SlippageBps(percent float64) (uint16, error) {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 {
		return 0, fmt.Errorf("%w: slippage must be a non-negative number", types.ErrValidation)
	}

	bps := decimal.NewFromFloat(percent).Mul(decimal.NewFromInt(100)).Round(0)
	if bps.GreaterThan(decimal.NewFromInt(math.MaxUint16)) {
		return 0, fmt.Errorf("%w: slippage %.2f%% is too large", types.ErrValidation, percent)
	}

	return uint16(bps.IntPart()), nil
}

// FormatSlippage renders a slippage percentage in its shortest exact form
func FormatSlippage(percent float64) string {
	return decimal.NewFromFloat(percent).String()
}
