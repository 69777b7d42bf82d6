package units

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualswap/pkg/types"
)

func TestToBaseUnits_EVMScenario(t *testing.T) {
	base, err := ForNetwork(types.NetworkEVM, "1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", base.String())
}

func TestToBaseUnits_SolanaScenario(t *testing.T) {
	base, err := ForNetwork(types.NetworkSolana, "2", 6)
	require.NoError(t, err)
	assert.Equal(t, "2000000", base.String())

	bps, err := SlippageBps(1.0)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), bps)
}

func TestToBaseUnits_DropsExtraPrecision(t *testing.T) {
	base, err := ToBaseUnits("1.123456789", 6, Truncate)
	require.NoError(t, err)
	assert.Equal(t, "1123456", base.String())

	base, err = ToBaseUnits("1.999999999", 6, Floor)
	require.NoError(t, err)
	assert.Equal(t, "1999999", base.String())
}

func TestToBaseUnits_LargeValuesKeepPrecision(t *testing.T) {
	base, err := ToBaseUnits("123456789012345678.123456789012345678", 18, Truncate)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678123456789012345678", base.String())
}

func TestToBaseUnits_Invalid(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals int
	}{
		{"empty", "", 18},
		{"blank", "   ", 18},
		{"garbage", "abc", 18},
		{"zero", "0", 18},
		{"negative", "-1", 18},
		{"below smallest unit", "0.0000001", 6},
		{"negative decimals", "1", -1},
		{"exponent", "1e5", 18},
		{"huge exponent", "1e2000000000", 18},
		{"tiny exponent", "1e-2000000000", 18},
		{"signed", "+1", 18},
		{"lone dot", ".", 18},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ToBaseUnits(tc.amount, tc.decimals, Truncate)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrValidation))
		})
	}
}

func TestParseAmount_PlainDecimals(t *testing.T) {
	for amount, want := range map[string]string{"1": "1", "1.": "1", ".5": "0.5", " 0.25 ": "0.25"} {
		value, err := ParseAmount(amount)
		require.NoError(t, err, amount)
		assert.Equal(t, want, value.String(), amount)
	}
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	amounts := []string{"1", "0.5", "1.5", "3.14159265358979323846", "1000000.000001", "0.000000000000000001", "42"}

	for _, amount := range amounts {
		for d := 0; d <= 24; d++ {
			for _, mode := range []Rounding{Truncate, Floor} {
				base, err := ToBaseUnits(amount, d, mode)
				if err != nil {
					// amounts below one base unit are rejected, nothing to round trip
					require.ErrorIs(t, err, types.ErrValidation)
					continue
				}

				back, err := FromBaseUnits(base.String(), d)
				require.NoError(t, err)

				original := decimal.RequireFromString(amount)
				oneUnit := decimal.New(1, -int32(d))
				diff := original.Sub(back).Abs()
				assert.True(t, diff.LessThan(oneUnit), fmt.Sprintf("amount=%s decimals=%d diff=%s", amount, d, diff))
			}
		}
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.5", FormatEVM("1500000000000000000", 18))
	assert.Equal(t, "2.000000", FormatSolana("2000000", 6))
	assert.Equal(t, "0.123457", FormatSolana("123456789", 9))
	assert.Equal(t, "1.23", FormatPriceImpact(decimal.RequireFromString("0.012345")))
	assert.Equal(t, "0.00", FormatPriceImpact(decimal.Zero))
	assert.Equal(t, "not-a-number", FormatEVM("not-a-number", 18))
}

func TestSlippageBps(t *testing.T) {
	bps, err := SlippageBps(0.5)
	require.NoError(t, err)
	assert.Equal(t, uint16(50), bps)

	bps, err = SlippageBps(0.125)
	require.NoError(t, err)
	assert.Equal(t, uint16(13), bps)

	_, err = SlippageBps(-1)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = SlippageBps(1000)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestFormatSlippage(t *testing.T) {
	assert.Equal(t, "0.5", FormatSlippage(0.5))
	assert.Equal(t, "1", FormatSlippage(1))
	assert.Equal(t, "0.1", FormatSlippage(0.1))
}
