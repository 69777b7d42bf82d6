package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultSlippagePercent is used when no valid slippage has been persisted
	DefaultSlippagePercent = 0.5

	// DefaultEVMChainID is the primary EVM chain (Ethereum mainnet)
	DefaultEVMChainID int64 = 1
)

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// TokenDescriptor describes a token from a catalog
type TokenDescriptor struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// TokenSide picks the "from" or "to" slot of a pair
type TokenSide int

const (
	SideFrom TokenSide = iota
	SideTo
)

func (s TokenSide) String() string {
	if s == SideTo {
		return "to"
	}
	return "from"
}

// TokenPair holds the selected tokens for one network
type TokenPair struct {
	From *TokenDescriptor
	To   *TokenDescriptor
}

// Get returns the token in the given slot
func (p TokenPair) Get(side TokenSide) *TokenDescriptor {
	if side == SideTo {
		return p.To
	}
	return p.From
}

// SwapPreferences is the persisted part of a swap session
type SwapPreferences struct {
	Network         NetworkMode
	SlippagePercent float64
	EVM             TokenPair
	Solana          TokenPair
}

// DefaultPreferences returns the preferences of a fresh session
func DefaultPreferences() SwapPreferences {
	return SwapPreferences{
		Network:         NetworkEVM,
		SlippagePercent: DefaultSlippagePercent,
	}
}

// Pair returns the token pair selected for a network
func (p SwapPreferences) Pair(network NetworkMode) TokenPair {
	if network == NetworkSolana {
		return p.Solana
	}
	return p.EVM
}

// SetToken stores a token in one slot of a network's pair
func (p *SwapPreferences) SetToken(network NetworkMode, side TokenSide, token *TokenDescriptor) {
	pair := &p.EVM
	if network == NetworkSolana {
		pair = &p.Solana
	}
	if side == SideTo {
		pair.To = token
	} else {
		pair.From = token
	}
}

// TradeParams is the selection a quote or swap is made for
type TradeParams struct {
	Network         NetworkMode
	From            *TokenDescriptor
	To              *TokenDescriptor
	Amount          string
	SlippagePercent float64
}

// Complete reports whether both tokens and an amount are selected
func (p TradeParams) Complete() bool {
	return p.From != nil && p.To != nil && strings.TrimSpace(p.Amount) != ""
}

// RouteLeg is one hop of a Solana route plan
type RouteLeg struct {
	Label     string
	InAmount  string
	OutAmount string
	Percent   int
}

// EVMQuote is the EVM variant of a quote result, amounts in base units
type EVMQuote struct {
	FromAmount   string
	ToAmount     string
	EstimatedGas uint64
}

// SolanaQuote is the Solana variant of a quote result, amounts in base units
type SolanaQuote struct {
	InAmount       string
	OutAmount      string
	RoutePlan      []RouteLeg
	PriceImpactPct decimal.Decimal // fraction, 0.01 == 1%
}

// QuoteResult is a normalized aggregator quote. Exactly one of EVM or Solana is set.
type QuoteResult struct {
	RequestID       uint64
	Network         NetworkMode
	From            TokenDescriptor
	To              TokenDescriptor
	AmountInput     string
	AmountBaseUnits string
	SlippageBps     uint16
	EVM             *EVMQuote
	Solana          *SolanaQuote
	ReceivedAt      time.Time
}

// SwapStatus is the state of the swap track
type SwapStatus int

const (
	SwapIdle SwapStatus = iota
	SwapPending
	SwapConfirmed
	SwapFailed
)

func (s SwapStatus) String() string {
	switch s {
	case SwapPending:
		return "pending"
	case SwapConfirmed:
		return "confirmed"
	case SwapFailed:
		return "failed"
	default:
		return "idle"
	}
}

// SwapOutcome reports the result of a swap execution
type SwapOutcome struct {
	Status    SwapStatus
	Network   NetworkMode
	TxHandle  string
	Reason    string
	Err       error
	UpdatedAt time.Time
}

// IsTerminal reports whether the outcome will not change anymore
func (o SwapOutcome) IsTerminal() bool {
	switch o.Status {
	case SwapConfirmed, SwapFailed:
		return true
	case SwapPending:
		// Solana submissions have no confirmation stage
		return o.Network == NetworkSolana
	default:
		return false
	}
}
