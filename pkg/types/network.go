package types

import (
	"fmt"
	"strings"
)

// NetworkMode selects which aggregator pipeline and token universe is active
type NetworkMode int

const (
	NetworkEVM NetworkMode = iota
	NetworkSolana
)

// Networks lists every supported network mode
var Networks = []NetworkMode{NetworkEVM, NetworkSolana}

// String returns the persisted form of the network mode
func (n NetworkMode) String() string {
	switch n {
	case NetworkSolana:
		return "solana"
	default:
		return "evm"
	}
}

// Label returns the display name of the network mode
func (n NetworkMode) Label() string {
	switch n {
	case NetworkSolana:
		return "Solana"
	default:
		return "EVM"
	}
}

// ParseNetwork converts user input into a network mode
func ParseNetwork(s string) (NetworkMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "evm", "eth", "ethereum":
		return NetworkEVM, nil
	case "solana", "sol":
		return NetworkSolana, nil
	default:
		return NetworkEVM, fmt.Errorf("%w: unknown network %q (expected evm or solana)", ErrValidation, s)
	}
}
