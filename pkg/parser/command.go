package parser

import (
	"fmt"
	"regexp"
	"strings"

	"dualswap/pkg/types"
)

// Token symbols or addresses keep their case: Solana mints are case sensitive
var swapPattern = regexp.MustCompile(`(?i)^(?:swap\s+)?(\d+\.?\d*|\.\d+)\s+([A-Za-z0-9._-]+)\s+(?:to|for|->)\s+([A-Za-z0-9._-]+)$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 SOL to USDC"
//   - "1.5 ETH to USDC"
//   - "100 USDC for 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	command = strings.Join(strings.Fields(command), " ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("%w: invalid swap command format. Expected: '<amount> <token> to <token>' (e.g., '1.5 WETH to USDC')", types.ErrValidation)
	}

	return &types.SwapRequest{
		Amount:      matches[1],
		SourceToken: matches[2],
		DestToken:   matches[3],
	}, nil
}

// ParseArgs parses command-line arguments such as ["1.5", "WETH", "to", "USDC"]
func ParseArgs(args []string) (*types.SwapRequest, error) {
	return ParseSwapCommand(strings.Join(args, " "))
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req == nil {
		return fmt.Errorf("%w: swap request is required", types.ErrValidation)
	}
	if req.Amount == "" {
		return fmt.Errorf("%w: amount is required", types.ErrValidation)
	}
	if req.SourceToken == "" {
		return fmt.Errorf("%w: source token is required", types.ErrValidation)
	}
	if req.DestToken == "" {
		return fmt.Errorf("%w: destination token is required", types.ErrValidation)
	}
	return nil
}

// native coin symbols mapped to the wrapped token listed in each catalog
var aliases = map[types.NetworkMode]map[string]string{
	types.NetworkEVM: {
		"ETH": "WETH",
		"BTC": "WBTC",
	},
	types.NetworkSolana: {
		"WSOL": "SOL",
	},
}

// NormalizeTokenSymbol maps a native coin symbol to the token symbol used by the network's catalog.
// Anything else is returned unchanged.
func NormalizeTokenSymbol(network types.NetworkMode, symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if normalized, exists := aliases[network][strings.ToUpper(symbol)]; exists {
		return normalized
	}
	return symbol
}
