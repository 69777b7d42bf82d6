package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"dualswap/pkg/client"
	"dualswap/pkg/types"
)

var (
	filterSymbol string
	tokenLimit   int
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the tokens of the active network",
	Long: `List the tokens from the catalog of the active network.

You can filter tokens by symbol or name.

Examples:
  dualswap list-tokens
  dualswap list-tokens --network solana
  dualswap list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol or name")
	tokensCmd.Flags().IntVar(&tokenLimit, "limit", 0, "Show at most this many tokens (0 for all)")
}

func runListTokens(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()
	ctx := cmd.Context()
	network := a.session.Network()

	// Get tokens with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}

	tokens, err := a.session.Tokens(ctx)
	s.Stop()
	a.exitOnError(err, true)

	// Apply filters
	filtered := tokens
	if filterSymbol != "" {
		filtered = client.FilterTokens(filtered, filterSymbol)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return strings.ToUpper(filtered[i].Symbol) < strings.ToUpper(filtered[j].Symbol)
	})
	if tokenLimit > 0 && len(filtered) > tokenLimit {
		filtered = filtered[:tokenLimit]
	}

	// Output
	if a.jsonOutput {
		printJSON(filtered)
	} else {
		displayTokens(network, filtered, len(tokens))
	}
}

func displayTokens(network types.NetworkMode, tokens []types.TokenDescriptor, total int) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            %s TOKENS", strings.ToUpper(network.Label()))
	fmt.Println(strings.Repeat("=", 90))

	for _, token := range tokens {
		address := token.Address

		// Truncate address if too long
		if len(address) > 44 {
			address = address[:41] + "..."
		}

		fmt.Printf("  %-10s  %2d decimals  %-44s  %s\n",
			color.YellowString(token.Symbol),
			token.Decimals,
			color.HiBlackString(address),
			token.Name)
	}

	symbols := lo.Uniq(lo.Map(tokens, func(t types.TokenDescriptor, _ int) string {
		return strings.ToUpper(t.Symbol)
	}))

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nShowing %d tokens (%d symbols) of %d in the %s catalog\n\n", len(tokens), len(symbols), total, network.Label())
}
