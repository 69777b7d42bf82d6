package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dualswap/pkg/quote"
	"dualswap/pkg/types"
)

var quoteAmount string

var quoteCmd = &cobra.Command{
	Use:   "quote [<amount> <source-token> to <dest-token>]",
	Short: "Get a price quote for the selected pair",
	Long: `Fetch a quote from the aggregator of the active network.

Without arguments the saved token selection is used. Passing a trade selects
and saves both tokens.

Examples:
  dualswap quote 1.5 WETH to USDC
  dualswap quote --amount 2
  dualswap quote 2 SOL to USDC --network solana`,
	Run: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVarP(&quoteAmount, "amount", "a", "", "Amount to sell in token units")
}

func runQuote(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()
	ctx := cmd.Context()

	a.exitOnError(a.applyTrade(ctx, args, quoteAmount), false)

	result, err := a.fetchQuote(ctx)
	a.exitOnError(err, true)

	view := quote.Render(*result)
	if a.jsonOutput {
		printJSON(view)
		return
	}
	displayQuote(view)
}

// fetchQuote requests a quote for the current selection and waits for it
func (a *app) fetchQuote(ctx context.Context) (*types.QuoteResult, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	pending, err := a.session.RequestQuote(ctx)
	if err != nil {
		s.Stop()
		return nil, err
	}
	result, err := pending.Wait(ctx)
	s.Stop()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func displayQuote(view quote.View) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Network:           %s\n", color.CyanString(view.Network))
	fmt.Printf("  From:              %s\n", color.YellowString(view.From))
	fmt.Printf("  To:                ~%s\n", color.YellowString(view.To))
	fmt.Printf("  Slippage:          %s%%\n", view.Slippage)

	if view.EstimatedGas > 0 {
		fmt.Printf("  Estimated Gas:     %d\n", view.EstimatedGas)
	}
	if view.PriceImpact != "" {
		fmt.Printf("  Price Impact:      %s\n", view.PriceImpact)
	}
	if len(view.Legs) > 0 {
		fmt.Println("\n  Route:")
		for _, leg := range view.Legs {
			fmt.Printf("    %-14s %s -> %s (%d%%)\n", color.CyanString(leg.Label), leg.From, leg.To, leg.Percent)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
