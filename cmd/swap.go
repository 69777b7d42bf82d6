package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dualswap/pkg/quote"
	"dualswap/pkg/types"
)

var (
	swapAmount string
	noConfirm  bool
	noWait     bool
)

var swapCmd = &cobra.Command{
	Use:   "swap [<amount> <source-token> to <dest-token>]",
	Short: "Swap tokens on the active network",
	Long: `Execute a swap with the wallet configured for the active network.

A fresh quote is shown first and the swap only runs after confirmation.
EVM swaps are followed until the transaction is mined; Solana swaps finish
once the signed transaction has been submitted.

IMPORTANT:
  - Configure evm.private_key or solana.private_key (or DUALSWAP_EVM_PRIVATE_KEY /
    DUALSWAP_SOLANA_PRIVATE_KEY) before swapping
  - Swaps are signed and broadcast immediately after confirmation

Examples:
  dualswap swap 1.5 WETH to USDC
  dualswap swap 2 SOL to USDC --network solana --yes
  dualswap swap --amount 100`,
	Run: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVarP(&swapAmount, "amount", "a", "", "Amount to sell in token units")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&noWait, "no-wait", false, "Do not wait for EVM confirmation")
}

type outcomeView struct {
	Status  string `json:"status"`
	Network string `json:"network"`
	Tx      string `json:"tx,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func newOutcomeView(o types.SwapOutcome) outcomeView {
	return outcomeView{
		Status:  o.Status.String(),
		Network: o.Network.String(),
		Tx:      o.TxHandle,
		Reason:  o.Reason,
	}
}

func runSwap(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()
	ctx := cmd.Context()

	a.exitOnError(a.applyTrade(ctx, args, swapAmount), false)

	_, err := a.session.ConnectWallet(ctx)
	a.exitOnError(err, false)

	result, err := a.fetchQuote(ctx)
	a.exitOnError(err, true)
	if !a.jsonOutput {
		displayQuote(quote.Render(*result))
	}

	// Ask for confirmation
	if !noConfirm && !a.jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			return
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Sending swap..."
		s.Start()
	}
	a.swaps.OnOutcome(func(o types.SwapOutcome) {
		s.Lock()
		s.Suffix = " " + swapProgress(o)
		s.Unlock()
	})
	outcome, conf := a.session.ExecuteSwap(ctx)
	s.Stop()

	if outcome.Status == types.SwapFailed {
		if a.jsonOutput {
			printJSON(newOutcomeView(outcome))
		}
		a.close()
		os.Exit(1)
	}

	if conf != nil && !noWait {
		if !a.jsonOutput {
			s.Start()
		}
		outcome, err = conf.Wait(ctx)
		s.Stop()
		if err != nil {
			color.Yellow("\nStopped waiting: %v", err)
			fmt.Println("\nYou can check the swap status using:")
			color.Cyan("  dualswap status %s\n", conf.Hash)
			return
		}
	}

	if a.jsonOutput {
		printJSON(newOutcomeView(outcome))
	} else {
		displayOutcome(outcome)
	}
	if outcome.Status == types.SwapFailed {
		a.close()
		os.Exit(1)
	}
}

// swapProgress describes a swap state for the spinner
func swapProgress(o types.SwapOutcome) string {
	switch o.Status {
	case types.SwapPending:
		return fmt.Sprintf("Waiting for confirmation of %s...", o.TxHandle)
	case types.SwapConfirmed:
		return "Swap confirmed"
	case types.SwapFailed:
		return "Swap failed: " + o.Reason
	default:
		return "Sending swap..."
	}
}

func displayOutcome(o types.SwapOutcome) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP RESULT")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Network:           %s\n", o.Network.Label())
	fmt.Printf("  Status:            %s\n", getColoredStatus(o.Status))
	if o.TxHandle != "" {
		fmt.Printf("  Transaction:       %s\n", color.CyanString(o.TxHandle))
	}
	if o.Reason != "" {
		fmt.Printf("  Reason:            %s\n", o.Reason)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")

	if o.Status == types.SwapPending && o.TxHandle != "" {
		fmt.Println("You can monitor the swap status using:")
		color.Cyan("  dualswap status %s\n", o.TxHandle)
	}
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
