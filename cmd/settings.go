package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dualswap/pkg/types"
	"dualswap/pkg/units"
)

var (
	selectFrom string
	selectTo   string
)

var networkCmd = &cobra.Command{
	Use:   "network [evm|solana]",
	Short: "Show or switch the active network",
	Long: `Show the active network, or switch to another one. The choice is saved
and used by later commands until changed again.

Examples:
  dualswap network
  dualswap network solana`,
	Args: cobra.MaximumNArgs(1),
	Run:  runNetwork,
}

var slippageCmd = &cobra.Command{
	Use:   "slippage [percent]",
	Short: "Show or set the slippage tolerance",
	Long: `Show the slippage tolerance, or set it in percent. 0.5 means 0.5%.

Examples:
  dualswap slippage
  dualswap slippage 1`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSlippage,
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Select the tokens to swap on the active network",
	Long: `Select the from and/or to token by symbol or address. Selections are kept
separately for each network.

Examples:
  dualswap select --from WETH --to USDC
  dualswap select --to EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v --network solana`,
	Run: runSelect,
}

var flipCmd = &cobra.Command{
	Use:   "flip",
	Short: "Exchange the from and to tokens of the active network",
	Run:   runFlip,
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show the saved preferences",
	Run:   runPrefs,
}

func init() {
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(slippageCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(flipCmd)
	rootCmd.AddCommand(prefsCmd)

	selectCmd.Flags().StringVar(&selectFrom, "from", "", "Token to sell (symbol or address)")
	selectCmd.Flags().StringVar(&selectTo, "to", "", "Token to buy (symbol or address)")
}

func runNetwork(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	if len(args) == 1 {
		network, err := types.ParseNetwork(args[0])
		a.exitOnError(err, false)
		a.session.SetNetwork(network)
	}

	network := a.session.Network()
	if a.jsonOutput {
		printJSON(map[string]string{"network": network.String()})
		return
	}
	printSuccess(fmt.Sprintf("Active network: %s", color.CyanString(network.Label())))
}

func runSlippage(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	if len(args) == 1 {
		percent, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(args[0]), "%"), 64)
		if err != nil {
			a.exitOnError(fmt.Errorf("%w: invalid slippage %q", types.ErrValidation, args[0]), false)
		}
		a.exitOnError(a.session.SetSlippage(percent), false)
	}

	percent := a.session.Slippage()
	if a.jsonOutput {
		printJSON(map[string]float64{"slippagePercent": percent})
		return
	}
	printSuccess(fmt.Sprintf("Slippage tolerance: %s%%", units.FormatSlippage(percent)))
}

func runSelect(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()
	ctx := cmd.Context()

	if selectFrom == "" && selectTo == "" {
		a.exitOnError(fmt.Errorf("%w: pass --from and/or --to", types.ErrValidation), false)
	}

	if selectFrom != "" {
		token, err := a.resolveToken(ctx, selectFrom)
		a.exitOnError(err, false)
		a.session.SelectFrom(token)
	}
	if selectTo != "" {
		token, err := a.resolveToken(ctx, selectTo)
		a.exitOnError(err, false)
		a.session.SelectTo(token)
	}

	showSelection(a)
}

func runFlip(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	a.session.SwapTokens()
	showSelection(a)
}

func showSelection(a *app) {
	network := a.session.Network()
	pair := a.session.Selection(network)
	if a.jsonOutput {
		printJSON(map[string]any{"network": network.String(), "from": pair.From, "to": pair.To})
		return
	}
	fmt.Printf("\n  Network: %s\n", color.CyanString(network.Label()))
	fmt.Printf("  From:    %s\n", tokenLabel(pair.From))
	fmt.Printf("  To:      %s\n\n", tokenLabel(pair.To))
}

func runPrefs(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	p := a.session.Preferences()
	if a.jsonOutput {
		printJSON(map[string]any{
			"network":         p.Network.String(),
			"slippagePercent": p.SlippagePercent,
			"evm":             map[string]any{"from": p.EVM.From, "to": p.EVM.To},
			"solana":          map[string]any{"from": p.Solana.From, "to": p.Solana.To},
			"backend":         a.cfg.Prefs.Backend,
		})
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     PREFERENCES")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Network:           %s\n", color.CyanString(p.Network.Label()))
	fmt.Printf("  Slippage:          %s%%\n", units.FormatSlippage(p.SlippagePercent))
	for _, network := range types.Networks {
		pair := p.Pair(network)
		fmt.Printf("  %-7s from:       %s\n", network.Label(), tokenLabel(pair.From))
		fmt.Printf("  %-7s to:         %s\n", network.Label(), tokenLabel(pair.To))
	}
	fmt.Printf("  Stored in:         %s\n", a.cfg.Prefs.Backend)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func tokenLabel(t *types.TokenDescriptor) string {
	if t == nil {
		return color.HiBlackString("(none)")
	}
	return fmt.Sprintf("%s %s", color.YellowString(t.Symbol), color.HiBlackString(t.Address))
}
