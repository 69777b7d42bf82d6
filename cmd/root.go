package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dualswap",
	Short: "Quote and swap tokens on EVM and Solana from the command line",
	Long: `dualswap is a command-line tool that quotes and executes token swaps on an
EVM chain through the 1inch aggregator and on Solana through Jupiter, signing
with a locally configured wallet. Token selections, network and slippage are
remembered between runs.

Examples:
  dualswap network solana
  dualswap quote 1.5 WETH to USDC
  dualswap swap 2 SOL to USDC --yes
  dualswap list-tokens --symbol usd
  dualswap status <tx-hash>`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringP("network", "n", "", "Use this network (evm or solana) for one command without saving it")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

func printJSON(v any) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonData))
}
