package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dualswap/pkg/types"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Connect the wallet of the active network and show its balance",
	Long: `Unlock the wallet configured for the active network and show its address
and native balance.

Examples:
  dualswap wallet
  dualswap wallet --network solana`,
	Run: runWallet,
}

func init() {
	rootCmd.AddCommand(walletCmd)
}

func nativeSymbol(network types.NetworkMode) string {
	if network == types.NetworkSolana {
		return "SOL"
	}
	return "ETH"
}

func runWallet(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()
	ctx := cmd.Context()

	_, err := a.session.ConnectWallet(ctx)
	a.exitOnError(err, false)

	info, err := a.session.Wallet(ctx)
	a.exitOnError(err, false)

	balance := info.Balance.StringFixed(4)
	if a.jsonOutput {
		printJSON(map[string]string{
			"network": info.Network.String(),
			"address": info.Address,
			"balance": balance,
		})
		return
	}

	fmt.Printf("\n  Network: %s\n", color.CyanString(info.Network.Label()))
	fmt.Printf("  Address: %s\n", color.CyanString(info.Address))
	fmt.Printf("  Balance: %s %s\n\n", balance, nativeSymbol(info.Network))
}
