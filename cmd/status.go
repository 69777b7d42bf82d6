package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dualswap/config"
	"dualswap/pkg/types"
	"dualswap/pkg/wallet"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash-or-signature>",
	Short: "Check the status of a swap transaction",
	Long: `Check the on-chain status of a swap transaction. EVM transaction hashes
(0x...) are looked up on the EVM RPC, anything else is treated as a Solana
signature.

Examples:
  dualswap status 0x1234...abcd
  dualswap status 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb... --watch
  dualswap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the transaction settles")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

// txLookup resolves the state of one transaction
type txLookup func(ctx context.Context) (*wallet.TxInfo, error)

func runStatus(cmd *cobra.Command, args []string) {
	handle := strings.TrimSpace(args[0])
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	lookup, closeFn, err := newTxLookup(ctx, cfg, handle)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer closeFn()

	if watchStatus {
		watchSwapStatus(ctx, lookup, handle, jsonOutput)
	} else {
		checkSwapStatus(ctx, lookup, jsonOutput)
	}
}

func txNetwork(handle string) types.NetworkMode {
	if strings.HasPrefix(strings.ToLower(handle), "0x") {
		return types.NetworkEVM
	}
	return types.NetworkSolana
}

func newTxLookup(ctx context.Context, cfg *config.Config, handle string) (txLookup, func(), error) {
	if txNetwork(handle) == types.NetworkEVM {
		backend, err := wallet.DialEVM(ctx, cfg.EVM.RPCURL)
		if err != nil {
			return nil, nil, err
		}
		return func(ctx context.Context) (*wallet.TxInfo, error) {
			return wallet.EVMTxStatus(ctx, backend, handle)
		}, backend.Close, nil
	}

	submitter := wallet.NewRPCSubmitter(cfg.Wallet().Solana)
	return func(ctx context.Context) (*wallet.TxInfo, error) {
		return submitter.SignatureStatus(ctx, handle)
	}, func() {}, nil
}

func checkSwapStatus(ctx context.Context, lookup txLookup, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}

	info, err := lookup(ctx)
	s.Stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(newTxView(info))
	} else {
		displayStatus(info)
	}
}

func watchSwapStatus(ctx context.Context, lookup txLookup, handle string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}
	if watchInterval <= 0 {
		watchInterval = 5
	}

	fmt.Printf("\nWatching swap status (Transaction: %s)\n", color.CyanString(handle))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first, then periodically until settled
	for {
		if checkAndDisplayStatus(ctx, lookup) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkAndDisplayStatus reports whether the transaction reached a final state
func checkAndDisplayStatus(ctx context.Context, lookup txLookup) bool {
	info, err := lookup(ctx)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayStatus(info)
	return info.Status == types.SwapConfirmed || info.Status == types.SwapFailed
}

type txView struct {
	Network string `json:"network"`
	Hash    string `json:"hash"`
	Found   bool   `json:"found"`
	Status  string `json:"status"`
	Block   uint64 `json:"block,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func newTxView(info *wallet.TxInfo) txView {
	return txView{
		Network: info.Network.String(),
		Hash:    info.Hash,
		Found:   info.Found,
		Status:  info.Status.String(),
		Block:   info.Block,
		Detail:  info.Detail,
	}
}

func displayStatus(info *wallet.TxInfo) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Network:         %s\n", info.Network.Label())
	fmt.Printf("  Transaction:     %s\n", color.CyanString(info.Hash))
	if !info.Found {
		fmt.Printf("  Status:          %s\n", color.MagentaString("NOT FOUND"))
	} else {
		fmt.Printf("  Status:          %s\n", getColoredStatus(info.Status))
	}

	if info.Block > 0 {
		label := "Block:"
		if info.Network == types.NetworkSolana {
			label = "Slot:"
		}
		fmt.Printf("  %-17s%d\n", label, info.Block)
	}
	if info.Detail != "" {
		fmt.Printf("  Detail:          %s\n", info.Detail)
	}
	fmt.Printf("  Checked At:      %s\n", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status types.SwapStatus) string {
	text := strings.ToUpper(status.String())

	switch status {
	case types.SwapConfirmed:
		return color.GreenString(text)
	case types.SwapPending:
		return color.YellowString(text)
	case types.SwapFailed:
		return color.RedString(text)
	default:
		return text
	}
}
