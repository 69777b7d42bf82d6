package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dualswap/config"
	"dualswap/pkg/client"
	"dualswap/pkg/logger"
	"dualswap/pkg/notify"
	"dualswap/pkg/parser"
	"dualswap/pkg/prefs"
	"dualswap/pkg/quote"
	"dualswap/pkg/session"
	"dualswap/pkg/swap"
	"dualswap/pkg/types"
	"dualswap/pkg/wallet"
)

// app is everything a command needs for one run
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	session    *session.Controller
	quotes     *quote.Orchestrator
	swaps      *swap.Executor
	redis      *redis.Client
	verbose    bool
	jsonOutput bool
}

// newApp loads configuration and wires a swap session
func newApp(cmd *cobra.Command) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{Level: level, File: cfg.Log.File})

	a := &app{cfg: cfg, log: log, verbose: verbose, jsonOutput: jsonOutput}

	backend, err := a.prefsBackend()
	if err != nil {
		return nil, err
	}

	catalog, err := client.NewCatalogClient(client.CatalogOptions{
		EVMURL:    cfg.EVM.TokensURL,
		SolanaURL: cfg.Solana.TokensURL,
		ChainID:   cfg.EVM.ChainID,
		TTL:       cfg.CatalogTTL,
		Timeout:   cfg.HTTPTimeout,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token catalog: %w", err)
	}

	oneInch := client.NewOneInchClient(client.Options{
		BaseURL:   cfg.OneInch.BaseURL,
		APIKey:    cfg.OneInch.APIKey,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.OneInch.RateLimit,
		Logger:    log,
	})
	jupiter := client.NewJupiterClient(client.Options{
		BaseURL:   cfg.Jupiter.BaseURL,
		APIKey:    cfg.Jupiter.APIKey,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.Jupiter.RateLimit,
		Logger:    log,
	})

	toasts := notify.NewChannel(cfg.NotifyTTL)
	if !jsonOutput {
		toasts.Subscribe(printToast)
	}

	connector := wallet.NewConfigConnector(cfg.Wallet(), log)

	a.quotes = quote.NewOrchestrator(quote.Options{
		EVM:      oneInch,
		Solana:   jupiter,
		ChainID:  cfg.EVM.ChainID,
		Notifier: toasts,
		Logger:   log,
	})
	a.quotes.OnAccept(a.quoteAccepted)

	a.swaps = swap.NewExecutor(swap.Options{
		EVM:            oneInch,
		Solana:         jupiter,
		Submitter:      connector.Submitter(),
		ChainID:        cfg.EVM.ChainID,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Notifier:       toasts,
		Logger:         log,
	})

	a.session = session.New(session.Deps{
		Prefs:     prefs.NewStore(backend, log),
		Catalog:   catalog,
		Quotes:    a.quotes,
		Swaps:     a.swaps,
		Connector: connector,
		Toasts:    toasts,
		Logger:    log,
	})

	if name, _ := cmd.Flags().GetString("network"); name != "" {
		network, err := types.ParseNetwork(name)
		if err != nil {
			a.close()
			return nil, err
		}
		a.session.OverrideNetwork(network)
	}

	return a, nil
}

func (a *app) quoteAccepted(r types.QuoteResult) {
	a.log.WithFields(logrus.Fields{
		"request": r.RequestID,
		"network": r.Network.String(),
	}).Debug("quote accepted")

	if a.verbose && !a.jsonOutput {
		fmt.Printf("\nDebug: quote request %d is now current for %s\n", r.RequestID, r.Network.Label())
	}
}

// mustApp builds the app or exits
func mustApp(cmd *cobra.Command) *app {
	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return a
}

func (a *app) prefsBackend() (prefs.Backend, error) {
	switch a.cfg.Prefs.Backend {
	case config.BackendMemory:
		return prefs.NewMemoryBackend(), nil
	case config.BackendRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		backend, err := prefs.NewRedisBackend(a.redis)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		backend, err := prefs.NewFileBackend(a.cfg.Prefs.Path)
		if err != nil {
			if backend == nil {
				return nil, err
			}
			// start from defaults rather than refusing to run
			a.log.WithError(err).Warn("ignoring unreadable preferences file")
		}
		return backend, nil
	}
}

func (a *app) close() {
	a.session.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// applyTrade updates the selection from "<amount> <from> to <to>" arguments
// or from an --amount flag.
func (a *app) applyTrade(ctx context.Context, args []string, amount string) error {
	if len(args) > 0 {
		req, err := parser.ParseArgs(args)
		if err != nil {
			return err
		}
		if err := parser.ValidateSwapRequest(req); err != nil {
			return err
		}

		from, err := a.resolveToken(ctx, req.SourceToken)
		if err != nil {
			return err
		}
		to, err := a.resolveToken(ctx, req.DestToken)
		if err != nil {
			return err
		}

		a.session.SelectFrom(from)
		a.session.SelectTo(to)
		a.session.SetAmount(req.Amount)
	}

	if amount != "" {
		a.session.SetAmount(amount)
	}
	return nil
}

// resolveToken finds a token by address or symbol, trying the catalog's wrapped symbol for native coins
func (a *app) resolveToken(ctx context.Context, query string) (*types.TokenDescriptor, error) {
	token, err := a.session.FindToken(ctx, query)
	if err == nil || !errors.Is(err, types.ErrValidation) {
		return token, err
	}

	alias := parser.NormalizeTokenSymbol(a.session.Network(), query)
	if strings.EqualFold(alias, query) {
		return nil, err
	}
	if a.verbose {
		fmt.Printf("Debug: %s not listed, trying %s\n", query, alias)
	}
	return a.session.FindToken(ctx, alias)
}

// exitOnError prints err unless it was already shown as a notification, then exits
func (a *app) exitOnError(err error, notified bool) {
	if err == nil {
		return
	}
	switch {
	case a.jsonOutput:
		printJSON(map[string]string{"error": err.Error()})
	case !notified || a.verbose:
		printError(err)
	}
	a.close()
	os.Exit(1)
}

func printToast(msg notify.ToastMessage, visible bool) {
	if !visible {
		return
	}

	text := msg.Text
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.HasPrefix(lower, "select") || strings.HasPrefix(lower, "no swap") || strings.Contains(lower, "missing"):
		color.Red("\n%s", text)
	case strings.Contains(lower, "confirmed") || strings.Contains(lower, "sent"):
		color.Green("\n%s", text)
	default:
		color.Yellow("\n%s", text)
	}
}
