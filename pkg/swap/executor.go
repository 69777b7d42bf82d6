package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dualswap/pkg/client"
	"dualswap/pkg/logger"
	"dualswap/pkg/types"
	"dualswap/pkg/units"
	"dualswap/pkg/wallet"
)

// Messages posted when a swap cannot start
const (
	MsgSelectEVM    = "Select tokens, amount, and connect wallet"
	MsgSelectSolana = "Select tokens and connect wallet"
)

// EVMSwapper fetches swap transaction data for EVM swaps
type EVMSwapper interface {
	Swap(ctx context.Context, req client.OneInchSwapRequest) (*client.OneInchSwap, error)
}

// SolanaRouter fetches fresh routes and serialized swap transactions for Solana
type SolanaRouter interface {
	Quote(ctx context.Context, req client.JupiterQuoteRequest) (*client.JupiterQuote, error)
	Swap(ctx context.Context, req client.JupiterSwapRequest) (*client.JupiterSwap, error)
}

// Notifier receives user-facing messages
type Notifier interface {
	Post(text string)
}

// Options configures an Executor
type Options struct {
	EVM            EVMSwapper
	Solana         SolanaRouter
	Submitter      wallet.Submitter
	ChainID        int64
	ConfirmTimeout time.Duration // 0 waits forever
	Notifier       Notifier
	Logger         *logrus.Logger
}

// Executor builds, signs and submits swaps and tracks their outcome
type Executor struct {
	evm            EVMSwapper
	solana         SolanaRouter
	submitter      wallet.Submitter
	chainID        int64
	confirmTimeout time.Duration
	notifier       Notifier
	log            *logrus.Entry
	now            func() time.Time

	// dispatch serializes listener delivery
	dispatch sync.Mutex

	mu        sync.Mutex
	gen       uint64
	current   types.SwapOutcome
	listeners []func(types.SwapOutcome)
}

// NewExecutor creates a swap executor
func NewExecutor(opts Options) *Executor {
	chainID := opts.ChainID
	if chainID <= 0 {
		chainID = types.DefaultEVMChainID
	}
	return &Executor{
		evm:            opts.EVM,
		solana:         opts.Solana,
		submitter:      opts.Submitter,
		chainID:        chainID,
		confirmTimeout: opts.ConfirmTimeout,
		notifier:       opts.Notifier,
		log:            logger.Component(opts.Logger, "swap"),
		now:            time.Now,
	}
}

// OnOutcome registers a listener for swap state transitions
func (e *Executor) OnOutcome(fn func(types.SwapOutcome)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Current returns the state of the most recent swap
func (e *Executor) Current() types.SwapOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Execute runs a swap to its first reportable state. Every failure is returned as a
// Failed outcome. EVM swaps that reach Pending also return a Confirmation to wait on.
func (e *Executor) Execute(ctx context.Context, p types.TradeParams, w wallet.Session) (types.SwapOutcome, *Confirmation) {
	gen := e.begin()

	switch p.Network {
	case types.NetworkSolana:
		return e.executeSolana(ctx, gen, p, w), nil
	default:
		return e.executeEVM(ctx, gen, p, w)
	}
}

func (e *Executor) executeEVM(ctx context.Context, gen uint64, p types.TradeParams, w wallet.Session) (types.SwapOutcome, *Confirmation) {
	evmWallet, ok := w.(wallet.EVMSession)
	if !p.Complete() || !ok {
		return e.fail(gen, p.Network, preconditionError(p), MsgSelectEVM), nil
	}
	if e.evm == nil {
		return e.failf(gen, p.Network, fmt.Errorf("%w: no EVM swap provider configured", types.ErrNetwork)), nil
	}

	base, err := units.ForNetwork(p.Network, p.Amount, p.From.Decimals)
	if err != nil {
		return e.failf(gen, p.Network, err), nil
	}

	// Request account access and resolve the signer
	accounts, err := evmWallet.RequestAccounts(ctx)
	if err != nil {
		return e.failf(gen, p.Network, err), nil
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return e.failf(gen, p.Network, fmt.Errorf("%w: wallet returned no accounts", types.ErrWallet)), nil
	}
	fromAddress := accounts[0]

	// Fetch transaction data
	data, err := e.evm.Swap(ctx, client.OneInchSwapRequest{
		OneInchQuoteRequest: client.OneInchQuoteRequest{
			ChainID:          e.chainID,
			FromTokenAddress: p.From.Address,
			ToTokenAddress:   p.To.Address,
			Amount:           base.String(),
		},
		FromAddress: fromAddress,
		Slippage:    p.SlippagePercent,
	})
	if err != nil {
		return e.failf(gen, p.Network, err), nil
	}
	if data.Tx == nil || data.Tx.To == "" {
		return e.failf(gen, p.Network, fmt.Errorf("%w: Swap transaction data missing", types.ErrSwapData)), nil
	}

	// Sign and send through the wallet
	hash, err := evmWallet.SendTransaction(ctx, wallet.EVMTxRequest{
		From:     data.Tx.From,
		To:       data.Tx.To,
		Data:     data.Tx.Data,
		Value:    data.Tx.Value,
		Gas:      data.Tx.Gas,
		GasPrice: data.Tx.GasPrice,
	})
	if err != nil {
		return e.failf(gen, p.Network, err), nil
	}

	pending := types.SwapOutcome{Status: types.SwapPending, Network: p.Network, TxHandle: hash}
	pending = e.report(gen, pending, fmt.Sprintf("Swap Tx sent: %s", hash))

	conf := &Confirmation{Hash: hash, done: make(chan struct{})}
	go e.confirm(ctx, gen, evmWallet, conf)
	return pending, conf
}

func (e *Executor) confirm(ctx context.Context, gen uint64, w wallet.EVMSession, conf *Confirmation) {
	waitCtx := context.WithoutCancel(ctx)
	if e.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, e.confirmTimeout)
		defer cancel()
	}

	var outcome types.SwapOutcome
	if err := w.WaitConfirmed(waitCtx, conf.Hash); err != nil {
		outcome = e.fail(gen, types.NetworkEVM, err, "Swap failed: "+reason(err))
		outcome.TxHandle = conf.Hash
	} else {
		outcome = e.report(gen, types.SwapOutcome{Status: types.SwapConfirmed, Network: types.NetworkEVM, TxHandle: conf.Hash}, "Swap confirmed!")
	}
	conf.finish(outcome)
}

func (e *Executor) executeSolana(ctx context.Context, gen uint64, p types.TradeParams, w wallet.Session) types.SwapOutcome {
	solWallet, ok := w.(wallet.SolanaSession)
	if !p.Complete() || !ok {
		return e.fail(gen, p.Network, preconditionError(p), MsgSelectSolana)
	}
	if solWallet.PublicKey().IsZero() {
		return e.failSolana(gen, fmt.Errorf("%w: wallet not connected", types.ErrWallet))
	}
	if e.solana == nil || e.submitter == nil {
		return e.failSolana(gen, fmt.Errorf("%w: no Solana swap provider configured", types.ErrNetwork))
	}

	base, err := units.ForNetwork(p.Network, p.Amount, p.From.Decimals)
	if err != nil {
		return e.failSolana(gen, err)
	}
	bps, err := units.SlippageBps(p.SlippagePercent)
	if err != nil {
		return e.failSolana(gen, err)
	}

	// Always swap against a freshly fetched route
	route, err := e.solana.Quote(ctx, client.JupiterQuoteRequest{
		InputMint:   p.From.Address,
		OutputMint:  p.To.Address,
		Amount:      base.String(),
		SlippageBps: bps,
	})
	if err != nil {
		return e.failSolana(gen, err)
	}
	if !route.HasRoute() || len(route.Raw) == 0 {
		return e.failSolana(gen, fmt.Errorf("%w: No swap routes found", types.ErrSwapData))
	}

	swapData, err := e.solana.Swap(ctx, client.JupiterSwapRequest{
		QuoteResponse:                 route.Raw,
		UserPublicKey:                 solWallet.PublicKey().String(),
		WrapAndUnwrapSol:              true,
		ComputeUnitPriceMicroLamports: 0,
	})
	if err != nil {
		return e.failSolana(gen, err)
	}
	if strings.TrimSpace(swapData.SwapTransaction) == "" {
		return e.failSolana(gen, fmt.Errorf("%w: Swap transaction missing", types.ErrSwapData))
	}

	tx, err := wallet.DecodeTransaction(swapData.SwapTransaction)
	if err != nil {
		return e.failSolana(gen, err)
	}
	if err := solWallet.SignTransaction(ctx, tx); err != nil {
		return e.failSolana(gen, err)
	}

	sig, err := e.submitter.Submit(ctx, tx)
	if err != nil {
		return e.failSolana(gen, err)
	}

	return e.report(gen, types.SwapOutcome{Status: types.SwapPending, Network: types.NetworkSolana, TxHandle: sig}, fmt.Sprintf("Swap sent, Txid: %s", sig))
}

func preconditionError(p types.TradeParams) error {
	if !p.Complete() {
		return fmt.Errorf("%w: tokens and amount must be selected", types.ErrValidation)
	}
	return fmt.Errorf("%w: no %s wallet connected", types.ErrWallet, p.Network.Label())
}

// begin starts a new swap; outcomes of older swaps no longer update Current
func (e *Executor) begin() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	return e.gen
}

func (e *Executor) failf(gen uint64, network types.NetworkMode, err error) types.SwapOutcome {
	return e.fail(gen, network, err, "Swap failed: "+reason(err))
}

func (e *Executor) failSolana(gen uint64, err error) types.SwapOutcome {
	return e.fail(gen, types.NetworkSolana, err, "Solana swap error: "+reason(err))
}

func (e *Executor) fail(gen uint64, network types.NetworkMode, err error, message string) types.SwapOutcome {
	e.log.WithError(err).WithField("network", network.String()).Warn("swap failed")
	return e.report(gen, types.SwapOutcome{
		Status:  types.SwapFailed,
		Network: network,
		Reason:  reason(err),
		Err:     err,
	}, message)
}

func (e *Executor) report(gen uint64, outcome types.SwapOutcome, message string) types.SwapOutcome {
	outcome.UpdatedAt = e.now()

	e.mu.Lock()
	if gen == e.gen {
		e.current = outcome
	}
	e.mu.Unlock()

	if outcome.TxHandle != "" {
		e.log.WithFields(logrus.Fields{"status": outcome.Status.String(), "tx": outcome.TxHandle}).Info("swap update")
	}
	if e.notifier != nil {
		e.notifier.Post(message)
	}
	e.deliver(gen, outcome)
	return outcome
}

// deliver calls the listeners unless a newer swap started in the meantime
func (e *Executor) deliver(gen uint64, outcome types.SwapOutcome) {
	e.dispatch.Lock()
	defer e.dispatch.Unlock()

	e.mu.Lock()
	latest := gen == e.gen
	listeners := append([]func(types.SwapOutcome){}, e.listeners...)
	e.mu.Unlock()
	if !latest {
		return
	}

	for _, fn := range listeners {
		fn(outcome)
	}
}

// reason strips the taxonomy prefix for display
func reason(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{types.ErrValidation, types.ErrNetwork, types.ErrWallet, types.ErrSwapData} {
		if errors.Is(err, sentinel) {
			msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}

// Confirmation resolves when an EVM transaction is confirmed or fails
type Confirmation struct {
	Hash string

	done    chan struct{}
	outcome types.SwapOutcome
}

func (c *Confirmation) finish(outcome types.SwapOutcome) {
	c.outcome = outcome
	close(c.done)
}

// Done is closed once the transaction reached a terminal state
func (c *Confirmation) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the transaction reached a terminal state
func (c *Confirmation) Wait(ctx context.Context) (types.SwapOutcome, error) {
	select {
	case <-ctx.Done():
		return types.SwapOutcome{}, ctx.Err()
	case <-c.done:
		return c.outcome, nil
	}
}
