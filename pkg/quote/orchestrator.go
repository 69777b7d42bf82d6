package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"dualswap/pkg/client"
	"dualswap/pkg/logger"
	"dualswap/pkg/types"
	"dualswap/pkg/units"
)

// MsgSelectTokens is posted when a quote is requested without a complete selection
const MsgSelectTokens = "Select tokens and amount"

// EVMQuoter fetches EVM quotes
type EVMQuoter interface {
	Quote(ctx context.Context, req client.OneInchQuoteRequest) (*client.OneInchQuote, error)
}

// SolanaQuoter fetches Solana quotes
type SolanaQuoter interface {
	Quote(ctx context.Context, req client.JupiterQuoteRequest) (*client.JupiterQuote, error)
}

// Notifier receives user-facing messages
type Notifier interface {
	Post(text string)
}

// Orchestrator issues quote requests and keeps the latest accepted result per network
type Orchestrator struct {
	evm      EVMQuoter
	solana   SolanaQuoter
	chainID  int64
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time

	nextID atomic.Uint64

	// dispatch serializes listener delivery
	dispatch sync.Mutex

	mu        sync.Mutex
	accepted  map[types.NetworkMode]uint64
	current   map[types.NetworkMode]*types.QuoteResult
	listeners []func(types.QuoteResult)
}

// Options configures an Orchestrator
type Options struct {
	EVM      EVMQuoter
	Solana   SolanaQuoter
	ChainID  int64
	Notifier Notifier
	Logger   *logrus.Logger
}

// NewOrchestrator creates a quote orchestrator
func NewOrchestrator(opts Options) *Orchestrator {
	chainID := opts.ChainID
	if chainID <= 0 {
		chainID = types.DefaultEVMChainID
	}
	return &Orchestrator{
		evm:      opts.EVM,
		solana:   opts.Solana,
		chainID:  chainID,
		notifier: opts.Notifier,
		log:      logger.Component(opts.Logger, "quote"),
		now:      time.Now,
		accepted: make(map[types.NetworkMode]uint64),
		current:  make(map[types.NetworkMode]*types.QuoteResult),
	}
}

// OnAccept registers a listener called whenever a quote becomes current
func (o *Orchestrator) OnAccept(fn func(types.QuoteResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Current returns the accepted quote for a network, or nil
func (o *Orchestrator) Current(network types.NetworkMode) *types.QuoteResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current[network]
}

// RequestQuote validates the selection and starts fetching a quote in the background.
// Validation failures are returned immediately and never reach the network.
func (o *Orchestrator) RequestQuote(ctx context.Context, p types.TradeParams) (*Pending, error) {
	if !p.Complete() {
		err := fmt.Errorf("%w: tokens and amount must be selected", types.ErrValidation)
		o.post(MsgSelectTokens)
		return nil, err
	}

	base, err := units.ForNetwork(p.Network, p.Amount, p.From.Decimals)
	if err != nil {
		o.post(fmt.Sprintf("%s quote error: %v", p.Network.Label(), err))
		return nil, err
	}

	bps, err := units.SlippageBps(p.SlippagePercent)
	if err != nil {
		o.post(fmt.Sprintf("%s quote error: %v", p.Network.Label(), err))
		return nil, err
	}

	req := request{
		id:          o.nextID.Add(1),
		params:      p,
		baseUnits:   base.String(),
		slippageBps: bps,
	}
	pending := &Pending{ID: req.id, Network: p.Network, done: make(chan struct{})}

	o.log.WithFields(logrus.Fields{
		"request": req.id,
		"network": p.Network.String(),
		"from":    p.From.Symbol,
		"to":      p.To.Symbol,
		"amount":  req.baseUnits,
	}).Debug("quote requested")

	go o.run(ctx, req, pending)
	return pending, nil
}

type request struct {
	id          uint64
	params      types.TradeParams
	baseUnits   string
	slippageBps uint16
}

func (o *Orchestrator) run(ctx context.Context, req request, pending *Pending) {
	var (
		result *types.QuoteResult
		err    error
	)
	switch req.params.Network {
	case types.NetworkSolana:
		result, err = o.fetchSolana(ctx, req)
	default:
		result, err = o.fetchEVM(ctx, req)
	}

	if err != nil {
		o.log.WithError(err).WithField("request", req.id).Warn("quote failed")
		o.post(fmt.Sprintf("%s quote error: %v", req.params.Network.Label(), err))
		pending.finish(nil, false, err)
		return
	}

	accepted := o.accept(result)
	if !accepted {
		o.log.WithField("request", req.id).Debug("discarding superseded quote")
	}
	pending.finish(result, accepted, nil)
}

// accept stores result unless a newer request for the same network already resolved
func (o *Orchestrator) accept(result *types.QuoteResult) bool {
	o.mu.Lock()
	if result.RequestID <= o.accepted[result.Network] {
		o.mu.Unlock()
		return false
	}
	o.accepted[result.Network] = result.RequestID
	o.current[result.Network] = result
	o.mu.Unlock()

	o.deliver(result)
	return true
}

// deliver calls the listeners unless a newer result was accepted in the meantime
func (o *Orchestrator) deliver(result *types.QuoteResult) {
	o.dispatch.Lock()
	defer o.dispatch.Unlock()

	o.mu.Lock()
	latest := o.accepted[result.Network] == result.RequestID
	listeners := append([]func(types.QuoteResult){}, o.listeners...)
	o.mu.Unlock()
	if !latest {
		return
	}

	for _, fn := range listeners {
		fn(*result)
	}
}

func (o *Orchestrator) fetchEVM(ctx context.Context, req request) (*types.QuoteResult, error) {
	if o.evm == nil {
		return nil, fmt.Errorf("%w: no EVM quote provider configured", types.ErrNetwork)
	}

	q, err := o.evm.Quote(ctx, client.OneInchQuoteRequest{
		ChainID:          o.chainID,
		FromTokenAddress: req.params.From.Address,
		ToTokenAddress:   req.params.To.Address,
		Amount:           req.baseUnits,
	})
	if err != nil {
		return nil, err
	}
	if q.ReturnAmount() == "" {
		return nil, fmt.Errorf("%w: quote response has no output amount", types.ErrSwapData)
	}

	fromAmount := q.FromTokenAmount
	if fromAmount == "" {
		fromAmount = req.baseUnits
	}

	result := o.newResult(req)
	result.EVM = &types.EVMQuote{
		FromAmount:   fromAmount,
		ToAmount:     q.ReturnAmount(),
		EstimatedGas: q.GasEstimate(),
	}
	return result, nil
}

func (o *Orchestrator) fetchSolana(ctx context.Context, req request) (*types.QuoteResult, error) {
	if o.solana == nil {
		return nil, fmt.Errorf("%w: no Solana quote provider configured", types.ErrNetwork)
	}

	q, err := o.solana.Quote(ctx, client.JupiterQuoteRequest{
		InputMint:   req.params.From.Address,
		OutputMint:  req.params.To.Address,
		Amount:      req.baseUnits,
		SlippageBps: req.slippageBps,
	})
	if err != nil {
		return nil, err
	}
	if !q.HasRoute() {
		return nil, fmt.Errorf("%w: No swap routes found", types.ErrSwapData)
	}
	if q.OutAmount == "" {
		return nil, fmt.Errorf("%w: quote response has no output amount", types.ErrSwapData)
	}

	inAmount := q.InAmount
	if inAmount == "" {
		inAmount = req.baseUnits
	}

	result := o.newResult(req)
	result.Solana = &types.SolanaQuote{
		InAmount:       inAmount,
		OutAmount:      q.OutAmount,
		RoutePlan:      q.Legs(),
		PriceImpactPct: q.PriceImpactPct,
	}
	return result, nil
}

func (o *Orchestrator) newResult(req request) *types.QuoteResult {
	return &types.QuoteResult{
		RequestID:       req.id,
		Network:         req.params.Network,
		From:            *req.params.From,
		To:              *req.params.To,
		AmountInput:     req.params.Amount,
		AmountBaseUnits: req.baseUnits,
		SlippageBps:     req.slippageBps,
		ReceivedAt:      o.now(),
	}
}

func (o *Orchestrator) post(text string) {
	if o.notifier != nil {
		o.notifier.Post(text)
	}
}

// ErrPending is returned by Pending.Result before the request resolved
var ErrPending = errors.New("quote still pending")

// Pending is an in-flight quote request
type Pending struct {
	ID      uint64
	Network types.NetworkMode

	done     chan struct{}
	result   *types.QuoteResult
	accepted bool
	err      error
}

func (p *Pending) finish(result *types.QuoteResult, accepted bool, err error) {
	p.result, p.accepted, p.err = result, accepted, err
	close(p.done)
}

// Done is closed once the request resolved
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request resolves. A superseded result is returned without error;
// use Accepted to tell it apart from the current quote.
func (p *Pending) Wait(ctx context.Context) (*types.QuoteResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.result, p.err
	}
}

// Result returns the outcome without blocking
func (p *Pending) Result() (*types.QuoteResult, error) {
	select {
	case <-p.done:
		return p.result, p.err
	default:
		return nil, ErrPending
	}
}

// Accepted reports whether the resolved result became the current quote
func (p *Pending) Accepted() bool {
	select {
	case <-p.done:
		return p.accepted
	default:
		return false
	}
}
