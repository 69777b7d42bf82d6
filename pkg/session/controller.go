package session

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dualswap/pkg/client"
	"dualswap/pkg/logger"
	"dualswap/pkg/notify"
	"dualswap/pkg/prefs"
	"dualswap/pkg/quote"
	"dualswap/pkg/swap"
	"dualswap/pkg/types"
	"dualswap/pkg/wallet"
)

// Catalog provides the token list of a network
type Catalog interface {
	Tokens(ctx context.Context, network types.NetworkMode) ([]types.TokenDescriptor, error)
}

// Deps are the collaborators a Controller drives
type Deps struct {
	Prefs     *prefs.Store
	Catalog   Catalog
	Quotes    *quote.Orchestrator
	Swaps     *swap.Executor
	Connector wallet.Connector
	Toasts    *notify.Channel
	Logger    *logrus.Logger
}

// WalletInfo describes the wallet connected for a network
type WalletInfo struct {
	Network   types.NetworkMode
	Connected bool
	Address   string
	Balance   decimal.Decimal
}

// Controller owns the state of one swap session: network, token selections,
// amount and slippage. Selections and settings are persisted as they change.
type Controller struct {
	id        string
	prefs     *prefs.Store
	catalog   Catalog
	quotes    *quote.Orchestrator
	swaps     *swap.Executor
	connector wallet.Connector
	toasts    *notify.Channel
	log       *logrus.Entry

	// writeMu orders state changes with their persisted writes
	writeMu sync.Mutex

	mu      sync.Mutex
	state   types.SwapPreferences
	amount  string
	wallets map[types.NetworkMode]wallet.Session
}

// New restores the persisted preferences and starts a session
func New(deps Deps) *Controller {
	id := uuid.New().String()
	logger.TagSession(deps.Logger, id)

	c := &Controller{
		id:        id,
		prefs:     deps.Prefs,
		catalog:   deps.Catalog,
		quotes:    deps.Quotes,
		swaps:     deps.Swaps,
		connector: deps.Connector,
		toasts:    deps.Toasts,
		log:       logger.Component(deps.Logger, "session"),
		state:     types.DefaultPreferences(),
		wallets:   make(map[types.NetworkMode]wallet.Session),
	}
	if c.prefs != nil {
		c.state = c.prefs.Load()
	}

	c.log.WithFields(logrus.Fields{
		"network":  c.state.Network.String(),
		"slippage": c.state.SlippagePercent,
	}).Debug("session started")
	return c
}

// ID returns the session id
func (c *Controller) ID() string {
	return c.id
}

// Network returns the active network mode
func (c *Controller) Network() types.NetworkMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Network
}

// SetNetwork switches and persists the active network
func (c *Controller) SetNetwork(network types.NetworkMode) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.state.Network = network
	c.mu.Unlock()

	if c.prefs != nil {
		c.prefs.SetNetwork(network)
	}
}

// OverrideNetwork switches the active network for this session only
func (c *Controller) OverrideNetwork(network types.NetworkMode) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Network = network
}

// Slippage returns the slippage tolerance in percent
func (c *Controller) Slippage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SlippagePercent
}

// SetSlippage updates and persists the slippage tolerance
func (c *Controller) SetSlippage(percent float64) error {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 {
		return fmt.Errorf("%w: slippage must be a non-negative number", types.ErrValidation)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.state.SlippagePercent = percent
	c.mu.Unlock()

	if c.prefs != nil {
		c.prefs.SetSlippage(percent)
	}
	return nil
}

// Preferences returns a copy of the session preferences
func (c *Controller) Preferences() types.SwapPreferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selection returns the token pair selected for a network
func (c *Controller) Selection(network types.NetworkMode) types.TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Pair(network)
}

// SelectFrom sets the token to sell on the active network
func (c *Controller) SelectFrom(token *types.TokenDescriptor) {
	c.selectToken(types.SideFrom, token)
}

// SelectTo sets the token to buy on the active network
func (c *Controller) SelectTo(token *types.TokenDescriptor) {
	c.selectToken(types.SideTo, token)
}

func (c *Controller) selectToken(side types.TokenSide, token *types.TokenDescriptor) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	network := c.state.Network
	c.state.SetToken(network, side, token)
	c.mu.Unlock()

	if c.prefs != nil {
		c.prefs.SetToken(network, side, token)
	}
}

// SwapTokens exchanges the from and to tokens of the active network
func (c *Controller) SwapTokens() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	network := c.state.Network
	pair := c.state.Pair(network)
	c.state.SetToken(network, types.SideFrom, pair.To)
	c.state.SetToken(network, types.SideTo, pair.From)
	c.mu.Unlock()

	if c.prefs != nil {
		c.prefs.SetToken(network, types.SideFrom, pair.To)
		c.prefs.SetToken(network, types.SideTo, pair.From)
	}
}

// Amount returns the amount to sell in human units
func (c *Controller) Amount() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amount
}

// SetAmount sets the amount to sell. It is validated when a quote or swap is made.
func (c *Controller) SetAmount(amount string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amount = strings.TrimSpace(amount)
}

// Tokens returns the catalog of the active network
func (c *Controller) Tokens(ctx context.Context) ([]types.TokenDescriptor, error) {
	network := c.Network()
	if c.catalog == nil {
		return nil, fmt.Errorf("%w: no token catalog configured", types.ErrNetwork)
	}

	tokens, err := c.catalog.Tokens(ctx, network)
	if err != nil {
		c.log.WithError(err).WithField("network", network.String()).Warn("failed to load tokens")
		c.post(fmt.Sprintf("Failed to load %s tokens", network.Label()))
		return nil, err
	}
	return tokens, nil
}

// FindToken looks up a token of the active network by address or symbol
func (c *Controller) FindToken(ctx context.Context, query string) (*types.TokenDescriptor, error) {
	tokens, err := c.Tokens(ctx)
	if err != nil {
		return nil, err
	}

	token, ok := client.FindToken(tokens, query)
	if !ok {
		return nil, fmt.Errorf("%w: token %q not found in the %s catalog", types.ErrValidation, query, c.Network().Label())
	}
	return &token, nil
}

// ConnectWallet opens the wallet of the active network, reusing an open one
func (c *Controller) ConnectWallet(ctx context.Context) (wallet.Session, error) {
	network := c.Network()

	c.mu.Lock()
	w, ok := c.wallets[network]
	c.mu.Unlock()
	if ok {
		return w, nil
	}

	if c.connector == nil {
		return nil, fmt.Errorf("%w: no wallet connector configured", types.ErrWallet)
	}
	w, err := c.connector.Connect(ctx, network)
	if err != nil {
		c.log.WithError(err).WithField("network", network.String()).Warn("wallet connection failed")
		return nil, err
	}

	c.mu.Lock()
	c.wallets[network] = w
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"network": network.String(), "address": w.Address()}).Info("wallet connected")
	return w, nil
}

// Wallet describes the wallet of the active network. The balance is fetched when connected.
func (c *Controller) Wallet(ctx context.Context) (WalletInfo, error) {
	network := c.Network()
	info := WalletInfo{Network: network}

	c.mu.Lock()
	w, ok := c.wallets[network]
	c.mu.Unlock()
	if !ok {
		return info, nil
	}

	info.Connected = true
	info.Address = w.Address()
	balance, err := w.Balance(ctx)
	if err != nil {
		return info, err
	}
	info.Balance = balance
	return info, nil
}

// Params returns the current selection as trade parameters
func (c *Controller) Params() types.TradeParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	pair := c.state.Pair(c.state.Network)
	return types.TradeParams{
		Network:         c.state.Network,
		From:            pair.From,
		To:              pair.To,
		Amount:          c.amount,
		SlippagePercent: c.state.SlippagePercent,
	}
}

// RequestQuote starts a quote for the current selection
func (c *Controller) RequestQuote(ctx context.Context) (*quote.Pending, error) {
	return c.quotes.RequestQuote(ctx, c.Params())
}

// CurrentQuote returns the accepted quote of the active network, or nil
func (c *Controller) CurrentQuote() *types.QuoteResult {
	return c.quotes.Current(c.Network())
}

// ExecuteSwap swaps the current selection using the connected wallet.
// No wallet is connected implicitly; without one the swap fails with a wallet error.
func (c *Controller) ExecuteSwap(ctx context.Context) (types.SwapOutcome, *swap.Confirmation) {
	p := c.Params()

	c.mu.Lock()
	w := c.wallets[p.Network]
	c.mu.Unlock()

	return c.swaps.Execute(ctx, p, w)
}

// CurrentSwap returns the state of the most recent swap
func (c *Controller) CurrentSwap() types.SwapOutcome {
	return c.swaps.Current()
}

// Toast returns the visible notification, if any
func (c *Controller) Toast() (notify.ToastMessage, bool) {
	if c.toasts == nil {
		return notify.ToastMessage{}, false
	}
	return c.toasts.Current()
}

// Close releases wallets and stops the notification timer
func (c *Controller) Close() {
	c.mu.Lock()
	wallets := c.wallets
	c.wallets = make(map[types.NetworkMode]wallet.Session)
	c.mu.Unlock()

	for _, w := range wallets {
		w.Close()
	}
	if c.toasts != nil {
		c.toasts.Close()
	}
}

func (c *Controller) post(text string) {
	if c.toasts != nil {
		c.toasts.Post(text)
	}
}
