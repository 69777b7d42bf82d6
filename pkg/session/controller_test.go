package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualswap/pkg/client"
	"dualswap/pkg/notify"
	"dualswap/pkg/prefs"
	"dualswap/pkg/quote"
	"dualswap/pkg/swap"
	"dualswap/pkg/types"
	"dualswap/pkg/wallet"
)

var (
	weth = types.TokenDescriptor{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18}
	usdc = types.TokenDescriptor{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Name: "USD Coin", Decimals: 6}
	sol  = types.TokenDescriptor{Address: "So11111111111111111111111111111111111111112", Symbol: "SOL", Name: "Wrapped SOL", Decimals: 9}
)

type fakeCatalog struct {
	tokens map[types.NetworkMode][]types.TokenDescriptor
	err    error
	calls  int
}

func (f *fakeCatalog) Tokens(_ context.Context, network types.NetworkMode) ([]types.TokenDescriptor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens[network], nil
}

type fakeSession struct {
	network types.NetworkMode
	address string
	closed  bool
}

func (f *fakeSession) Network() types.NetworkMode { return f.network }
func (f *fakeSession) Address() string            { return f.address }
func (f *fakeSession) Close()                     { f.closed = true }

func (f *fakeSession) Balance(context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("1.25"), nil
}

type fakeConnector struct {
	calls int
	err   error
}

func (f *fakeConnector) Connect(_ context.Context, network types.NetworkMode) (wallet.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fakeSession{network: network, address: "addr-" + network.String()}, nil
}

type stubQuoter struct{}

func (stubQuoter) Quote(_ context.Context, req client.OneInchQuoteRequest) (*client.OneInchQuote, error) {
	return &client.OneInchQuote{ToAmount: "4500000000", Gas: 21000}, nil
}

// stallingBackend blocks the first network write until released
type stallingBackend struct {
	*prefs.MemoryBackend
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *stallingBackend) Set(key, value string) error {
	if key == prefs.KeyNetwork {
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	}
	return b.MemoryBackend.Set(key, value)
}

type fixture struct {
	ctrl      *Controller
	backend   *prefs.MemoryBackend
	catalog   *fakeCatalog
	connector *fakeConnector
	toasts    *notify.Channel
	hook      *logtest.Hook
	log       *logrus.Logger
}

func newFixture(t *testing.T, backend *prefs.MemoryBackend) *fixture {
	t.Helper()
	if backend == nil {
		backend = prefs.NewMemoryBackend()
	}
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	toasts := notify.NewChannel(time.Minute)
	f := &fixture{
		backend: backend,
		catalog: &fakeCatalog{tokens: map[types.NetworkMode][]types.TokenDescriptor{
			types.NetworkEVM:    {weth, usdc},
			types.NetworkSolana: {sol},
		}},
		connector: &fakeConnector{},
		toasts:    toasts,
		hook:      hook,
		log:       log,
	}
	f.ctrl = New(Deps{
		Prefs:     prefs.NewStore(backend, log),
		Catalog:   f.catalog,
		Quotes:    quote.NewOrchestrator(quote.Options{EVM: stubQuoter{}, Notifier: toasts, Logger: log}),
		Swaps:     swap.NewExecutor(swap.Options{Notifier: toasts, Logger: log}),
		Connector: f.connector,
		Toasts:    toasts,
		Logger:    log,
	})
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *fixture) reload() types.SwapPreferences {
	return prefs.NewStore(f.backend, f.log).Load()
}

func TestNewRestoresPreferences(t *testing.T) {
	backend := prefs.NewMemoryBackend()
	store := prefs.NewStore(backend, nil)
	store.SetNetwork(types.NetworkSolana)
	store.SetSlippage(1.5)
	store.SetToken(types.NetworkSolana, types.SideFrom, &sol)

	f := newFixture(t, backend)
	assert.Equal(t, types.NetworkSolana, f.ctrl.Network())
	assert.Equal(t, 1.5, f.ctrl.Slippage())
	assert.Equal(t, &sol, f.ctrl.Selection(types.NetworkSolana).From)
	assert.NotEmpty(t, f.ctrl.ID())
}

func TestSetNetworkPersists(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, types.NetworkEVM, f.ctrl.Network())

	f.ctrl.SetNetwork(types.NetworkSolana)
	assert.Equal(t, types.NetworkSolana, f.reload().Network)

	f.ctrl.OverrideNetwork(types.NetworkEVM)
	assert.Equal(t, types.NetworkEVM, f.ctrl.Network())
	assert.Equal(t, types.NetworkSolana, f.reload().Network)
}

func TestSetNetworkKeepsMemoryAndStorageInStep(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	backend := &stallingBackend{
		MemoryBackend: prefs.NewMemoryBackend(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	ctrl := New(Deps{Prefs: prefs.NewStore(backend, log), Logger: log})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctrl.SetNetwork(types.NetworkSolana)
	}()
	<-backend.entered

	go func() {
		defer wg.Done()
		ctrl.SetNetwork(types.NetworkEVM)
	}()
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	stored := prefs.NewStore(backend.MemoryBackend, log).Load()
	assert.Equal(t, ctrl.Network(), stored.Network)
	assert.Equal(t, types.NetworkEVM, stored.Network)
}

func TestSetSlippage(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ctrl.SetSlippage(1))
	assert.Equal(t, 1.0, f.ctrl.Slippage())
	assert.Equal(t, 1.0, f.reload().SlippagePercent)

	for _, bad := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		err := f.ctrl.SetSlippage(bad)
		assert.ErrorIs(t, err, types.ErrValidation)
	}
	assert.Equal(t, 1.0, f.ctrl.Slippage())
	assert.Equal(t, 1.0, f.reload().SlippagePercent)
}

func TestSelectionsArePerNetworkAndPersisted(t *testing.T) {
	f := newFixture(t, nil)

	f.ctrl.SelectFrom(&weth)
	f.ctrl.SelectTo(&usdc)
	f.ctrl.SetNetwork(types.NetworkSolana)
	f.ctrl.SelectFrom(&sol)

	evm := f.ctrl.Selection(types.NetworkEVM)
	assert.Equal(t, "WETH", evm.From.Symbol)
	assert.Equal(t, "USDC", evm.To.Symbol)
	assert.Equal(t, "SOL", f.ctrl.Selection(types.NetworkSolana).From.Symbol)
	assert.Nil(t, f.ctrl.Selection(types.NetworkSolana).To)

	saved := f.reload()
	assert.Equal(t, &weth, saved.EVM.From)
	assert.Equal(t, &usdc, saved.EVM.To)
	assert.Equal(t, &sol, saved.Solana.From)

	f.ctrl.SetNetwork(types.NetworkEVM)
	f.ctrl.SwapTokens()
	evm = f.ctrl.Selection(types.NetworkEVM)
	assert.Equal(t, "USDC", evm.From.Symbol)
	assert.Equal(t, "WETH", evm.To.Symbol)
	saved = f.reload()
	assert.Equal(t, &usdc, saved.EVM.From)
	assert.Equal(t, &weth, saved.EVM.To)
}

func TestTokensFailureNotifies(t *testing.T) {
	f := newFixture(t, nil)
	f.catalog.err = errors.New("boom")

	_, err := f.ctrl.Tokens(context.Background())
	assert.Error(t, err)
	msg, ok := f.ctrl.Toast()
	require.True(t, ok)
	assert.Equal(t, "Failed to load EVM tokens", msg.Text)

	f.ctrl.SetNetwork(types.NetworkSolana)
	_, err = f.ctrl.Tokens(context.Background())
	assert.Error(t, err)
	msg, _ = f.ctrl.Toast()
	assert.Equal(t, "Failed to load Solana tokens", msg.Text)
}

func TestFindToken(t *testing.T) {
	f := newFixture(t, nil)

	token, err := f.ctrl.FindToken(context.Background(), "usdc")
	require.NoError(t, err)
	assert.Equal(t, usdc.Address, token.Address)

	token, err = f.ctrl.FindToken(context.Background(), weth.Address)
	require.NoError(t, err)
	assert.Equal(t, "WETH", token.Symbol)

	_, err = f.ctrl.FindToken(context.Background(), "SOL")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestConnectWalletIsCachedPerNetwork(t *testing.T) {
	f := newFixture(t, nil)

	info, err := f.ctrl.Wallet(context.Background())
	require.NoError(t, err)
	assert.False(t, info.Connected)

	w, err := f.ctrl.ConnectWallet(context.Background())
	require.NoError(t, err)
	again, err := f.ctrl.ConnectWallet(context.Background())
	require.NoError(t, err)
	assert.Same(t, w, again)
	assert.Equal(t, 1, f.connector.calls)

	info, err = f.ctrl.Wallet(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Connected)
	assert.Equal(t, "addr-evm", info.Address)
	assert.Equal(t, "1.25", info.Balance.String())

	f.ctrl.SetNetwork(types.NetworkSolana)
	_, err = f.ctrl.ConnectWallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.connector.calls)

	f.ctrl.Close()
	assert.True(t, w.(*fakeSession).closed)
}

func TestConnectWalletFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.connector.err = errors.New("wallet error: no EVM wallet configured")

	_, err := f.ctrl.ConnectWallet(context.Background())
	assert.Error(t, err)
	info, _ := f.ctrl.Wallet(context.Background())
	assert.False(t, info.Connected)
}

func TestRequestQuoteUsesSelection(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.SelectFrom(&weth)
	f.ctrl.SelectTo(&usdc)
	f.ctrl.SetAmount(" 1.5 ")
	assert.Equal(t, "1.5", f.ctrl.Amount())

	pending, err := f.ctrl.RequestQuote(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := pending.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, pending.Accepted())
	assert.Equal(t, "1500000000000000000", result.AmountBaseUnits)
	assert.Equal(t, result, f.ctrl.CurrentQuote())

	f.ctrl.SetNetwork(types.NetworkSolana)
	assert.Nil(t, f.ctrl.CurrentQuote())
}

func TestRequestQuoteWithoutSelection(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.ctrl.RequestQuote(context.Background())
	assert.ErrorIs(t, err, types.ErrValidation)
	msg, ok := f.ctrl.Toast()
	require.True(t, ok)
	assert.Equal(t, quote.MsgSelectTokens, msg.Text)
}

func TestExecuteSwapDoesNotConnectWallet(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.SelectFrom(&weth)
	f.ctrl.SelectTo(&usdc)
	f.ctrl.SetAmount("1")

	outcome, conf := f.ctrl.ExecuteSwap(context.Background())
	assert.Nil(t, conf)
	assert.Equal(t, types.SwapFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, types.ErrWallet)
	assert.Equal(t, 0, f.connector.calls)
	assert.Equal(t, types.SwapFailed, f.ctrl.CurrentSwap().Status)

	msg, _ := f.ctrl.Toast()
	assert.Equal(t, swap.MsgSelectEVM, msg.Text)
}

func TestLogLinesCarrySessionID(t *testing.T) {
	f := newFixture(t, nil)
	f.catalog.err = errors.New("boom")
	_, _ = f.ctrl.Tokens(context.Background())

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, f.ctrl.ID(), entry.Data["session"])
	assert.Equal(t, "session", entry.Data["component"])
}
