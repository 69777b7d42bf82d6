package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualswap/pkg/client"
	"dualswap/pkg/types"
	"dualswap/pkg/wallet"
)

var (
	weth = &types.TokenDescriptor{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18}
	usdc = &types.TokenDescriptor{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6}
	sol  = &types.TokenDescriptor{Address: "So11111111111111111111111111111111111111112", Symbol: "SOL", Decimals: 9}
	susd = &types.TokenDescriptor{Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6}

	evmParams    = types.TradeParams{Network: types.NetworkEVM, From: weth, To: usdc, Amount: "1.5", SlippagePercent: 0.5}
	solanaParams = types.TradeParams{Network: types.NetworkSolana, From: sol, To: susd, Amount: "2", SlippagePercent: 1}
)

type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) Post(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type fakeEVMWallet struct {
	address  string
	sendErr  error
	waitErr  error
	release  chan struct{}
	mu       sync.Mutex
	sent     []wallet.EVMTxRequest
	accounts int
}

func newFakeEVMWallet() *fakeEVMWallet {
	return &fakeEVMWallet{address: "0x00000000000000000000000000000000000000aa", release: make(chan struct{})}
}

func (f *fakeEVMWallet) Network() types.NetworkMode { return types.NetworkEVM }
func (f *fakeEVMWallet) Address() string            { return f.address }
func (f *fakeEVMWallet) Close()                     {}

func (f *fakeEVMWallet) Balance(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

func (f *fakeEVMWallet) RequestAccounts(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts++
	return []string{f.address}, nil
}

func (f *fakeEVMWallet) SendTransaction(_ context.Context, req wallet.EVMTxRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, req)
	return "0xfeed", nil
}

func (f *fakeEVMWallet) WaitConfirmed(ctx context.Context, hash string) error {
	select {
	case <-f.release:
		return f.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeSubmitter struct {
	mu  sync.Mutex
	txs []*solana.Transaction
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, tx *solana.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.txs = append(f.txs, tx)
	return tx.Signatures[0].String(), nil
}

type oneInchServer struct {
	hits  atomic.Int32
	query atomic.Value
	body  string
}

func newOneInchServer(t *testing.T, body string) (*oneInchServer, *client.OneInchClient) {
	t.Helper()
	s := &oneInchServer{body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.query.Store(r.URL.Query())
		_, _ = w.Write([]byte(s.body))
	}))
	t.Cleanup(srv.Close)
	return s, client.NewOneInchClient(client.Options{BaseURL: srv.URL})
}

const swapBody = `{"toAmount":"4500000000","tx":{"from":"0x00000000000000000000000000000000000000aa","to":"0x1111111254eeb25477b68fb85ed929f73a960582","data":"0x12aa3caf","value":"1500000000000000000","gas":250000,"gasPrice":"1"}}`

func newExecutor(t *testing.T, opts Options) (*Executor, *recorder) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	rec := &recorder{}
	opts.Notifier = rec
	opts.Logger = log
	return NewExecutor(opts), rec
}

func waitConfirmation(t *testing.T, c *Confirmation) types.SwapOutcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := c.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestExecuteEVM_PendingThenConfirmed(t *testing.T) {
	server, oneInch := newOneInchServer(t, swapBody)
	exec, rec := newExecutor(t, Options{EVM: oneInch, ChainID: 137})
	w := newFakeEVMWallet()

	var statuses []types.SwapStatus
	var mu sync.Mutex
	exec.OnOutcome(func(o types.SwapOutcome) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, o.Status)
	})

	outcome, conf := exec.Execute(context.Background(), evmParams, w)
	require.NotNil(t, conf)
	assert.Equal(t, types.SwapPending, outcome.Status)
	assert.Equal(t, "0xfeed", outcome.TxHandle)
	assert.False(t, outcome.IsTerminal())
	assert.Equal(t, types.SwapPending, exec.Current().Status)

	q := server.query.Load().(url.Values)
	assert.Equal(t, []string{"1500000000000000000"}, q["amount"])
	assert.Equal(t, []string{w.address}, q["fromAddress"])
	assert.Equal(t, []string{"0.5"}, q["slippage"])
	assert.Equal(t, []string{"true"}, q["disableEstimate"])

	require.Len(t, w.sent, 1)
	assert.Equal(t, "0x1111111254eeb25477b68fb85ed929f73a960582", w.sent[0].To)
	assert.Equal(t, uint64(250000), w.sent[0].Gas)

	close(w.release)
	final := waitConfirmation(t, conf)
	assert.Equal(t, types.SwapConfirmed, final.Status)
	assert.Equal(t, "0xfeed", final.TxHandle)
	assert.Equal(t, types.SwapConfirmed, exec.Current().Status)

	assert.Equal(t, []string{"Swap Tx sent: 0xfeed", "Swap confirmed!"}, rec.all())
	mu.Lock()
	assert.Equal(t, []types.SwapStatus{types.SwapPending, types.SwapConfirmed}, statuses)
	mu.Unlock()
}

func TestExecuteEVM_ConfirmationFailure(t *testing.T) {
	_, oneInch := newOneInchServer(t, swapBody)
	exec, rec := newExecutor(t, Options{EVM: oneInch})
	w := newFakeEVMWallet()
	w.waitErr = errors.New("transaction 0xfeed reverted in block 10")

	_, conf := exec.Execute(context.Background(), evmParams, w)
	require.NotNil(t, conf)
	close(w.release)

	final := waitConfirmation(t, conf)
	assert.Equal(t, types.SwapFailed, final.Status)
	assert.Equal(t, "0xfeed", final.TxHandle)
	assert.Contains(t, final.Reason, "reverted")
	assert.Equal(t, "Swap failed: transaction 0xfeed reverted in block 10", rec.all()[1])
}

func TestExecuteEVM_ConfirmTimeout(t *testing.T) {
	_, oneInch := newOneInchServer(t, swapBody)
	exec, _ := newExecutor(t, Options{EVM: oneInch, ConfirmTimeout: 10 * time.Millisecond})

	_, conf := exec.Execute(context.Background(), evmParams, newFakeEVMWallet())
	final := waitConfirmation(t, conf)
	assert.Equal(t, types.SwapFailed, final.Status)
	assert.ErrorIs(t, final.Err, context.DeadlineExceeded)
}

func TestExecute_MissingWalletFailsBeforeNetwork(t *testing.T) {
	server, oneInch := newOneInchServer(t, swapBody)
	jupHits := atomic.Int32{}
	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { jupHits.Add(1) }))
	t.Cleanup(jupSrv.Close)

	exec, rec := newExecutor(t, Options{
		EVM:       oneInch,
		Solana:    client.NewJupiterClient(client.Options{BaseURL: jupSrv.URL}),
		Submitter: &fakeSubmitter{},
	})

	outcome, conf := exec.Execute(context.Background(), evmParams, nil)
	assert.Nil(t, conf)
	assert.Equal(t, types.SwapFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, types.ErrWallet)

	// a wallet of the other network does not count
	solWallet := wallet.NewSolanaWalletWithClient(nil, solana.NewWallet().PrivateKey, "", nil)
	outcome, _ = exec.Execute(context.Background(), evmParams, solWallet)
	assert.ErrorIs(t, outcome.Err, types.ErrWallet)

	outcome, _ = exec.Execute(context.Background(), solanaParams, nil)
	assert.ErrorIs(t, outcome.Err, types.ErrWallet)
	outcome, _ = exec.Execute(context.Background(), solanaParams, newFakeEVMWallet())
	assert.ErrorIs(t, outcome.Err, types.ErrWallet)

	assert.Equal(t, int32(0), server.hits.Load())
	assert.Equal(t, int32(0), jupHits.Load())
	assert.Equal(t, []string{MsgSelectEVM, MsgSelectEVM, MsgSelectSolana, MsgSelectSolana}, rec.all())
}

func TestExecute_IncompleteSelectionIsValidationError(t *testing.T) {
	server, oneInch := newOneInchServer(t, swapBody)
	exec, _ := newExecutor(t, Options{EVM: oneInch})

	params := evmParams
	params.Amount = ""
	outcome, _ := exec.Execute(context.Background(), params, newFakeEVMWallet())
	assert.ErrorIs(t, outcome.Err, types.ErrValidation)

	params = evmParams
	params.Amount = "abc"
	outcome, _ = exec.Execute(context.Background(), params, newFakeEVMWallet())
	assert.ErrorIs(t, outcome.Err, types.ErrValidation)
	assert.Equal(t, int32(0), server.hits.Load())
}

func TestExecuteEVM_InvalidAmountSkipsWallet(t *testing.T) {
	server, oneInch := newOneInchServer(t, swapBody)
	exec, _ := newExecutor(t, Options{EVM: oneInch})
	w := newFakeEVMWallet()

	for _, amount := range []string{"abc", "1e5", "0", "-1"} {
		params := evmParams
		params.Amount = amount
		outcome, conf := exec.Execute(context.Background(), params, w)
		assert.Nil(t, conf, amount)
		assert.Equal(t, types.SwapFailed, outcome.Status, amount)
		assert.ErrorIs(t, outcome.Err, types.ErrValidation, amount)
	}

	assert.Equal(t, 0, w.accounts)
	assert.Empty(t, w.sent)
	assert.Equal(t, int32(0), server.hits.Load())
}

func TestExecuteEVM_MissingTxIsSwapDataError(t *testing.T) {
	_, oneInch := newOneInchServer(t, `{"toAmount":"1"}`)
	exec, rec := newExecutor(t, Options{EVM: oneInch})
	w := newFakeEVMWallet()

	outcome, conf := exec.Execute(context.Background(), evmParams, w)
	assert.Nil(t, conf)
	assert.Equal(t, types.SwapFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, types.ErrSwapData)
	assert.Equal(t, "Swap transaction data missing", outcome.Reason)
	assert.Empty(t, w.sent)
	assert.Equal(t, []string{"Swap failed: Swap transaction data missing"}, rec.all())
}

func TestExecuteEVM_WalletRejects(t *testing.T) {
	_, oneInch := newOneInchServer(t, swapBody)
	exec, _ := newExecutor(t, Options{EVM: oneInch})
	w := newFakeEVMWallet()
	w.sendErr = errors.New("user rejected")

	outcome, conf := exec.Execute(context.Background(), evmParams, w)
	assert.Nil(t, conf)
	assert.Equal(t, types.SwapFailed, outcome.Status)
	assert.Equal(t, "user rejected", outcome.Reason)
}

func TestExecuteEVM_OlderConfirmationDoesNotOverwriteNewerSwap(t *testing.T) {
	_, oneInch := newOneInchServer(t, swapBody)
	exec, _ := newExecutor(t, Options{EVM: oneInch})

	first := newFakeEVMWallet()
	_, firstConf := exec.Execute(context.Background(), evmParams, first)
	require.NotNil(t, firstConf)

	second := newFakeEVMWallet()
	second.sendErr = errors.New("nope")
	latest, _ := exec.Execute(context.Background(), evmParams, second)
	assert.Equal(t, types.SwapFailed, latest.Status)

	close(first.release)
	waitConfirmation(t, firstConf)
	assert.Equal(t, types.SwapFailed, exec.Current().Status)
}

// jupiterServer serves a v6 quote and a swap transaction paying from payer
type jupiterServer struct {
	quoteHits atomic.Int32
	swapHits  atomic.Int32
	swapBody  atomic.Value
	quote     string
	swapTx    func() string
}

func newJupiterServer(t *testing.T, quote string, swapTx func() string) (*jupiterServer, *client.JupiterClient) {
	t.Helper()
	s := &jupiterServer{quote: quote, swapTx: swapTx}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			s.quoteHits.Add(1)
			_, _ = w.Write([]byte(s.quote))
		case "/swap":
			s.swapHits.Add(1)
			body, _ := io.ReadAll(r.Body)
			s.swapBody.Store(body)
			resp, _ := json.Marshal(map[string]any{"swapTransaction": s.swapTx(), "lastValidBlockHeight": 1})
			_, _ = w.Write(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return s, client.NewJupiterClient(client.Options{BaseURL: srv.URL})
}

const routedQuote = `{"inputMint":"So11111111111111111111111111111111111111112","outputMint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","inAmount":"2000000000","outAmount":"300000000","priceImpactPct":"0.001","routePlan":[{"swapInfo":{"label":"Orca","inAmount":"2000000000","outAmount":"300000000"},"percent":100}]}`

func unsignedTransfer(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(5000, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{7},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestExecuteSolana_SignsAndSubmitsFreshRoute(t *testing.T) {
	w := wallet.NewSolanaWalletWithClient(nil, solana.NewWallet().PrivateKey, "", nil)
	jup, jupClient := newJupiterServer(t, routedQuote, func() string { return unsignedTransfer(t, w.PublicKey()) })
	submitter := &fakeSubmitter{}
	exec, rec := newExecutor(t, Options{Solana: jupClient, Submitter: submitter})

	outcome, conf := exec.Execute(context.Background(), solanaParams, w)
	assert.Nil(t, conf)
	require.Equal(t, types.SwapPending, outcome.Status, outcome.Reason)
	assert.True(t, outcome.IsTerminal())

	assert.Equal(t, int32(1), jup.quoteHits.Load())
	assert.Equal(t, int32(1), jup.swapHits.Load())

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(jup.swapBody.Load().([]byte), &body))
	assert.JSONEq(t, routedQuote, string(body["quoteResponse"]))
	assert.JSONEq(t, `"`+w.Address()+`"`, string(body["userPublicKey"]))
	assert.JSONEq(t, `true`, string(body["wrapAndUnwrapSol"]))
	assert.JSONEq(t, `0`, string(body["computeUnitPriceMicroLamports"]))

	require.Len(t, submitter.txs, 1)
	assert.NoError(t, submitter.txs[0].VerifySignatures())
	assert.Equal(t, submitter.txs[0].Signatures[0].String(), outcome.TxHandle)
	assert.Equal(t, []string{"Swap sent, Txid: " + outcome.TxHandle}, rec.all())

	// a second swap fetches a new route rather than reusing the first
	exec.Execute(context.Background(), solanaParams, w)
	assert.Equal(t, int32(2), jup.quoteHits.Load())
}

func TestExecuteSolana_NoRoute(t *testing.T) {
	w := wallet.NewSolanaWalletWithClient(nil, solana.NewWallet().PrivateKey, "", nil)
	jup, jupClient := newJupiterServer(t, `{"data":[]}`, func() string { return "" })
	exec, rec := newExecutor(t, Options{Solana: jupClient, Submitter: &fakeSubmitter{}})

	outcome, _ := exec.Execute(context.Background(), solanaParams, w)
	assert.Equal(t, types.SwapFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, types.ErrSwapData)
	assert.Equal(t, int32(0), jup.swapHits.Load())
	assert.Equal(t, []string{"Solana swap error: No swap routes found"}, rec.all())
}

func TestExecuteSolana_MissingTransaction(t *testing.T) {
	w := wallet.NewSolanaWalletWithClient(nil, solana.NewWallet().PrivateKey, "", nil)
	_, jupClient := newJupiterServer(t, routedQuote, func() string { return "" })
	submitter := &fakeSubmitter{}
	exec, _ := newExecutor(t, Options{Solana: jupClient, Submitter: submitter})

	outcome, _ := exec.Execute(context.Background(), solanaParams, w)
	assert.ErrorIs(t, outcome.Err, types.ErrSwapData)
	assert.Equal(t, "Swap transaction missing", outcome.Reason)
	assert.Empty(t, submitter.txs)
}

func TestExecuteSolana_SubmitFailure(t *testing.T) {
	w := wallet.NewSolanaWalletWithClient(nil, solana.NewWallet().PrivateKey, "", nil)
	_, jupClient := newJupiterServer(t, routedQuote, func() string { return unsignedTransfer(t, w.PublicKey()) })
	submitter := &fakeSubmitter{err: errors.New("blockhash not found")}
	exec, _ := newExecutor(t, Options{Solana: jupClient, Submitter: submitter})

	outcome, _ := exec.Execute(context.Background(), solanaParams, w)
	assert.Equal(t, types.SwapFailed, outcome.Status)
	assert.Equal(t, "blockhash not found", outcome.Reason)
}

func TestOnOutcome_SlowListenerKeepsNewestLast(t *testing.T) {
	_, oneInch := newOneInchServer(t, swapBody)
	exec, _ := newExecutor(t, Options{EVM: oneInch})

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var mu sync.Mutex
	var seen []types.SwapStatus
	exec.OnOutcome(func(o types.SwapOutcome) {
		if o.Status == types.SwapPending {
			close(entered)
			<-unblock
		}
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o.Status)
	})

	first := newFakeEVMWallet()
	firstDone := make(chan *Confirmation, 1)
	go func() {
		_, conf := exec.Execute(context.Background(), evmParams, first)
		firstDone <- conf
	}()
	<-entered

	second := newFakeEVMWallet()
	second.sendErr = errors.New("nope")
	secondDone := make(chan types.SwapOutcome, 1)
	go func() {
		outcome, _ := exec.Execute(context.Background(), evmParams, second)
		secondDone <- outcome
	}()

	close(unblock)
	firstConf := <-firstDone
	assert.Equal(t, types.SwapFailed, (<-secondDone).Status)

	close(first.release)
	waitConfirmation(t, firstConf)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.SwapStatus{types.SwapPending, types.SwapFailed}, seen)
	assert.Equal(t, types.SwapFailed, exec.Current().Status)
}
