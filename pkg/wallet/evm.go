package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dualswap/pkg/logger"
	"dualswap/pkg/types"
)

// EVMConfig configures the EVM wallet
type EVMConfig struct {
	RPCURL       string
	PrivateKey   string
	ChainID      int64
	PollInterval time.Duration
}

// EVMBackend is the subset of ethclient.Client used by the wallet
type EVMBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	Close()
}

// EVMWallet signs with a local private key and sends through an RPC node
type EVMWallet struct {
	backend      EVMBackend
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	pollInterval time.Duration
	log          *logrus.Entry
}

// NewEVMWallet dials the configured RPC endpoint and unlocks the key
func NewEVMWallet(ctx context.Context, cfg EVMConfig, log *logrus.Logger) (*EVMWallet, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("%w: RPC URL not configured for EVM", types.ErrWallet)
	}

	privateKey, err := ParseEVMKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to RPC endpoint: %w", types.ErrWallet, err)
	}

	w := NewEVMWalletWithBackend(client, privateKey, cfg.ChainID, log)
	if cfg.PollInterval > 0 {
		w.pollInterval = cfg.PollInterval
	}
	return w, nil
}

// NewEVMWalletWithBackend builds a wallet on an existing backend
func NewEVMWalletWithBackend(backend EVMBackend, key *ecdsa.PrivateKey, chainID int64, log *logrus.Logger) *EVMWallet {
	if chainID <= 0 {
		chainID = types.DefaultEVMChainID
	}
	return &EVMWallet{
		backend:      backend,
		privateKey:   key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:      big.NewInt(chainID),
		pollInterval: defaultPollInterval,
		log:          logger.Component(log, "evm-wallet"),
	}
}

func (w *EVMWallet) Network() types.NetworkMode { return types.NetworkEVM }
func (w *EVMWallet) Address() string            { return w.address.Hex() }

// Close closes the client connection
func (w *EVMWallet) Close() {
	if w.backend != nil {
		w.backend.Close()
	}
}

// RequestAccounts checks that the node serves the configured chain and returns the signer address
func (w *EVMWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get chain id: %w", types.ErrWallet, err)
	}
	if id.Cmp(w.chainID) != 0 {
		return nil, fmt.Errorf("%w: RPC serves chain %s, expected %s", types.ErrWallet, id, w.chainID)
	}
	return []string{w.Address()}, nil
}

// Balance returns the native balance in ether
func (w *EVMWallet) Balance(ctx context.Context) (decimal.Decimal, error) {
	balance, err := w.backend.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to get balance: %w", types.ErrWallet, err)
	}
	return decimal.NewFromBigInt(balance, -18), nil
}

// SendTransaction signs the aggregator payload and broadcasts it
func (w *EVMWallet) SendTransaction(ctx context.Context, req EVMTxRequest) (string, error) {
	if !common.IsHexAddress(req.To) {
		return "", fmt.Errorf("%w: invalid destination address: %q", types.ErrSwapData, req.To)
	}
	if req.From != "" && !strings.EqualFold(req.From, w.Address()) {
		return "", fmt.Errorf("%w: transaction is for %s, wallet is %s", types.ErrWallet, req.From, w.Address())
	}
	to := common.HexToAddress(req.To)

	data, err := decodeData(req.Data)
	if err != nil {
		return "", fmt.Errorf("%w: invalid transaction data: %w", types.ErrSwapData, err)
	}

	value, err := parseBig(req.Value)
	if err != nil {
		return "", fmt.Errorf("%w: invalid transaction value: %w", types.ErrSwapData, err)
	}

	// Get nonce
	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("%w: failed to get nonce: %w", types.ErrWallet, err)
	}

	// Gas price from the payload, otherwise from the node
	gasPrice, err := parseBig(req.GasPrice)
	if err != nil {
		return "", fmt.Errorf("%w: invalid gas price: %w", types.ErrSwapData, err)
	}
	if gasPrice.Sign() == 0 {
		gasPrice, err = w.backend.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: failed to get gas price: %w", types.ErrWallet, err)
		}
	}

	// Gas limit from the payload, otherwise estimated with a 20% buffer
	gasLimit := req.Gas
	if gasLimit == 0 {
		estimated, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  w.address,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return "", fmt.Errorf("%w: failed to estimate gas: %w", types.ErrWallet, err)
		}
		gasLimit = estimated * 120 / 100
	}

	tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)

	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(w.chainID), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: failed to sign transaction: %w", types.ErrWallet, err)
	}

	if err := w.backend.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("%w: failed to send transaction: %w", types.ErrWallet, err)
	}

	hash := signedTx.Hash().Hex()
	w.log.WithFields(logrus.Fields{"hash": hash, "nonce": nonce, "gas": gasLimit}).Info("transaction sent")
	return hash, nil
}

// WaitConfirmed polls for the receipt until the transaction is mined
func (w *EVMWallet) WaitConfirmed(ctx context.Context, hash string) error {
	txHash := common.HexToHash(hash)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted in block %s", hash, receipt.BlockNumber)
			}
			w.log.WithFields(logrus.Fields{"hash": hash, "block": receipt.BlockNumber}).Info("transaction confirmed")
			return nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			w.log.WithError(err).WithField("hash", hash).Debug("receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// TxStatus retrieves the current state of a transaction
func (w *EVMWallet) TxStatus(ctx context.Context, hash string) (*TxInfo, error) {
	return EVMTxStatus(ctx, w.backend, hash)
}

// DialEVM connects to an RPC endpoint without unlocking a key, for read-only lookups
func DialEVM(ctx context.Context, rpcURL string) (EVMBackend, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("%w: RPC URL not configured for EVM", types.ErrNetwork)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to RPC endpoint: %w", types.ErrNetwork, err)
	}
	return client, nil
}

// EVMTxStatus looks up a transaction and its receipt
func EVMTxStatus(ctx context.Context, backend EVMBackend, hash string) (*TxInfo, error) {
	if !isTxHash(hash) {
		return nil, fmt.Errorf("%w: invalid transaction hash %q", types.ErrValidation, hash)
	}
	info := &TxInfo{Network: types.NetworkEVM, Hash: hash, Status: types.SwapPending}

	txHash := common.HexToHash(hash)
	tx, isPending, err := backend.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return info, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	info.Found = true
	info.Fee = tx.GasPrice().String()
	if isPending {
		return info, nil
	}

	receipt, err := backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return info, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	if receipt.BlockNumber != nil {
		info.Block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		info.Status = types.SwapConfirmed
	} else {
		info.Status = types.SwapFailed
		info.Detail = "execution reverted"
	}
	return info, nil
}

func isTxHash(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func decodeData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// parseBig parses a decimal or 0x-prefixed hex integer; empty means zero
func parseBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
