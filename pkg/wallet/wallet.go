package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dualswap/pkg/types"
)

// Session is a connected wallet for one network
type Session interface {
	Network() types.NetworkMode
	Address() string
	// Balance returns the native balance in whole units (ETH, SOL)
	Balance(ctx context.Context) (decimal.Decimal, error)
	Close()
}

// EVMTxRequest is an unsigned EVM transaction as returned by the swap aggregator
type EVMTxRequest struct {
	From     string
	To       string
	Data     string
	Value    string
	Gas      uint64
	GasPrice string
}

// EVMSession is a wallet able to sign and send EVM transactions
type EVMSession interface {
	Session
	RequestAccounts(ctx context.Context) ([]string, error)
	SendTransaction(ctx context.Context, req EVMTxRequest) (string, error)
	WaitConfirmed(ctx context.Context, hash string) error
}

// SolanaSession is a wallet able to sign Solana transactions
type SolanaSession interface {
	Session
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Submitter broadcasts signed Solana transactions
type Submitter interface {
	Submit(ctx context.Context, tx *solana.Transaction) (string, error)
}

// Connector opens a wallet session for a network
type Connector interface {
	Connect(ctx context.Context, network types.NetworkMode) (Session, error)
}

// TxInfo is the on-chain state of a submitted transaction
type TxInfo struct {
	Network types.NetworkMode
	Hash    string
	Found   bool
	Status  types.SwapStatus
	Block   uint64
	Fee     string
	Detail  string
}

// Config holds the settings for both wallet kinds
type Config struct {
	EVM    EVMConfig
	Solana SolanaConfig
}

// ConfigConnector opens wallets from locally configured keys
type ConfigConnector struct {
	cfg Config
	log *logrus.Logger
}

// NewConfigConnector creates a connector backed by configured private keys
func NewConfigConnector(cfg Config, log *logrus.Logger) *ConfigConnector {
	return &ConfigConnector{cfg: cfg, log: log}
}

// Connect dials the network RPC and unlocks the configured key
func (c *ConfigConnector) Connect(ctx context.Context, network types.NetworkMode) (Session, error) {
	switch network {
	case types.NetworkSolana:
		if strings.TrimSpace(c.cfg.Solana.PrivateKey) == "" {
			return nil, fmt.Errorf("%w: no Solana wallet configured (set solana.private_key)", types.ErrWallet)
		}
		w, err := NewSolanaWallet(c.cfg.Solana, c.log)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		if strings.TrimSpace(c.cfg.EVM.PrivateKey) == "" {
			return nil, fmt.Errorf("%w: no EVM wallet configured (set evm.private_key)", types.ErrWallet)
		}
		w, err := NewEVMWallet(ctx, c.cfg.EVM, c.log)
		if err != nil {
			return nil, err
		}
		if _, err := w.RequestAccounts(ctx); err != nil {
			w.Close()
			return nil, err
		}
		return w, nil
	}
}

// Submitter returns a submitter using the configured Solana RPC
func (c *ConfigConnector) Submitter() *RPCSubmitter {
	return NewRPCSubmitter(c.cfg.Solana)
}

const defaultPollInterval = 2 * time.Second
