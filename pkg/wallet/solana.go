package wallet

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dualswap/pkg/logger"
	"dualswap/pkg/types"
)

const DefaultSolanaRPC = rpc.MainNetBeta_RPC

// SolanaConfig configures the Solana wallet and submitter
type SolanaConfig struct {
	RPCURL        string
	PrivateKey    string
	Commitment    string
	SkipPreflight bool
}

// SolanaRPC is the subset of rpc.Client used by the wallet and submitter
type SolanaRPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// SolanaWallet signs with a local ed25519 key
type SolanaWallet struct {
	client     SolanaRPC
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	commitment rpc.CommitmentType
	log        *logrus.Entry
}

// NewSolanaWallet creates a wallet from the configured key
func NewSolanaWallet(cfg SolanaConfig, log *logrus.Logger) (*SolanaWallet, error) {
	privateKey, err := ParseSolanaKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return NewSolanaWalletWithClient(newRPCClient(cfg.RPCURL), privateKey, cfg.Commitment, log), nil
}

// NewSolanaWalletWithClient builds a wallet on an existing RPC client
func NewSolanaWalletWithClient(client SolanaRPC, key solana.PrivateKey, commitment string, log *logrus.Logger) *SolanaWallet {
	return &SolanaWallet{
		client:     client,
		privateKey: key,
		publicKey:  key.PublicKey(),
		commitment: parseCommitment(commitment),
		log:        logger.Component(log, "solana-wallet"),
	}
}

func (w *SolanaWallet) Network() types.NetworkMode  { return types.NetworkSolana }
func (w *SolanaWallet) Address() string             { return w.publicKey.String() }
func (w *SolanaWallet) PublicKey() solana.PublicKey { return w.publicKey }

// Close is a no-op, the RPC client holds no connection
func (w *SolanaWallet) Close() {}

// Balance returns the SOL balance
func (w *SolanaWallet) Balance(ctx context.Context) (decimal.Decimal, error) {
	balance, err := w.client.GetBalance(ctx, w.publicKey, w.commitment)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to get balance: %w", types.ErrWallet, err)
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(balance.Value), -9), nil
}

// SignTransaction signs tx in place with the wallet key. Aggregator transactions arrive
// with zeroed placeholder signatures; the wallet's slot is filled and the others are kept.
func (w *SolanaWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nothing to sign", types.ErrSwapData)
	}

	signers := tx.Message.Signers()
	index := -1
	for i, key := range signers {
		if key.Equals(w.publicKey) {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("%w: transaction does not require a signature from %s", types.ErrWallet, w.publicKey)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: failed to encode transaction message: %w", types.ErrSwapData, err)
	}
	signature, err := w.privateKey.Sign(message)
	if err != nil {
		return fmt.Errorf("%w: failed to sign transaction: %w", types.ErrWallet, err)
	}

	if len(tx.Signatures) != len(signers) {
		resized := make([]solana.Signature, len(signers))
		copy(resized, tx.Signatures)
		tx.Signatures = resized
	}
	tx.Signatures[index] = signature
	return nil
}

// SignatureStatus retrieves the current state of a transaction
func (w *SolanaWallet) SignatureStatus(ctx context.Context, signature string) (*TxInfo, error) {
	return signatureStatus(ctx, w.client, signature)
}

// RPCSubmitter sends signed transactions through a Solana RPC node
type RPCSubmitter struct {
	client        SolanaRPC
	skipPreflight bool
	commitment    rpc.CommitmentType
}

// NewRPCSubmitter creates a submitter for the configured RPC endpoint
func NewRPCSubmitter(cfg SolanaConfig) *RPCSubmitter {
	return NewRPCSubmitterWithClient(newRPCClient(cfg.RPCURL), cfg)
}

// NewRPCSubmitterWithClient creates a submitter on an existing RPC client
func NewRPCSubmitterWithClient(client SolanaRPC, cfg SolanaConfig) *RPCSubmitter {
	return &RPCSubmitter{
		client:        client,
		skipPreflight: cfg.SkipPreflight,
		commitment:    parseCommitment(cfg.Commitment),
	}
}

// Submit broadcasts a signed transaction and returns its signature
func (s *RPCSubmitter) Submit(ctx context.Context, tx *solana.Transaction) (string, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       s.skipPreflight,
		PreflightCommitment: s.commitment,
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send transaction: %w", types.ErrNetwork, err)
	}
	return sig.String(), nil
}

// SignatureStatus retrieves the current state of a transaction
func (s *RPCSubmitter) SignatureStatus(ctx context.Context, signature string) (*TxInfo, error) {
	return signatureStatus(ctx, s.client, signature)
}

func signatureStatus(ctx context.Context, client SolanaRPC, signature string) (*TxInfo, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid transaction signature: %w", types.ErrValidation, err)
	}

	out, err := client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}

	info := &TxInfo{Network: types.NetworkSolana, Hash: signature, Status: types.SwapPending}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return info, nil
	}

	st := out.Value[0]
	info.Found = true
	info.Block = st.Slot
	info.Detail = string(st.ConfirmationStatus)
	switch {
	case st.Err != nil:
		info.Status = types.SwapFailed
		info.Detail = fmt.Sprintf("%v", st.Err)
	case st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized:
		info.Status = types.SwapConfirmed
	}
	return info, nil
}

// DecodeTransaction deserializes a base64 encoded legacy or versioned transaction
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 transaction: %w", types.ErrSwapData, err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to deserialize transaction: %w", types.ErrSwapData, err)
	}
	return tx, nil
}

func newRPCClient(url string) *rpc.Client {
	if strings.TrimSpace(url) == "" {
		url = DefaultSolanaRPC
	}
	return rpc.New(url)
}

// parseCommitment maps a config string to a commitment level
func parseCommitment(s string) rpc.CommitmentType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
