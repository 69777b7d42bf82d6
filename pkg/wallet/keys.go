package wallet

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"dualswap/pkg/types"
)

// ParseEVMKey parses a hex private key with or without 0x prefix
func ParseEVMKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid EVM private key: %w", types.ErrWallet, err)
	}
	return key, nil
}

// ParseSolanaKey accepts a base58-encoded 64-byte key or a solana-keygen JSON array
func ParseSolanaKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON private key: %w", types.ErrWallet, err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: invalid byte at %d: %d", types.ErrWallet, i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", types.ErrWallet, ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(b), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58 private key: %w", types.ErrWallet, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", types.ErrWallet, ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(raw), nil
}
