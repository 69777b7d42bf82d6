package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	rstore "github.com/eko/gocache/store/ristretto/v4"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"dualswap/pkg/types"
)

const (
	DefaultEVMTokensURL    = "https://tokens.uniswap.org"
	DefaultSolanaTokensURL = "https://lite-api.jup.ag/tokens/v1/tagged/verified"
	DefaultCatalogTTL      = 10 * time.Minute
)

// CatalogOptions configures the token catalog
type CatalogOptions struct {
	EVMURL    string
	SolanaURL string
	ChainID   int64
	TTL       time.Duration
	Timeout   time.Duration
	Logger    *logrus.Logger
}

// CatalogClient fetches token lists for both networks and caches them in memory
type CatalogClient struct {
	evm     baseClient
	solana  baseClient
	chainID int64
	ttl     time.Duration

	rcache *ristretto.Cache
	cache  *cache.Cache[[]byte]
}

type evmTokenList struct {
	Tokens []evmToken `json:"tokens"`
}

type evmToken struct {
	ChainID int64 `json:"chainId"`
	types.TokenDescriptor
}

// NewCatalogClient creates a catalog client with a ristretto-backed cache
func NewCatalogClient(opts CatalogOptions) (*CatalogClient, error) {
	rcache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}

	return &CatalogClient{
		evm:     newBaseClient("evm-tokens", DefaultEVMTokensURL, Options{BaseURL: opts.EVMURL, Timeout: opts.Timeout, Logger: opts.Logger}),
		solana:  newBaseClient("solana-tokens", DefaultSolanaTokensURL, Options{BaseURL: opts.SolanaURL, Timeout: opts.Timeout, Logger: opts.Logger}),
		chainID: chainID(opts.ChainID),
		ttl:     ttl,
		rcache:  rcache,
		cache:   cache.New[[]byte](rstore.NewRistretto(rcache)),
	}, nil
}

// Tokens returns the token catalog for a network
func (c *CatalogClient) Tokens(ctx context.Context, network types.NetworkMode) ([]types.TokenDescriptor, error) {
	key := c.cacheKey(network)

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var tokens []types.TokenDescriptor
		if err := json.Unmarshal(raw, &tokens); err == nil {
			return tokens, nil
		}
	}

	var (
		tokens []types.TokenDescriptor
		err    error
	)
	switch network {
	case types.NetworkSolana:
		tokens, err = c.fetchSolana(ctx)
	default:
		tokens, err = c.fetchEVM(ctx)
	}
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(tokens); err == nil {
		if err := c.cache.Set(ctx, key, raw, store.WithExpiration(c.ttl), store.WithCost(1)); err != nil {
			c.evm.log.WithError(err).Debug("failed to cache token list")
		}
		c.rcache.Wait()
	}
	return tokens, nil
}

// Invalidate drops the cached catalog for a network
func (c *CatalogClient) Invalidate(ctx context.Context, network types.NetworkMode) error {
	return c.cache.Delete(ctx, c.cacheKey(network))
}

func (c *CatalogClient) cacheKey(network types.NetworkMode) string {
	if network == types.NetworkSolana {
		return "tokens:solana"
	}
	return fmt.Sprintf("tokens:evm:%d", c.chainID)
}

func (c *CatalogClient) fetchEVM(ctx context.Context) ([]types.TokenDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.evm.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token list request: %w", err)
	}

	var list evmTokenList
	if err := c.evm.do(ctx, req, &list); err != nil {
		return nil, err
	}

	onChain := lo.Filter(list.Tokens, func(t evmToken, _ int) bool {
		return t.ChainID == c.chainID && validToken(t.TokenDescriptor)
	})
	return lo.Map(onChain, func(t evmToken, _ int) types.TokenDescriptor {
		return t.TokenDescriptor
	}), nil
}

func (c *CatalogClient) fetchSolana(ctx context.Context) ([]types.TokenDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.solana.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token list request: %w", err)
	}

	var list []types.TokenDescriptor
	if err := c.solana.do(ctx, req, &list); err != nil {
		return nil, err
	}
	return lo.Filter(list, func(t types.TokenDescriptor, _ int) bool {
		return validToken(t)
	}), nil
}

func validToken(t types.TokenDescriptor) bool {
	return strings.TrimSpace(t.Address) != "" && t.Decimals >= 0
}

// FindToken looks a token up by address, then by symbol (case-insensitive)
func FindToken(tokens []types.TokenDescriptor, query string) (types.TokenDescriptor, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return types.TokenDescriptor{}, false
	}

	if t, ok := lo.Find(tokens, func(t types.TokenDescriptor) bool {
		return strings.EqualFold(t.Address, query)
	}); ok {
		return t, true
	}
	return lo.Find(tokens, func(t types.TokenDescriptor) bool {
		return strings.EqualFold(t.Symbol, query)
	})
}

// FilterTokens returns tokens whose symbol or name contains the query
func FilterTokens(tokens []types.TokenDescriptor, query string) []types.TokenDescriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return tokens
	}
	return lo.Filter(tokens, func(t types.TokenDescriptor, _ int) bool {
		return strings.Contains(strings.ToLower(t.Symbol), query) ||
			strings.Contains(strings.ToLower(t.Name), query)
	})
}
