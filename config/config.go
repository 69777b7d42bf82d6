package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dualswap/pkg/client"
	"dualswap/pkg/wallet"
)

// Config holds the application configuration
type Config struct {
	EVM     EVMConfig
	OneInch AggregatorConfig
	Solana  SolanaConfig
	Jupiter AggregatorConfig
	Prefs   PrefsConfig
	Redis   RedisConfig
	Log     LogConfig

	CatalogTTL     time.Duration
	HTTPTimeout    time.Duration
	NotifyTTL      time.Duration
	ConfirmTimeout time.Duration
}

// EVMConfig configures the EVM chain and wallet
type EVMConfig struct {
	ChainID    int64
	RPCURL     string
	PrivateKey string
	TokensURL  string
}

// SolanaConfig configures the Solana cluster and wallet
type SolanaConfig struct {
	RPCURL        string
	PrivateKey    string
	TokensURL     string
	Commitment    string
	SkipPreflight bool
}

// AggregatorConfig configures a swap aggregator API
type AggregatorConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
}

// PrefsConfig selects where preferences are stored
type PrefsConfig struct {
	Backend string
	Path    string
}

// RedisConfig configures the Redis preference backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig configures logging
type LogConfig struct {
	Level string
	File  string
}

// Preference backends
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".dualswap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	setDefaults(viper.GetViper())

	// Read from environment variables, e.g. DUALSWAP_EVM_PRIVATE_KEY
	viper.SetEnvPrefix("DUALSWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := FromViper(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("evm.chain_id", 1)
	v.SetDefault("evm.rpc_url", "https://eth.llamarpc.com")
	v.SetDefault("evm.tokens_url", client.DefaultEVMTokensURL)
	v.SetDefault("oneinch.base_url", client.DefaultOneInchURL)
	v.SetDefault("oneinch.rate_limit", 1.0)
	v.SetDefault("solana.rpc_url", wallet.DefaultSolanaRPC)
	v.SetDefault("solana.tokens_url", client.DefaultSolanaTokensURL)
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.skip_preflight", false)
	v.SetDefault("jupiter.base_url", client.DefaultJupiterURL)
	v.SetDefault("jupiter.rate_limit", 0.0)
	v.SetDefault("prefs.backend", BackendFile)
	v.SetDefault("prefs.path", "") // empty uses ~/.dualswap-prefs.json
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("catalog.ttl", client.DefaultCatalogTTL)
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("notify.ttl", 3*time.Second)
	v.SetDefault("swap.confirm_timeout", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// FromViper builds a Config from the keys of v
func FromViper(v *viper.Viper) *Config {
	return &Config{
		EVM: EVMConfig{
			ChainID:    v.GetInt64("evm.chain_id"),
			RPCURL:     v.GetString("evm.rpc_url"),
			PrivateKey: v.GetString("evm.private_key"),
			TokensURL:  v.GetString("evm.tokens_url"),
		},
		OneInch: AggregatorConfig{
			BaseURL:   v.GetString("oneinch.base_url"),
			APIKey:    v.GetString("oneinch.api_key"),
			RateLimit: v.GetFloat64("oneinch.rate_limit"),
		},
		Solana: SolanaConfig{
			RPCURL:        v.GetString("solana.rpc_url"),
			PrivateKey:    v.GetString("solana.private_key"),
			TokensURL:     v.GetString("solana.tokens_url"),
			Commitment:    v.GetString("solana.commitment"),
			SkipPreflight: v.GetBool("solana.skip_preflight"),
		},
		Jupiter: AggregatorConfig{
			BaseURL:   v.GetString("jupiter.base_url"),
			APIKey:    v.GetString("jupiter.api_key"),
			RateLimit: v.GetFloat64("jupiter.rate_limit"),
		},
		Prefs: PrefsConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("prefs.backend"))),
			Path:    v.GetString("prefs.path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		CatalogTTL:     v.GetDuration("catalog.ttl"),
		HTTPTimeout:    v.GetDuration("http.timeout"),
		NotifyTTL:      v.GetDuration("notify.ttl"),
		ConfirmTimeout: v.GetDuration("swap.confirm_timeout"),
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.EVM.ChainID <= 0 {
		return fmt.Errorf("evm.chain_id must be positive, got %d", c.EVM.ChainID)
	}
	switch c.Prefs.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("prefs.backend must be one of file, redis or memory, got %q", c.Prefs.Backend)
	}
	if c.OneInch.RateLimit < 0 || c.Jupiter.RateLimit < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.CatalogTTL < 0 || c.HTTPTimeout < 0 || c.NotifyTTL < 0 || c.ConfirmTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Wallet returns the wallet settings
func (c *Config) Wallet() wallet.Config {
	return wallet.Config{
		EVM: wallet.EVMConfig{
			RPCURL:     c.EVM.RPCURL,
			PrivateKey: c.EVM.PrivateKey,
			ChainID:    c.EVM.ChainID,
		},
		Solana: wallet.SolanaConfig{
			RPCURL:        c.Solana.RPCURL,
			PrivateKey:    c.Solana.PrivateKey,
			Commitment:    c.Solana.Commitment,
			SkipPreflight: c.Solana.SkipPreflight,
		},
	}
}
