// Package config loads and validates process-wide configuration for bsvbank.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Network string `envconfig:"BSVBANK_NETWORK" default:"testnet"`

	IndexerBaseURL    string `envconfig:"BSVBANK_INDEXER_BASE_URL" default:"https://indexer.example.com"`
	MinConfirmations  uint32 `envconfig:"BSVBANK_MIN_CONFIRMATIONS" default:"6"`
	PollIntervalSecs  uint64 `envconfig:"BSVBANK_POLL_INTERVAL_SECS" default:"10"`
	DefaultFeePerByte uint64 `envconfig:"BSVBANK_DEFAULT_FEE_PER_BYTE" default:"50"`
	TxCacheCapacity   int    `envconfig:"BSVBANK_TX_CACHE_CAPACITY" default:"10000"`

	ChannelDefaultTimeoutBlocks uint32 `envconfig:"BSVBANK_CHANNEL_DEFAULT_TIMEOUT_BLOCKS" default:"144"`

	DBPath   string `envconfig:"BSVBANK_DB_PATH" default:"./data/bsvbank.sqlite"`
	Port     int    `envconfig:"BSVBANK_PORT" default:"8080"`
	LogLevel string `envconfig:"BSVBANK_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"BSVBANK_LOG_DIR" default:"./logs"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// Load .env file if it exists. godotenv does NOT override already-set env vars,
	// so real environment variables take precedence over .env values.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		} else {
			slog.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Network != "main" && c.Network != "test" && c.Network != "mainnet" && c.Network != "testnet" {
		return fmt.Errorf("%w: network must be \"main\" or \"test\", got %q", ErrInvalidConfig, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.MinConfirmations == 0 {
		return fmt.Errorf("%w: min_confirmations must be >= 1", ErrInvalidConfig)
	}
	if c.ChannelDefaultTimeoutBlocks == 0 {
		return fmt.Errorf("%w: channel_default_timeout_blocks must be > 0", ErrInvalidConfig)
	}
	if c.TxCacheCapacity <= 0 {
		return fmt.Errorf("%w: tx_cache_capacity must be > 0", ErrInvalidConfig)
	}
	return nil
}

// NetworkPath returns the indexer path segment for this config's network:
// "main" or "test".
func (c *Config) NetworkPath() string {
	if c.Network == "mainnet" || c.Network == "main" {
		return "main"
	}
	return "test"
}

// IsMainnet reports whether the configured network is mainnet.
func (c *Config) IsMainnet() bool {
	return c.NetworkPath() == "main"
}
