// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solboard/service/helius"
	"github.com/brojonat/solboard/service/jupiter"
)

const (
	// DefaultSolanaRPCURL is the public mainnet RPC endpoint used for transfers.
	DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"

	minPageSize = 1
	maxPageSize = 100
)

// Config holds all application configuration loaded from environment variables.
// Everything has a usable default; Load fails only on malformed values.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Upstream APIs
	HeliusRPCURL    string
	HeliusAPIURL    string
	HeliusAPIKey    string // optional seed key, applied when none is saved
	JupiterPriceURL string
	SolanaRPCURL    string

	// Wallet session
	WalletKeypairPath string
	ViewOnlyAddress   string

	// Storage and messaging. Both are optional.
	DatabaseURL  string
	KeyStorePath string
	NATSURL      string

	// Behaviour
	AutoRefreshInterval time.Duration
	TxPageSize          int
	HTTPMaxRetries      int
	HTTPRetryBaseDelay  time.Duration
	ConfirmTimeout      time.Duration
}

// Load reads configuration from environment variables and validates it.
// All problems are reported together.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.HeliusRPCURL = getEnvOrDefault("HELIUS_RPC_URL", helius.DefaultRPCURL)
	cfg.HeliusAPIURL = getEnvOrDefault("HELIUS_API_URL", helius.DefaultAPIURL)
	cfg.HeliusAPIKey = strings.TrimSpace(os.Getenv("HELIUS_API_KEY"))
	cfg.JupiterPriceURL = getEnvOrDefault("JUPITER_PRICE_URL", jupiter.DefaultBaseURL)
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", DefaultSolanaRPCURL)

	cfg.WalletKeypairPath = os.Getenv("WALLET_KEYPAIR_PATH")
	cfg.ViewOnlyAddress = strings.TrimSpace(os.Getenv("VIEW_ONLY_ADDRESS"))

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.KeyStorePath = os.Getenv("KEY_STORE_PATH")
	if cfg.KeyStorePath == "" {
		path, err := defaultKeyStorePath()
		if err != nil {
			errs = append(errs, err)
		}
		cfg.KeyStorePath = path
	}

	var err error
	if cfg.AutoRefreshInterval, err = parseDuration("AUTO_REFRESH_INTERVAL", "0s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.HTTPRetryBaseDelay, err = parseDuration("HTTP_RETRY_BASE_DELAY", "1s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ConfirmTimeout, err = parseDuration("CONFIRM_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.TxPageSize, err = parseInt("TX_PAGE_SIZE", 50); err != nil {
		errs = append(errs, err)
	}
	if cfg.HTTPMaxRetries, err = parseInt("HTTP_MAX_RETRIES", 3); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	for name, raw := range map[string]string{
		"HeliusRPCURL":    c.HeliusRPCURL,
		"HeliusAPIURL":    c.HeliusAPIURL,
		"JupiterPriceURL": c.JupiterPriceURL,
		"SolanaRPCURL":    c.SolanaRPCURL,
	} {
		if err := validateHTTPURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.TxPageSize < minPageSize || c.TxPageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("TxPageSize must be between %d and %d", minPageSize, maxPageSize))
	}
	if c.HTTPMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("HTTPMaxRetries cannot be negative"))
	}
	if c.HTTPRetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("HTTPRetryBaseDelay cannot be negative"))
	}
	if c.AutoRefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("AutoRefreshInterval cannot be negative"))
	}
	if c.AutoRefreshInterval > 0 && c.AutoRefreshInterval < 5*time.Second {
		errs = append(errs, fmt.Errorf("AutoRefreshInterval must be at least 5 seconds"))
	}
	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be positive"))
	}
	if c.DatabaseURL == "" && c.KeyStorePath == "" {
		errs = append(errs, fmt.Errorf("KeyStorePath is required when DatabaseURL is not set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func defaultKeyStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("KEY_STORE_PATH: cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "solboard", "credentials.json"), nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
