package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	chain "github.com/brojonat/nftmarket/service/solana"
	"github.com/gagliardetto/solana-go"
)

// Defaults that are also referenced by the CLI.
const (
	DefaultProgramID     = "4hVp7QQKuowuf1SgPVXcD5YkTrHHiDRPbn4V9HKvYwrT"
	DefaultTaskQueue     = "nftmarket-refresh"
	DefaultPinataGateway = "https://gateway.pinata.cloud/ipfs"
	MinRefreshInterval   = 10 * time.Second
	MaxActivityLimit     = 20
	defaultActivityLimit = 5
	defaultRPCRPS        = 10
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaNetwork        string
	SolanaRPCURL         string
	SolanaRPCRPS         int
	MarketplaceProgramID string
	MetadataFetchTimeout time.Duration

	// Aggregation
	ActivityLimit int

	// Database configuration. Empty disables the archive.
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
	RefreshInterval   time.Duration

	// Pinata configuration. Keys are only needed for uploads.
	PinataAPIKey       string
	PinataSecretAPIKey string
	PinataGatewayURL   string
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error if any configuration is invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))

	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "devnet")
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		url, err := chain.DefaultRPCURL(cfg.SolanaNetwork)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOLANA_NETWORK: %w", err))
		}
		cfg.SolanaRPCURL = url
	}

	rps, err := parseInt("SOLANA_RPC_RPS", defaultRPCRPS)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SolanaRPCRPS = rps
	}

	cfg.MarketplaceProgramID = getEnvOrDefault("MARKETPLACE_PROGRAM_ID", DefaultProgramID)

	timeout, err := parseDuration("METADATA_FETCH_TIMEOUT", "5s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MetadataFetchTimeout = timeout
	}

	limit, err := parseInt("ACTIVITY_LIMIT", defaultActivityLimit)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ActivityLimit = limit
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", DefaultTaskQueue)

	interval, err := parseDuration("REFRESH_INTERVAL", "1m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RefreshInterval = interval
	}

	cfg.PinataAPIKey = os.Getenv("PINATA_API_KEY")
	cfg.PinataSecretAPIKey = os.Getenv("PINATA_SECRET_API_KEY")
	cfg.PinataGatewayURL = getEnvOrDefault("PINATA_GATEWAY_URL", DefaultPinataGateway)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
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

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LogLevel %q must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.SolanaNetwork != "devnet" && c.SolanaNetwork != "mainnet" {
		errs = append(errs, fmt.Errorf("SolanaNetwork must be 'devnet' or 'mainnet', got %q", c.SolanaNetwork))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.SolanaRPCRPS < 1 {
		errs = append(errs, fmt.Errorf("SolanaRPCRPS must be positive"))
	}

	if _, err := solana.PublicKeyFromBase58(c.MarketplaceProgramID); err != nil {
		errs = append(errs, fmt.Errorf("MarketplaceProgramID %q is not a valid public key: %w", c.MarketplaceProgramID, err))
	}

	if c.MetadataFetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("MetadataFetchTimeout must be positive"))
	}

	if c.ActivityLimit < 1 || c.ActivityLimit > MaxActivityLimit {
		errs = append(errs, fmt.Errorf("ActivityLimit must be between 1 and %d", MaxActivityLimit))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.RefreshInterval < MinRefreshInterval {
		errs = append(errs, fmt.Errorf("RefreshInterval must be at least %v", MinRefreshInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// ArchiveEnabled reports whether a database is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
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
