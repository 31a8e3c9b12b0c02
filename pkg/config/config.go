// Package config loads runtime configuration for the relayer and API
// binaries from environment variables. It is deliberately thin: wiring,
// not validation logic, belongs to cmd/.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the spvbridge relayer and API services.
type Config struct {
	// Bitcoin chain adapter
	BitcoinAdapter string // "noderpc" or "esplora"
	BitcoinRPCURL  string
	BitcoinRPCUser string
	BitcoinRPCPass string
	EsploraBaseURL string

	// Ethereum / EVM
	EthereumURL           string
	EthChainID            int64
	EthPrivateKey         string
	CheckpointManagerAddr string
	BtcSpvVerifierAddr    string
	HashCreditManagerAddr string

	// Payout store
	PayoutStoreBackend string // "bolt" or "postgres"
	PayoutStorePath    string
	DatabaseURL        string

	// Relayer loop
	ScanBatchSize    uint32
	PollInterval     time.Duration
	MinConfirmations uint32
	MaxHeaderChain   uint32

	// Watched addresses, as "btc_address:borrower_evm_address" pairs
	WatchedAddresses []string

	// Claim protocol
	ClaimHMACSecret string
	ClaimTTLSeconds int64

	// HTTP front-end
	ListenAddr   string
	MetricsAddr  string
	APIKey       string
	LoopbackOnly bool

	LogLevel string
}

// Load populates a Config from environment variables, applying
// defaults where the deployment has a sensible one.
func Load() (*Config, error) {
	cfg := &Config{
		BitcoinAdapter: getEnv("BITCOIN_ADAPTER", "noderpc"),
		BitcoinRPCURL:  getEnv("BITCOIN_RPC_URL", "http://127.0.0.1:8332"),
		BitcoinRPCUser: getEnv("BITCOIN_RPC_USER", ""),
		BitcoinRPCPass: getEnv("BITCOIN_RPC_PASS", ""),
		EsploraBaseURL: getEnv("ESPLORA_BASE_URL", ""),

		EthereumURL:           getEnv("ETHEREUM_URL", ""),
		EthChainID:            getEnvInt64("ETH_CHAIN_ID", 1),
		EthPrivateKey:         getEnv("ETH_PRIVATE_KEY", ""),
		CheckpointManagerAddr: getEnv("CHECKPOINT_MANAGER_ADDR", ""),
		BtcSpvVerifierAddr:    getEnv("BTC_SPV_VERIFIER_ADDR", ""),
		HashCreditManagerAddr: getEnv("HASH_CREDIT_MANAGER_ADDR", ""),

		PayoutStoreBackend: getEnv("PAYOUT_STORE_BACKEND", "bolt"),
		PayoutStorePath:    getEnv("PAYOUT_STORE_PATH", "./data/payouts.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		ScanBatchSize:    uint32(getEnvInt("SCAN_BATCH_SIZE", 500)),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 30*time.Second),
		MinConfirmations: uint32(getEnvInt("MIN_CONFIRMATIONS", 6)),
		MaxHeaderChain:   uint32(getEnvInt("MAX_HEADER_CHAIN", 144)),

		WatchedAddresses: parseCommaList(getEnv("WATCHED_ADDRESSES", "")),

		ClaimHMACSecret: getEnv("CLAIM_HMAC_SECRET", ""),
		ClaimTTLSeconds: getEnvInt64("CLAIM_TTL_SECONDS", 600),

		ListenAddr:   getEnv("LISTEN_ADDR", "127.0.0.1:8080"),
		MetricsAddr:  getEnv("METRICS_ADDR", "127.0.0.1:9090"),
		APIKey:       getEnv("API_KEY", ""),
		LoopbackOnly: getEnvBool("LOOPBACK_ONLY", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate rejects configurations the binaries must refuse to start
// with: LOOPBACK_ONLY=false without an API key, and a
// missing signing key or RPC endpoint.
func (c *Config) Validate() error {
	var errs []string

	if c.EthereumURL == "" {
		errs = append(errs, "ETHEREUM_URL is required")
	}
	if c.EthPrivateKey == "" {
		errs = append(errs, "ETH_PRIVATE_KEY is required")
	}
	if c.CheckpointManagerAddr == "" {
		errs = append(errs, "CHECKPOINT_MANAGER_ADDR is required")
	}
	if c.BtcSpvVerifierAddr == "" {
		errs = append(errs, "BTC_SPV_VERIFIER_ADDR is required")
	}
	if c.HashCreditManagerAddr == "" {
		errs = append(errs, "HASH_CREDIT_MANAGER_ADDR is required")
	}
	if !c.LoopbackOnly && c.APIKey == "" {
		errs = append(errs, "API_KEY is required when LOOPBACK_ONLY=false")
	}
	if c.PayoutStoreBackend == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required when PAYOUT_STORE_BACKEND=postgres")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// parseCommaList parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func parseCommaList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
