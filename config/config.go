package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"scalpExecutor/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Exchange client
	ExchangeRequestsPerSecond float64 // Client-side throttle for REST calls
	ExchangeBurst             int
	FilterCacheTTL            time.Duration // How long symbol lot-size filters are reused

	// Execution
	DefaultHoldingDuration time.Duration // Used when a request carries no holding duration
	PriceCheckInterval     time.Duration // Manual exit monitor polling cadence
	BracketPollInterval    time.Duration // OCO status polling cadence
	OrderTimeout           time.Duration // Upper bound for a single buy/sell/cancel round trip
	FeeRate                float64       // Per-side fee used in profit calculation
	ShutdownTimeout        time.Duration

	// Admission
	MaxOpenTrades       int     // 0 disables the check
	MaxPositionNotional float64 // 0 disables the check
	MaxDailyLoss        float64 // Absolute quote amount, 0 disables the check
	ReferenceBalance    float64 // Starting balance for performance analytics

	// Feedback
	FeedbackURL     string // Base URL of the signal originator; empty disables feedback
	FeedbackTimeout time.Duration

	// HTTP API
	HTTPAddr           string
	HTTPRequestsPerSec float64 // Per-client limit on the inbound API
	HTTPRequestBurst   int
	HTTPRequestTimeout time.Duration

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	cfg.ExchangeRequestsPerSecond, err = getEnvAsFloatRequired("EXCHANGE_REQUESTS_PER_SECOND", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXCHANGE_REQUESTS_PER_SECOND: %v", err))
	} else if cfg.ExchangeRequestsPerSecond <= 0 {
		errs = append(errs, "EXCHANGE_REQUESTS_PER_SECOND must be positive")
	}
	cfg.ExchangeBurst = getEnvAsInt("EXCHANGE_BURST", 20)
	if cfg.ExchangeBurst <= 0 {
		errs = append(errs, "EXCHANGE_BURST must be positive")
	}
	cfg.FilterCacheTTL = time.Duration(getEnvAsInt("FILTER_CACHE_TTL_SECONDS", 300)) * time.Second

	// Execution
	cfg.DefaultHoldingDuration, err = getEnvAsMillisRequired("DEFAULT_HOLDING_DURATION_MS", 60000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_HOLDING_DURATION_MS: %v", err))
	} else if cfg.DefaultHoldingDuration <= 0 {
		errs = append(errs, "DEFAULT_HOLDING_DURATION_MS must be positive")
	}

	cfg.PriceCheckInterval, err = getEnvAsMillisRequired("PRICE_CHECK_INTERVAL_MS", 5000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PRICE_CHECK_INTERVAL_MS: %v", err))
	} else if cfg.PriceCheckInterval <= 0 {
		errs = append(errs, "PRICE_CHECK_INTERVAL_MS must be positive")
	}

	cfg.BracketPollInterval, err = getEnvAsMillisRequired("BRACKET_POLL_INTERVAL_MS", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BRACKET_POLL_INTERVAL_MS: %v", err))
	} else if cfg.BracketPollInterval <= 0 {
		errs = append(errs, "BRACKET_POLL_INTERVAL_MS must be positive")
	}

	orderTimeoutSeconds := getEnvAsInt("ORDER_TIMEOUT_SECONDS", 15)
	if orderTimeoutSeconds <= 0 {
		errs = append(errs, "ORDER_TIMEOUT_SECONDS must be positive")
	}
	cfg.OrderTimeout = time.Duration(orderTimeoutSeconds) * time.Second

	cfg.FeeRate, err = getEnvAsFloatRequired("FEE_RATE", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEE_RATE: %v", err))
	} else if cfg.FeeRate < 0 || cfg.FeeRate >= 1 {
		errs = append(errs, "FEE_RATE must be within [0, 1)")
	}

	cfg.ShutdownTimeout = time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second

	// Admission
	cfg.MaxOpenTrades = getEnvAsInt("MAX_OPEN_TRADES", 5)
	if cfg.MaxOpenTrades < 0 {
		errs = append(errs, "MAX_OPEN_TRADES cannot be negative")
	}
	cfg.MaxPositionNotional, err = getEnvAsFloatRequired("MAX_POSITION_NOTIONAL", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_NOTIONAL: %v", err))
	} else if cfg.MaxPositionNotional < 0 {
		errs = append(errs, "MAX_POSITION_NOTIONAL cannot be negative")
	}
	cfg.MaxDailyLoss, err = getEnvAsFloatRequired("MAX_DAILY_LOSS", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_LOSS: %v", err))
	} else if cfg.MaxDailyLoss < 0 {
		errs = append(errs, "MAX_DAILY_LOSS cannot be negative")
	}
	cfg.ReferenceBalance = getEnvAsFloat("REFERENCE_BALANCE", 1000)
	if cfg.ReferenceBalance <= 0 {
		errs = append(errs, "REFERENCE_BALANCE must be positive")
	}

	// Feedback
	cfg.FeedbackURL = strings.TrimRight(getEnv("FEEDBACK_URL", ""), "/")
	cfg.FeedbackTimeout = time.Duration(getEnvAsInt("FEEDBACK_TIMEOUT_SECONDS", 5)) * time.Second
	if cfg.FeedbackTimeout <= 0 {
		errs = append(errs, "FEEDBACK_TIMEOUT_SECONDS must be positive")
	}

	// HTTP API
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":3001")
	cfg.HTTPRequestsPerSec = getEnvAsFloat("HTTP_REQUESTS_PER_SECOND", 20)
	cfg.HTTPRequestBurst = getEnvAsInt("HTTP_REQUEST_BURST", 50)
	cfg.HTTPRequestTimeout = time.Duration(getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/scalp_executor.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// ValidateExchange checks the settings only the trading server needs.
// Read-only commands work without exchange credentials.
func (c *Config) ValidateExchange() error {
	var errs []string
	if c.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if c.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}
	if c.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR must be set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsMillisRequired(key string, defaultMillis int) (time.Duration, error) {
	ms, err := getEnvAsIntRequired(key, defaultMillis)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
