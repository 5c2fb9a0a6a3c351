package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"tradeledger/internal/adapters/logger" // Import the logger package for LogLevel
	"tradeledger/internal/engine"
)

// Storage driver names accepted by STORAGE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Storage
	StorageDriver string // "sqlite" or "postgres"
	DBPath        string // SQLite database path
	PostgresDSN   string // Postgres connection string, required when driver is "postgres"

	// Import
	ImportFile string // CSV leg export to load on startup, empty to skip

	// Chart of accounts codes
	Chart engine.Chart

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Storage
	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", DriverSQLite))
	switch cfg.StorageDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, cfg.StorageDriver))
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/tradeledger.db")
	if cfg.StorageDriver == DriverSQLite && cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set when STORAGE_DRIVER is sqlite")
	}

	cfg.PostgresDSN = getEnv("POSTGRES_DSN", "")
	if cfg.StorageDriver == DriverPostgres && cfg.PostgresDSN == "" {
		errs = append(errs, "POSTGRES_DSN must be set when STORAGE_DRIVER is postgres")
	}

	// Import
	cfg.ImportFile = getEnv("IMPORT_FILE", "")

	// Chart of accounts
	cfg.Chart = engine.Chart{
		Cash:          getEnv("ACCOUNT_CASH", "CASH"),
		LongCall:      getEnv("ACCOUNT_LONG_CALL", "LONG_CALL"),
		LongPut:       getEnv("ACCOUNT_LONG_PUT", "LONG_PUT"),
		ShortCall:     getEnv("ACCOUNT_SHORT_CALL", "SHORT_CALL"),
		ShortPut:      getEnv("ACCOUNT_SHORT_PUT", "SHORT_PUT"),
		StockPosition: getEnv("ACCOUNT_STOCK_POSITION", "STOCK_POSITION"),
		RealizedGain:  getEnv("ACCOUNT_REALIZED_GAIN", "REALIZED_GAIN"),
		RealizedLoss:  getEnv("ACCOUNT_REALIZED_LOSS", "REALIZED_LOSS"),
	}
	if err := cfg.Chart.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid chart of accounts: %v", err))
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

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
