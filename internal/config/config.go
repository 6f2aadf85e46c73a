package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joherrer/stocks/internal/types"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	OracleYahoo     = "yahoo"
	OracleSimulated = "simulated"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
	Oracle   OracleConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port  string
	Env   string
	Debug bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	URL    string
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LedgerConfig holds account defaults
type LedgerConfig struct {
	StartingCash decimal.Decimal
}

// OracleConfig selects and tunes the price source
type OracleConfig struct {
	Kind    string
	BaseURL string
	Timeout time.Duration
}

// IsProduction reports whether console logging should be disabled
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Load reads configuration from the environment, after loading an
// optional .env file from the working directory
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env file")
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables alone
func FromEnv() (*Config, error) {
	debug, err := strconv.ParseBool(getEnv("DEBUG", "false"))
	if err != nil {
		return nil, fmt.Errorf("DEBUG: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", tokenTTL)
	}

	startingCash, err := decimal.NewFromString(getEnv("STARTING_CASH", "10000.00"))
	if err != nil {
		return nil, fmt.Errorf("STARTING_CASH: %w", err)
	}
	if !types.CashInRange(startingCash.Round(2)) {
		return nil, fmt.Errorf("STARTING_CASH must be between 0 and %s, got %s", types.MaxCash, startingCash)
	}

	oracleTimeout, err := time.ParseDuration(getEnv("ORACLE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("ORACLE_TIMEOUT: %w", err)
	}
	if oracleTimeout <= 0 {
		return nil, fmt.Errorf("ORACLE_TIMEOUT must be positive, got %s", oracleTimeout)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:  getEnv("PORT", "8080"),
			Env:   getEnv("ENV", "development"),
			Debug: debug,
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			URL:    getEnv("DATABASE_URL", "finance.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "stocks-secret-key"),
			TokenTTL:  tokenTTL,
		},
		Ledger: LedgerConfig{
			StartingCash: startingCash.Round(2),
		},
		Oracle: OracleConfig{
			Kind:    getEnv("ORACLE", OracleYahoo),
			BaseURL: getEnv("ORACLE_BASE_URL", "https://query2.finance.yahoo.com"),
			Timeout: oracleTimeout,
		},
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.Database.Driver)
	}

	switch cfg.Oracle.Kind {
	case OracleYahoo, OracleSimulated:
	default:
		return nil, fmt.Errorf("ORACLE must be %s or %s, got %q", OracleYahoo, OracleSimulated, cfg.Oracle.Kind)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
