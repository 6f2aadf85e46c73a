package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ENV", "DEBUG", "DB_DRIVER", "DATABASE_URL", "JWT_SECRET",
	"TOKEN_TTL", "STARTING_CASH", "ORACLE", "ORACLE_BASE_URL", "ORACLE_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Server.Debug)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "finance.db", cfg.Database.URL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "10000.00", cfg.Ledger.StartingCash.StringFixed(2))
	assert.Equal(t, OracleYahoo, cfg.Oracle.Kind)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DEBUG", "true")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/stocks")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("STARTING_CASH", "2500.555")
	t.Setenv("ORACLE", "simulated")
	t.Setenv("ORACLE_TIMEOUT", "250ms")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "2500.56", cfg.Ledger.StartingCash.StringFixed(2))
	assert.Equal(t, OracleSimulated, cfg.Oracle.Kind)
	assert.Equal(t, 250*time.Millisecond, cfg.Oracle.Timeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "Debug", key: "DEBUG", value: "maybe"},
		{name: "TokenTTL", key: "TOKEN_TTL", value: "forever"},
		{name: "NegativeTokenTTL", key: "TOKEN_TTL", value: "-1h"},
		{name: "StartingCash", key: "STARTING_CASH", value: "lots"},
		{name: "NegativeStartingCash", key: "STARTING_CASH", value: "-1"},
		{name: "HugeStartingCash", key: "STARTING_CASH", value: "1e20"},
		{name: "OracleTimeout", key: "ORACLE_TIMEOUT", value: "0s"},
		{name: "Driver", key: "DB_DRIVER", value: "mysql"},
		{name: "Oracle", key: "ORACLE", value: "bloomberg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := FromEnv()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
