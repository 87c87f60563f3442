package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MARKET_ADDR", "")
	t.Setenv("JWT_EXPIRY", "")
	t.Setenv("SEARCH_SUGGEST_LIMIT", "")
	t.Setenv("DEFAULT_CURRENCY", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 72*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 5, cfg.SuggestLimit)
	assert.Equal(t, "usd", cfg.DefaultCurrency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MARKET_ADDR", ":9090")
	t.Setenv("JWT_EXPIRY", "1h")
	t.Setenv("SEARCH_SUGGEST_LIMIT", "abc")
	t.Setenv("SMTP_PORT", "2525")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 5, cfg.SuggestLimit, "non-numeric values fall back to the default")
	assert.Equal(t, 2525, cfg.SMTP.Port)
}

func TestValidate(t *testing.T) {
	require.Error(t, Config{}.Validate())
	require.NoError(t, Config{JWTSecret: "s"}.Validate())

	prod := Config{AppEnv: "production", JWTSecret: "s"}
	err := prod.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}
