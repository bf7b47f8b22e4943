package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	// Pin asserted variables so ambient environment cannot leak in; empty
	// values fall through to the defaults.
	for _, key := range []string{
		"ENVIRONMENT", "SERVER_PORT", "LLM_PRIMARY_PROVIDER",
		"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_CLEANUP_INTERVAL",
		"BUDGET_ALERT_THRESHOLD_USD", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "google", cfg.Providers.Primary)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.CleanupInterval)
	assert.True(t, cfg.Budget.AlertThresholdUSD.Equal(decimal.Zero))
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LLM_PRIMARY_PROVIDER", "anthropic")
	t.Setenv("LLM_FALLBACK_PROVIDER", "openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")
	t.Setenv("BUDGET_ALERT_THRESHOLD_USD", "250.50")
	t.Setenv("API_KEY_HASHES", "hash-a, hash-b,")

	cfg, err := New()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"anthropic", "openai"}, cfg.ProviderOrder())
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.Budget.AlertThresholdUSD.Equal(decimal.RequireFromString("250.50")))
	assert.Equal(t, []string{"hash-a", "hash-b"}, cfg.Auth.APIKeyHashes)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: "development",
			Providers:   ProvidersConfig{Primary: "google"},
			RateLimit:   RateLimitConfig{RequestsPerMinute: 60},
			Observability: ObservabilityConfig{
				LogLevel: "info",
			},
		}
	}

	t.Run("valid development config", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("rate limit must be positive", func(t *testing.T) {
		cfg := base()
		cfg.RateLimit.RequestsPerMinute = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("primary provider required", func(t *testing.T) {
		cfg := base()
		cfg.Providers.Primary = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires a provider key", func(t *testing.T) {
		cfg := base()
		cfg.Environment = "production"
		cfg.Auth.APIKeyHashes = []string{"hash"}
		assert.Error(t, cfg.Validate())

		cfg.Providers.Google.APIKey = "key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("production requires API key hashes", func(t *testing.T) {
		cfg := base()
		cfg.Environment = "production"
		cfg.Providers.Google.APIKey = "key"
		assert.Error(t, cfg.Validate())
	})
}

func TestProviderOrder(t *testing.T) {
	tests := []struct {
		name     string
		primary  string
		fallback string
		want     []string
	}{
		{"primary only", "google", "", []string{"google"}},
		{"primary and fallback", "anthropic", "openai", []string{"anthropic", "openai"}},
		{"duplicate fallback collapsed", "google", "google", []string{"google"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Providers: ProvidersConfig{Primary: tt.primary, Fallback: tt.fallback}}
			assert.Equal(t, tt.want, cfg.ProviderOrder())
		})
	}
}

func TestProviderFor(t *testing.T) {
	cfg := &Config{Providers: ProvidersConfig{
		Anthropic: ProviderConfig{APIKey: "a"},
		OpenAI:    ProviderConfig{APIKey: "o"},
		Google:    ProviderConfig{APIKey: "g"},
	}}

	pc, err := cfg.ProviderFor("openai")
	require.NoError(t, err)
	assert.Equal(t, "o", pc.APIKey)

	_, err = cfg.ProviderFor("mistral")
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("connection string wins", func(t *testing.T) {
		cfg := DatabaseConfig{
			ConnectionString: "postgres://u:p@host/db",
			Host:             "ignored",
		}
		assert.Equal(t, "postgres://u:p@host/db", cfg.DSN())
	})

	t.Run("built from fields", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "flakeguard",
			Password: "secret",
			Database: "flakeguard",
			SSLMode:  "disable",
		}
		assert.Equal(t,
			"host=localhost port=5432 user=flakeguard password=secret dbname=flakeguard sslmode=disable",
			cfg.DSN())
	})
}

func TestDatabaseConfig_Enabled(t *testing.T) {
	assert.False(t, (&DatabaseConfig{}).Enabled())
	assert.True(t, (&DatabaseConfig{ConnectionString: "postgres://x"}).Enabled())
	assert.True(t, (&DatabaseConfig{Host: "localhost"}).Enabled())
}
