package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Providers     ProvidersConfig
	RateLimit     RateLimitConfig
	Budget        BudgetConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProvidersConfig holds LLM provider configuration and routing order
type ProvidersConfig struct {
	// Primary is tried first; Fallback (optional) is tried on recoverable failure
	Primary  string
	Fallback string

	Anthropic ProviderConfig
	OpenAI    ProviderConfig
	Google    ProviderConfig
}

// ProviderConfig holds per-vendor connection settings
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// BudgetConfig holds spend alerting configuration
type BudgetConfig struct {
	// AlertThresholdUSD disables alerting when zero or negative
	AlertThresholdUSD decimal.Decimal
}

// AuthConfig holds API key authentication configuration
type AuthConfig struct {
	// APIKeyHashes are SHA-256 hex digests of accepted API keys
	APIKeyHashes []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present; real environment variables take precedence
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			Host:             getEnv("DB_HOST", ""),
			Port:             getEnvAsInt("DB_PORT", 5432),
			User:             getEnv("DB_USER", ""),
			Password:         getEnv("DB_PASSWORD", ""),
			Database:         getEnv("DB_NAME", ""),
			SSLMode:          getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Providers: ProvidersConfig{
			Primary:  getEnv("LLM_PRIMARY_PROVIDER", "google"),
			Fallback: getEnv("LLM_FALLBACK_PROVIDER", ""),
			Anthropic: ProviderConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
				Timeout: getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
			},
			OpenAI: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			},
			Google: ProviderConfig{
				APIKey:  getEnv("GOOGLE_API_KEY", ""),
				BaseURL: getEnv("GOOGLE_BASE_URL", ""),
				Timeout: getEnvAsDuration("GOOGLE_TIMEOUT", 60*time.Second),
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
			CleanupInterval:   getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Budget: BudgetConfig{
			AlertThresholdUSD: getEnvAsDecimal("BUDGET_ALERT_THRESHOLD_USD", decimal.Zero),
		},
		Auth: AuthConfig{
			APIKeyHashes: getEnvAsList("API_KEY_HASHES"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}

	if c.Providers.Primary == "" {
		return fmt.Errorf("primary provider is required")
	}

	if c.IsProduction() {
		if c.Providers.Anthropic.APIKey == "" &&
			c.Providers.OpenAI.APIKey == "" &&
			c.Providers.Google.APIKey == "" {
			return fmt.Errorf("at least one LLM provider must be configured in production")
		}
		if len(c.Auth.APIKeyHashes) == 0 {
			return fmt.Errorf("API key hashes are required in production")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// ProviderOrder returns the configured provider ids in priority order.
func (c *Config) ProviderOrder() []string {
	order := []string{c.Providers.Primary}
	if c.Providers.Fallback != "" && c.Providers.Fallback != c.Providers.Primary {
		order = append(order, c.Providers.Fallback)
	}
	return order
}

// ProviderFor returns the connection settings for a provider id.
func (c *Config) ProviderFor(name string) (ProviderConfig, error) {
	switch name {
	case "anthropic":
		return c.Providers.Anthropic, nil
	case "openai":
		return c.Providers.OpenAI, nil
	case "google":
		return c.Providers.Google, nil
	default:
		return ProviderConfig{}, fmt.Errorf("unknown provider: %s", name)
	}
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Enabled reports whether any database configuration was provided
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// Environment variable helpers

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
