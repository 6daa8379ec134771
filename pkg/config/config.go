package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string
	Env      string // "development" or "production"

	// Negotiation engine
	DefaultBeta      float64
	DefaultAlpha     float64
	DefaultMaxRounds int
	SessionTTL       time.Duration
	MinResponseDelay time.Duration
	ZOPAEpsilonPct   float64
	StartRatePerMin  int

	// Quotes
	QuoteTTL        time.Duration
	QuoteSigningKey string

	// HTTP shell
	APIAdminKey        string
	CORSAllowedOrigins string

	// Hot store (empty RedisURL selects the in-memory store)
	RedisURL        string
	HotStoreTimeout time.Duration
	LockLease       time.Duration

	// Durable storage
	StorageMode    string // "postgres" or "console"
	PostgresHost   string
	PostgresPort   string
	PostgresUser   string
	PostgresPass   string
	PostgresDB     string
	PostgresSSL    string
	DurableTimeout time.Duration

	// Dialogue LLM (empty LLMBaseURL selects template-only dialogue)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Background jobs
	ReaperInterval time.Duration
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8086"),
		Env:      getEnvOrDefault("ENV", "development"),

		// Negotiation defaults
		DefaultBeta:      getFloat64OrDefault("DEFAULT_BETA", 5.0),
		DefaultAlpha:     getFloat64OrDefault("DEFAULT_ALPHA", 0.6),
		DefaultMaxRounds: getIntOrDefault("DEFAULT_MAX_ROUNDS", 15),
		SessionTTL:       getSecondsOrDefault("DEFAULT_SESSION_TTL_SECONDS", 300*time.Second),
		MinResponseDelay: getMillisOrDefault("MIN_RESPONSE_DELAY_MS", 2000*time.Millisecond),
		ZOPAEpsilonPct:   getFloat64OrDefault("ZOPA_EPSILON_PCT", 0.01),
		StartRatePerMin:  getIntOrDefault("START_RATE_LIMIT_PER_MIN", 30),

		// Quote defaults
		QuoteTTL:        getSecondsOrDefault("QUOTE_TTL_SECONDS", 60*time.Second),
		QuoteSigningKey: getEnvOrDefault("QUOTE_SIGNING_KEY", "dev-quote-signing-key"),

		// HTTP shell defaults
		APIAdminKey:        os.Getenv("API_ADMIN_KEY"),
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		// Hot store defaults
		RedisURL:        os.Getenv("REDIS_URL"),
		HotStoreTimeout: getMillisOrDefault("HOT_STORE_TIMEOUT_MS", 150*time.Millisecond),
		LockLease:       getSecondsOrDefault("LOCK_LEASE_SECONDS", 5*time.Second),

		// Storage defaults
		StorageMode:    getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost:   getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:   getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser:   getEnvOrDefault("POSTGRES_USER", "molbhav"),
		PostgresPass:   getEnvOrDefault("POSTGRES_PASSWORD", "molbhav123"),
		PostgresDB:     getEnvOrDefault("POSTGRES_DB", "molbhav"),
		PostgresSSL:    getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		DurableTimeout: getMillisOrDefault("DURABLE_TIMEOUT_MS", 500*time.Millisecond),

		// LLM defaults
		LLMBaseURL: os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   getEnvOrDefault("LLM_MODEL", "qwen2.5-7b-instruct"),
		LLMTimeout: getMillisOrDefault("LLM_TIMEOUT_MS", 8000*time.Millisecond),

		// Background job defaults
		ReaperInterval: getSecondsOrDefault("REAPER_INTERVAL_SECONDS", 60*time.Second),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be 'development' or 'production', got %q", c.Env)
	}

	if c.DefaultBeta <= 0 {
		return fmt.Errorf("DEFAULT_BETA must be positive, got %f", c.DefaultBeta)
	}

	if c.DefaultAlpha < 0 || c.DefaultAlpha > 1.0 {
		return fmt.Errorf("DEFAULT_ALPHA must be between 0 and 1.0, got %f", c.DefaultAlpha)
	}

	if c.DefaultMaxRounds < 1 {
		return fmt.Errorf("DEFAULT_MAX_ROUNDS must be at least 1, got %d", c.DefaultMaxRounds)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("DEFAULT_SESSION_TTL_SECONDS must be positive")
	}

	if c.ZOPAEpsilonPct < 0 || c.ZOPAEpsilonPct >= 1.0 {
		return fmt.Errorf("ZOPA_EPSILON_PCT must be in [0,1), got %f", c.ZOPAEpsilonPct)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	if c.Env == "production" {
		if c.APIAdminKey == "" {
			return fmt.Errorf("API_ADMIN_KEY is required in production")
		}

		if c.QuoteSigningKey == "dev-quote-signing-key" {
			return fmt.Errorf("QUOTE_SIGNING_KEY must be set in production")
		}
	}

	return nil
}

// IsProduction reports whether the service runs with production hardening
// (chain-of-thought stripped, dev defaults rejected).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return defaultValue
	}

	return time.Duration(secs) * time.Second
}

func getMillisOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return defaultValue
	}

	return time.Duration(ms) * time.Millisecond
}
