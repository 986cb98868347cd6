// Package config provides configuration management for the QR hub.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage backends
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Store        StoreConfig
	Cache        CacheConfig
	RateLimit    RateLimitConfig
	Logging      LoggingConfig
	Integrations IntegrationsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	DialTimeout    time.Duration
	// AsyncInsert lets the server buffer the one-row scan inserts
	AsyncInsert bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// StoreConfig selects the record and event backends
type StoreConfig struct {
	Backend         string
	EventBackend    string
	SlugMaxAttempts int
}

// UsesPostgres reports whether any backend needs a Postgres connection
func (s StoreConfig) UsesPostgres() bool {
	return s.Backend == BackendPostgres || s.EventBackend == BackendPostgres
}

// CacheConfig holds the Redis slug cache and scan meter configuration
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// RateLimitConfig holds per-client request throttling
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// IntegrationsConfig holds third-party credentials, loaded with envconfig
type IntegrationsConfig struct {
	Auth   AuthConfig   `envconfig:"AUTH"`
	Stripe StripeConfig `envconfig:"STRIPE"`
	Web3   Web3Config   `envconfig:"WEB3"`
}

// AuthConfig holds bearer token settings. When PublicKey is set, tokens signed
// by an external identity provider with RS/ES keys are accepted as well.
type AuthConfig struct {
	JWTSecret    string        `envconfig:"JWT_SECRET"`
	JWTPublicKey string        `envconfig:"JWT_PUBLIC_KEY"`
	TokenTTL     time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

// StripeConfig holds Stripe credentials and the price ids mapped to plans
type StripeConfig struct {
	SecretKey       string `envconfig:"SECRET_KEY"`
	PublishableKey  string `envconfig:"PUBLISHABLE_KEY"`
	WebhookSecret   string `envconfig:"WEBHOOK_SECRET"`
	PriceIDPro      string `envconfig:"PRICE_PRO"`
	PriceIDBusiness string `envconfig:"PRICE_BUSINESS"`
}

// Configured reports whether checkout can be used
func (s StripeConfig) Configured() bool {
	return s.SecretKey != ""
}

// Web3Config holds wallet and contract settings surfaced by /status and the NFT mocks
type Web3Config struct {
	WalletConnectProjectID string `envconfig:"WALLETCONNECT_PROJECT_ID"`
	NovaTokenAddress       string `envconfig:"NOVA_TOKEN_ADDRESS"`
	NFTContractAddress     string `envconfig:"NFT_CONTRACT_ADDRESS"`
	ChainID                int64  `envconfig:"CHAIN_ID" default:"11155111"`
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	storeBackend := strings.ToLower(getEnv("STORE_BACKEND", BackendMemory))

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			BaseURL:         strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "qr_hub"),
				User:           getEnv("POSTGRES_USER", "qrhub"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 25),
			},
			ClickHouse: ClickHouseConfig{
				Host:           getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:           getEnv("CLICKHOUSE_PORT", "9000"),
				Database:       getEnv("CLICKHOUSE_DB", "qr_hub"),
				User:           getEnv("CLICKHOUSE_USER", "default"),
				Password:       getEnv("CLICKHOUSE_PASSWORD", ""),
				MaxConnections: getEnvAsInt("CLICKHOUSE_MAX_CONNECTIONS", 10),
				DialTimeout:    getEnvAsDuration("CLICKHOUSE_DIAL_TIMEOUT", 5*time.Second),
				AsyncInsert:    getEnvAsBool("CLICKHOUSE_ASYNC_INSERT", true),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Store: StoreConfig{
			Backend:         storeBackend,
			EventBackend:    strings.ToLower(getEnv("EVENT_BACKEND", storeBackend)),
			SlugMaxAttempts: getEnvAsInt("SLUG_MAX_ATTEMPTS", 5),
		},
		Cache: CacheConfig{
			Enabled: getEnvAsBool("CACHE_ENABLED", false),
			TTL:     getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := envconfig.Process("", &config.Integrations); err != nil {
		return nil, fmt.Errorf("error loading integration settings: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks backend selections and numeric bounds
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or postgres, got %q", c.Store.Backend)
	}
	switch c.Store.EventBackend {
	case BackendMemory, BackendPostgres, BackendClickHouse:
	default:
		return fmt.Errorf("EVENT_BACKEND must be memory, postgres or clickhouse, got %q", c.Store.EventBackend)
	}
	if c.Store.SlugMaxAttempts < 1 {
		return fmt.Errorf("SLUG_MAX_ATTEMPTS must be at least 1, got %d", c.Store.SlugMaxAttempts)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
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

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
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
