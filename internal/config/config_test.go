package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("APP_BASE_URL", "https://qr.example.com/")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_PRICE_PRO", "price_pro")
	t.Setenv("WEB3_NOVA_TOKEN_ADDRESS", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if cfg.Server.BaseURL != "https://qr.example.com" {
		t.Errorf("Server.BaseURL = %v, want trailing slash trimmed", cfg.Server.BaseURL)
	}
	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, 30*time.Second)
	}
	if cfg.Store.EventBackend != BackendPostgres {
		t.Errorf("Store.EventBackend = %v, want it to follow STORE_BACKEND", cfg.Store.EventBackend)
	}
	if !cfg.Store.UsesPostgres() {
		t.Error("Store.UsesPostgres() = false, want true")
	}
	if cfg.Store.SlugMaxAttempts != 5 {
		t.Errorf("Store.SlugMaxAttempts = %v, want 5", cfg.Store.SlugMaxAttempts)
	}
	if !cfg.Integrations.Stripe.Configured() || cfg.Integrations.Stripe.PriceIDPro != "price_pro" {
		t.Errorf("Stripe config not loaded: %+v", cfg.Integrations.Stripe)
	}
	if cfg.Integrations.Web3.ChainID != 11155111 {
		t.Errorf("Web3.ChainID = %v, want Sepolia default", cfg.Integrations.Web3.ChainID)
	}
	if cfg.Integrations.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 24h", cfg.Integrations.Auth.TokenTTL)
	}
}

func TestLoadConfig_InvalidBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "STORE_BACKEND") {
		t.Fatalf("LoadConfig() error = %v, want STORE_BACKEND error", err)
	}
}

func TestLoadConfig_InvalidChainID(t *testing.T) {
	t.Setenv("WEB3_CHAIN_ID", "sepolia")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() error = nil, want envconfig parse error")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:     StoreConfig{Backend: BackendMemory, EventBackend: BackendClickHouse, SlugMaxAttempts: 3},
			RateLimit: RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"clickhouse is not a record store", func(c *Config) { c.Store.Backend = BackendClickHouse }, true},
		{"unknown event backend", func(c *Config) { c.Store.EventBackend = "kafka" }, true},
		{"zero slug attempts", func(c *Config) { c.Store.SlugMaxAttempts = 0 }, true},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{"returns integer when valid", "TEST_INT", 100, "200", 200},
		{"returns default when invalid", "TEST_INT_INVALID", 100, "invalid", 100},
		{"returns default when not set", "TEST_INT_NOTSET", 100, "", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBoolAndFloat(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BOOL_BAD", "maybe")
	t.Setenv("TEST_FLOAT", "2.5")

	if !getEnvAsBool("TEST_BOOL", false) {
		t.Error("getEnvAsBool(TEST_BOOL) = false, want true")
	}
	if getEnvAsBool("TEST_BOOL_BAD", false) {
		t.Error("getEnvAsBool(TEST_BOOL_BAD) = true, want default false")
	}
	if got := getEnvAsFloat("TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvAsFloat() = %v, want 2.5", got)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{"returns duration when valid", "TEST_DURATION", 10 * time.Second, "30s", 30 * time.Second},
		{"returns default when invalid", "TEST_DURATION_INVALID", 10 * time.Second, "invalid", 10 * time.Second},
		{"returns default when not set", "TEST_DURATION_NOTSET", 10 * time.Second, "", 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
