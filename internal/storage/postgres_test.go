package storage

import (
	"testing"

	"github.com/qr-hub/internal/config"
	"github.com/stretchr/testify/assert"
)

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "qr_hub",
		User:           "qrhub",
		Password:       "qrhub_dev_password",
		MaxConnections: 5,
	}
}

// openTestPostgres connects and migrates, skipping when Postgres is unavailable
func openTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(PostgresURL(cfg), "../../migrations/postgres"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return db
}

func TestNewPostgresDB(t *testing.T) {
	db := openTestPostgres(t)

	ctx := testContext(t)
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Pool() == nil {
		t.Error("Pool() returned nil")
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := &config.PostgresConfig{
		Host:     "db",
		Port:     "5433",
		Database: "qr_hub",
		User:     "qr",
		Password: "p@ss/word",
	}

	assert.Equal(t, "postgres://qr:p%40ss%2Fword@db:5433/qr_hub?sslmode=disable", PostgresURL(cfg))
}
