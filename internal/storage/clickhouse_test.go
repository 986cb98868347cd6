package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qr-hub/internal/config"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(&config.ClickHouseConfig{
		Host:     "localhost",
		Port:     "9000",
		Database: "qr_hub",
		User:     "default",
		Password: "clickhouse_dev_password",
	})
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunClickHouseMigrations(testContext(t), db, "../../migrations/clickhouse"); err != nil {
		t.Fatalf("RunClickHouseMigrations() error = %v", err)
	}
	return db
}

func TestClickHouseEventRepository(t *testing.T) {
	db := openTestClickHouse(t)
	repo := NewClickHouseEventRepository(db)
	ctx := testContext(t)

	recordID := uuid.New().String()
	require.NoError(t, repo.Append(ctx, &models.Event{QRCodeID: recordID, Country: "DE"}))
	require.NoError(t, repo.Append(ctx, &models.Event{
		QRCodeID:  recordID,
		EventType: types.EventPaid,
		Metadata:  map[string]interface{}{"session": "cs_1"},
	}))

	events, err := repo.ListByRecord(ctx, recordID, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventPaid, events[0].EventType)
	assert.Equal(t, "cs_1", events[0].Metadata["session"])
	assert.Equal(t, types.EventScan, events[1].EventType)
}

func TestSplitSQLStatements(t *testing.T) {
	content := `
-- header comment
CREATE TABLE a (
    id UInt64
) ENGINE = MergeTree()
ORDER BY id;

-- second
CREATE TABLE b (id UInt64) ENGINE = Memory;
SELECT 1
`
	stmts := splitSQLStatements(content)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.Equal(t, "CREATE TABLE b (id UInt64) ENGINE = Memory", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestClickHouseOptions(t *testing.T) {
	opts := clickHouseOptions(&config.ClickHouseConfig{
		Host:           "ch.internal",
		Port:           "9440",
		Database:       "qr_hub",
		User:           "writer",
		MaxConnections: 6,
		DialTimeout:    2 * time.Second,
		AsyncInsert:    true,
	})

	assert.Equal(t, []string{"ch.internal:9440"}, opts.Addr)
	assert.Equal(t, "writer", opts.Auth.Username)
	assert.Equal(t, 6, opts.MaxOpenConns)
	assert.Equal(t, 3, opts.MaxIdleConns)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 1, opts.Settings["async_insert"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])

	defaults := clickHouseOptions(&config.ClickHouseConfig{Host: "localhost", Port: "9000"})
	assert.Equal(t, 10, defaults.MaxOpenConns)
	assert.Equal(t, defaultClickHouseDialTimeout, defaults.DialTimeout)
	assert.NotContains(t, defaults.Settings, "async_insert")
}
