package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/qr-hub/internal/config"
)

const defaultClickHouseDialTimeout = 5 * time.Second

// ClickHouseDB wraps the ClickHouse connection used for the scan and payment event log
type ClickHouseDB struct {
	conn driver.Conn
}

// clickHouseOptions builds driver options for the event log. Scans arrive as
// single-row inserts, so async inserts let the server batch them.
func clickHouseOptions(cfg *config.ClickHouseConfig) *clickhouse.Options {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultClickHouseDialTimeout
	}

	settings := clickhouse.Settings{
		"max_execution_time": 30,
	}
	if cfg.AsyncInsert {
		settings["async_insert"] = 1
		settings["wait_for_async_insert"] = 1
	}

	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings:         settings,
		DialTimeout:      dialTimeout,
		MaxOpenConns:     maxConns,
		MaxIdleConns:     (maxConns + 1) / 2,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}
}

// NewClickHouseDB opens the event log connection and pings it within the dial timeout
func NewClickHouseDB(cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	opts := clickHouseOptions(cfg)
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse at %s: %w", opts.Addr[0], err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Ping reports whether the event log is reachable, for /api/status
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Exec runs a statement without returning rows; used by the migration runner
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}
