// Package ratelimit meters monthly scan consumption per owner.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefixScans prefixes the monthly scan counters in Redis.
const KeyPrefixScans = "scans:"

// DefaultKeyGrace keeps a month's counter readable for a day after the month ends.
const DefaultKeyGrace = 24 * time.Hour

// ScanMeter counts scans per owner per calendar month.
type ScanMeter interface {
	// Increment adds one scan for owner in the month containing now and returns the new total.
	Increment(ctx context.Context, ownerID string, now time.Time) (int64, error)
	// Current returns the owner's total for the month containing now.
	Current(ctx context.Context, ownerID string, now time.Time) (int64, error)
}

// incrScript increments the counter and pins its expiry on first use, atomically.
var incrScript = redis.NewScript(`
	local key = KEYS[1]
	local expireAt = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('EXPIREAT', key, expireAt)
	end
	return count
`)

// MonthKey returns the counter key for owner in the UTC month containing now.
// Format: scans:<owner>:<YYYY-MM>
func MonthKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefixScans, ownerID, now.UTC().Format("2006-01"))
}

// monthEnd returns the first instant of the UTC month after now.
func monthEnd(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// RedisScanMeter keeps monthly counters in Redis so every API instance sees the same totals.
type RedisScanMeter struct {
	redis redis.Cmdable
	grace time.Duration
}

// NewRedisScanMeter creates a Redis-backed scan meter.
func NewRedisScanMeter(client redis.Cmdable) (*RedisScanMeter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisScanMeter{redis: client, grace: DefaultKeyGrace}, nil
}

// Increment bumps the owner's counter for the month containing now.
func (m *RedisScanMeter) Increment(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	expireAt := monthEnd(now).Add(m.grace).Unix()

	count, err := incrScript.Run(ctx, m.redis, []string{MonthKey(ownerID, now)}, expireAt).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment scan meter: %w", err)
	}
	return count, nil
}

// Current reads the owner's counter for the month containing now. A missing key is zero.
func (m *RedisScanMeter) Current(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	val, err := m.redis.Get(ctx, MonthKey(ownerID, now)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read scan meter: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scan meter value %q: %w", val, err)
	}
	return count, nil
}

// LocalScanMeter is the single-process meter used when Redis is disabled.
type LocalScanMeter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewLocalScanMeter creates an empty in-process meter.
func NewLocalScanMeter() *LocalScanMeter {
	return &LocalScanMeter{counts: make(map[string]int64)}
}

// Increment bumps the owner's counter for the month containing now.
func (m *LocalScanMeter) Increment(_ context.Context, ownerID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := MonthKey(ownerID, now)
	m.counts[key]++
	return m.counts[key], nil
}

// Current reads the owner's counter for the month containing now.
func (m *LocalScanMeter) Current(_ context.Context, ownerID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counts[MonthKey(ownerID, now)], nil
}

var (
	_ ScanMeter = (*RedisScanMeter)(nil)
	_ ScanMeter = (*LocalScanMeter)(nil)
)
