package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qr-hub/internal/models"
)

// CacheService provides JSON caching on top of Redis
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyQRSlug is for resolved QR records keyed by slug
	CacheKeyQRSlug CacheKeyType = "qr:slug"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := append([]string{string(keyType)}, params...)
	return strings.Join(parts, ":")
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get retrieves a value from cache and deserializes it. A miss returns false with no error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// SlugCache caches QR records by slug for the public read path
type SlugCache struct {
	cache *CacheService
}

// NewSlugCache creates a slug cache over cache
func NewSlugCache(cache *CacheService) *SlugCache {
	return &SlugCache{cache: cache}
}

func (s *SlugCache) key(slug string) string {
	return s.cache.GenerateCacheKey(CacheKeyQRSlug, slug)
}

// Get returns the cached record for slug, or nil on a miss
func (s *SlugCache) Get(ctx context.Context, slug string) (*models.QRRecord, error) {
	var record models.QRRecord
	found, err := s.cache.Get(ctx, s.key(slug), &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

// Put caches record under its slug
func (s *SlugCache) Put(ctx context.Context, record *models.QRRecord) error {
	return s.cache.Set(ctx, s.key(record.Slug), record)
}

// Invalidate drops the cached record for slug
func (s *SlugCache) Invalidate(ctx context.Context, slug string) error {
	return s.cache.Invalidate(ctx, s.key(slug))
}
