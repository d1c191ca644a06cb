package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the key is absent or its entry has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates an entry that is corrupted or not shareable.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager reads and writes shared entries in Redis.
type Manager struct {
	redis     *redis.Client
	namespace string
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace prefixes every key with ns, so that deployments sharing one
// Redis (staging and production, say) never answer each other's calls.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		m.namespace = ns
	}
}

// NewManager creates a Manager. It panics if redisClient is nil.
func NewManager(redisClient *redis.Client, opts ...Option) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	m := &Manager{redis: redisClient}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// redisKey returns the Redis key for key, including the namespace.
func (m *Manager) redisKey(key CacheKey) string {
	if m.namespace == "" {
		return key.String()
	}
	return m.namespace + ":" + key.String()
}

// Get returns the live entry for key, or ErrCacheMiss.
// Corrupted or expired entries are removed as they are found.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	raw, err := m.redis.Get(ctx, m.redisKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry := new(Entry)
	if err := json.Unmarshal(raw, entry); err != nil || !entry.shareable() {
		CacheErrors.WithLabelValues("get").Inc()
		_ = m.Delete(ctx, key)
		if err == nil {
			err = fmt.Errorf("status %d", entry.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry has millisecond granularity; the entry's own deadline wins.
	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return entry, nil
}

// Set shares entry under key until entry.Expires. Entries that have already
// expired are dropped silently; non-2xx entries are rejected.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *Entry) error {
	switch {
	case entry == nil:
		return fmt.Errorf("cache entry cannot be nil")
	case !entry.shareable():
		return fmt.Errorf("%w: status %d is not shared", ErrInvalidEntry, entry.StatusCode)
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := m.redis.Set(ctx, m.redisKey(key), raw, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheWriteBytes.WithLabelValues("redis").Add(float64(len(raw)))
	return nil
}

// Delete removes the entry for key, if any.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, m.redisKey(key)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks connectivity to Redis.
func (m *Manager) Ping(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}
