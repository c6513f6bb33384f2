package engage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radiodex/radiodex/internal/cache"
)

// MemoryCache is an in-process FingerprintCache. It is the default backend
// for single-instance deployments.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory fingerprint cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen marks key for ttl and reports whether an unexpired mark already
// existed. Expired entries are pruned lazily on access.
func (m *MemoryCache) Seen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiry, ok := m.entries[key]; ok && now.Before(expiry) {
		return true, nil
	}
	m.entries[key] = now.Add(ttl)

	// Keep the map from growing without bound between reports.
	if len(m.entries)%1024 == 0 {
		for k, expiry := range m.entries {
			if now.After(expiry) {
				delete(m.entries, k)
			}
		}
	}
	return false, nil
}

// Forget drops the mark for key if present.
func (m *MemoryCache) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// RedisCache is a FingerprintCache backed by Redis, for deployments where
// several instances share one catalog and throttling must hold across all of
// them.
type RedisCache struct {
	redis *cache.Redis
}

// NewRedisCache creates a fingerprint cache on the given Redis connection.
func NewRedisCache(r *cache.Redis) *RedisCache {
	return &RedisCache{redis: r}
}

// Seen uses SET NX EX: the first caller in a window sets the key, everyone
// else sees it as held.
func (r *RedisCache) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := r.redis.Client().SetNX(ctx, key, "1", ttl).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return !set, nil
}

// Forget deletes the mark for key.
func (r *RedisCache) Forget(ctx context.Context, key string) error {
	return r.redis.Client().Del(ctx, key).Err()
}
