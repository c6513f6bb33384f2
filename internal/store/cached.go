package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radiodex/radiodex/internal/cache"
	"github.com/radiodex/radiodex/internal/models"
)

// Cache TTLs for the read-heavy queries.
const (
	ttlSearch    = 1 * time.Minute
	ttlTopGenres = 5 * time.Minute
	ttlStats     = 1 * time.Minute
)

// CachedStore wraps a Store with a Redis caching layer. Search results, the
// top-genres aggregation, and the stats counters are served from cache when
// possible; catalog mutations invalidate the relevant keys. Play-minute
// increments deliberately do not invalidate: ranking drift within the search
// TTL is acceptable and keeps the hot path cheap.
type CachedStore struct {
	inner Store
	cache *cache.Redis
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c}
}

// --- cached read operations ---

func (c *CachedStore) GetStationsByGenre(ctx context.Context, terms []string) ([]models.Station, error) {
	key := "stations:" + termsHash(terms)
	if v, err := cache.Get[[]models.Station](ctx, c.cache, key); err == nil {
		return v, nil
	}
	stations, err := c.inner.GetStationsByGenre(ctx, terms)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, stations, ttlSearch); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return stations, nil
}

func (c *CachedStore) GetOnlineStations(ctx context.Context) ([]models.Station, error) {
	return c.GetStationsByGenre(ctx, nil)
}

func (c *CachedStore) TopGenres(ctx context.Context) ([]string, error) {
	const key = "genres:top"
	if v, err := cache.Get[[]string](ctx, c.cache, key); err == nil {
		return v, nil
	}
	top, err := c.inner.TopGenres(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, top, ttlTopGenres); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return top, nil
}

type dbStats struct {
	Online int `json:"online"`
	Total  int `json:"total"`
}

func (c *CachedStore) DBStats(ctx context.Context) (int, int, error) {
	const key = "stats"
	if v, err := cache.Get[dbStats](ctx, c.cache, key); err == nil {
		return v.Online, v.Total, nil
	}
	online, total, err := c.inner.DBStats(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := cache.Set(ctx, c.cache, key, dbStats{Online: online, Total: total}, ttlStats); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return online, total, nil
}

// --- write operations with cache invalidation ---

func (c *CachedStore) AddStation(ctx context.Context, st *models.Station) (int64, error) {
	id, err := c.inner.AddStation(ctx, st)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "stations:*")
	c.invalidate(ctx, "stats")
	return id, nil
}

func (c *CachedStore) UpdateStation(ctx context.Context, id int64, fields StationUpdate) error {
	if err := c.inner.UpdateStation(ctx, id, fields); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "stations:*")
	c.invalidate(ctx, "stats")
	return nil
}

func (c *CachedStore) MarkDuplicate(ctx context.Context, id int64) error {
	if err := c.inner.MarkDuplicate(ctx, id); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "stations:*")
	return nil
}

func (c *CachedStore) AddToList(ctx context.Context, stationID int64, userID string) error {
	if err := c.inner.AddToList(ctx, stationID, userID); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "stations:*")
	return nil
}

func (c *CachedStore) RemoveFromList(ctx context.Context, stationID int64, userID string) error {
	if err := c.inner.RemoveFromList(ctx, stationID, userID); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "stations:*")
	return nil
}

// --- passthrough (no caching) ---

func (c *CachedStore) Exists(ctx context.Context, url string) (bool, error) {
	return c.inner.Exists(ctx, url)
}

func (c *CachedStore) GetStationByID(ctx context.Context, id int64) (*models.Station, error) {
	return c.inner.GetStationByID(ctx, id)
}

func (c *CachedStore) ListStations(ctx context.Context) ([]models.Station, error) {
	return c.inner.ListStations(ctx)
}

func (c *CachedStore) IncrementPlayMinutes(ctx context.Context, id int64) error {
	return c.inner.IncrementPlayMinutes(ctx, id)
}

func (c *CachedStore) LogGenres(ctx context.Context, genres string) error {
	return c.inner.LogGenres(ctx, genres)
}

func (c *CachedStore) SaveRevalidationStats(ctx context.Context, stats models.RevalidationStats) error {
	return c.inner.SaveRevalidationStats(ctx, stats)
}

func (c *CachedStore) Close() error {
	return c.inner.Close()
}

// --- helpers ---

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil && err != redis.Nil {
		log.Printf("cache: del %v: %v", keys, err)
	}
}

// invalidatePattern deletes all keys matching the given glob patterns.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			log.Printf("cache: del pattern %s: %v", p, err)
		}
	}
}

// termsHash produces a short deterministic hash for a term set so it can be
// used as part of a cache key.
func termsHash(terms []string) string {
	raw := strings.Join(cleanTerms(terms), "\x00")
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}
