package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// BarCacheEntry represents a cached bar series with metadata
type BarCacheEntry struct {
	Bars      []models.Bar `json:"bars"`
	CachedAt  time.Time    `json:"cached_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// BarCacheStats tracks cache performance metrics
type BarCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// RedisBarCache implements read-through caching of daily bar series using
// Redis. Keys are bars:{ticker}:{start}:{end} so two requests for the same
// window share one provider fetch regardless of their clustering parameters.
type RedisBarCache struct {
	redis  *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	stats  BarCacheStats
	prefix string
}

// NewRedisBarCache creates a new Redis-based bar cache
func NewRedisBarCache(redisClient *redis.Client, ttl time.Duration) *RedisBarCache {
	return &RedisBarCache{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "bars:",
	}
}

func (c *RedisBarCache) key(ticker, start, end string) string {
	return fmt.Sprintf("%s%s:%s:%s", c.prefix, ticker, start, end)
}

// Get retrieves a bar series for a ticker and date window from Redis cache
func (c *RedisBarCache) Get(ctx context.Context, ticker, start, end string) ([]models.Bar, bool) {
	cacheKey := c.key(ticker, start, end)

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		c.recordMiss()
		return nil, false
	}
	if err != nil {
		log.Printf("Redis error getting bars for %s: %v", ticker, err)
		c.recordMiss()
		return nil, false
	}

	var entry BarCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		log.Printf("Error deserializing cached bars for %s: %v", ticker, err)
		c.recordMiss()
		return nil, false
	}

	// Redis TTL normally evicts first; the envelope check covers entries
	// written under a longer TTL before a config change.
	if time.Now().After(entry.ExpiresAt) {
		log.Printf("Cached bars for %s expired, treating as miss", ticker)
		c.recordMiss()
		return nil, false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()

	return entry.Bars, true
}

// Set stores a bar series for a ticker and date window in Redis cache
func (c *RedisBarCache) Set(ctx context.Context, ticker, start, end string, bars []models.Bar) {
	cacheKey := c.key(ticker, start, end)

	now := time.Now()
	entry := BarCacheEntry{
		Bars:      bars,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error serializing bars for %s: %v", ticker, err)
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		log.Printf("Redis error setting bars for %s: %v", ticker, err)
		return
	}

	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()
}

func (c *RedisBarCache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

// GetStats returns current cache statistics
func (c *RedisBarCache) GetStats() BarCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LogStats logs current cache performance statistics
func (c *RedisBarCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	log.Printf("Redis Bar Cache Stats - Hits: %d, Misses: %d, Sets: %d, Hit Rate: %.2f%%",
		stats.Hits, stats.Misses, stats.Sets, hitRate)
}

// InvalidateTicker removes every cached window for one ticker using SCAN
func (c *RedisBarCache) InvalidateTicker(ctx context.Context, ticker string) (int, error) {
	pattern := c.prefix + ticker + ":*"

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return 0, nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("error invalidating cache: %w", err)
	}

	log.Printf("Invalidated %d cached bar windows for %s", len(keys), ticker)
	return len(keys), nil
}

// Clear removes all cached bar series
func (c *RedisBarCache) Clear(ctx context.Context) error {
	pattern := c.prefix + "*"

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}

	log.Printf("Cleared %d bar cache entries", len(keys))
	return nil
}
