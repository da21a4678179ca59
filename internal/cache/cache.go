package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/internal/chunker"
	"github.com/johnyohanyoon/alfred-ai/models"
)

const keyPrefix = "alfred:query:"

// Fingerprint maps (query, collection, k) to a deterministic cache key.
// The query is lowercased and whitespace-normalized first, so requests that
// differ only in case or spacing share an entry. The collection name is part
// of the key prefix, which lets Invalidate purge one collection without
// touching the others.
func Fingerprint(query, collection string, k int) string {
	normalized := strings.ToLower(chunker.Normalize(query))
	content := fmt.Sprintf("%s|%s|%d", normalized, collection, k)
	sum := sha256.Sum256([]byte(content))
	return keyPrefix + collection + ":" + hex.EncodeToString(sum[:])
}

// Cache is a Redis-backed query result cache with graceful degradation:
// any Redis failure behaves as a miss and is logged, never surfaced to the
// caller. Safe for concurrent use.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *log.Logger
}

func New(cfg config.CacheConfig, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
		ReadTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Printf("redis not reachable at %s:%s: %v (running degraded)", cfg.Host, cfg.Port, err)
	} else {
		logger.Printf("redis cache connected (%s:%s, ttl %s)", cfg.Host, cfg.Port, ttl)
	}

	return &Cache{client: client, ttl: ttl, timeout: timeout, logger: logger}
}

// TTL is the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Ping reports whether Redis is currently reachable.
func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Get returns the cached result set for a fingerprint, or (nil, false) on
// miss, expiry, or any Redis error.
func (c *Cache) Get(ctx context.Context, fingerprint string) ([]models.SearchResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, fingerprint).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("cache get failed: %v", err)
		}
		return nil, false
	}

	var results []models.SearchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		c.logger.Printf("cache entry corrupt, dropping: %v", err)
		_ = c.client.Del(ctx, fingerprint).Err()
		return nil, false
	}
	return results, true
}

// Put stores a result set under the fingerprint with the configured TTL.
// Failures are logged and otherwise ignored (fire and forget).
func (c *Cache) Put(ctx context.Context, fingerprint string, results []models.SearchResult) {
	raw, err := json.Marshal(results)
	if err != nil {
		c.logger.Printf("cache put marshal failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.SetEx(ctx, fingerprint, raw, c.ttl).Err(); err != nil {
		c.logger.Printf("cache put failed: %v", err)
	}
}

// Invalidate removes every cached entry for the collection. Ingestion can
// change relevance for any query against the collection, so the purge is
// deliberately full-collection rather than selective. Returns the number of
// entries removed (0 on any failure).
func (c *Cache) Invalidate(ctx context.Context, collection string) int {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pattern := keyPrefix + collection + ":*"
	var removed int
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			removed += c.del(ctx, keys)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Printf("cache invalidate scan failed for %s: %v", collection, err)
		return removed
	}
	if len(keys) > 0 {
		removed += c.del(ctx, keys)
	}
	if removed > 0 {
		c.logger.Printf("invalidated %d cache entries for collection %s", removed, collection)
	}
	return removed
}

func (c *Cache) del(ctx context.Context, keys []string) int {
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Printf("cache delete failed: %v", err)
		return 0
	}
	return int(n)
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error { return c.client.Close() }
