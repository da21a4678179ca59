package cache_test

import (
	"context"
	"strings"
	"testing"
	"time"

	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/internal/cache"
	"github.com/johnyohanyoon/alfred-ai/models"
)

func startRedis(t *testing.T) config.CacheConfig {
	t.Helper()
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx)
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	uri, err := redisC.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	// redis://host:port
	addr := strings.TrimPrefix(uri, "redis://")
	host, port, ok := strings.Cut(addr, ":")
	if !ok {
		t.Fatalf("unexpected redis address %q", addr)
	}
	return config.CacheConfig{
		Host:    host,
		Port:    port,
		Timeout: 5 * time.Second,
		TTL:     time.Hour,
	}
}

func TestCacheRoundTripAndInvalidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	c := cache.New(startRedis(t), nil)
	defer c.Close()
	ctx := context.Background()

	results := []models.SearchResult{
		{Text: "configure the firewall", Source: "https://example.com/fw", Score: 0.91},
		{Text: "open the port", Source: "https://example.com/ports", Score: 0.72},
	}

	docsKey := cache.Fingerprint("how do i configure a firewall", "docs", 5)
	otherKey := cache.Fingerprint("how do i configure a firewall", "runbooks", 5)

	if _, ok := c.Get(ctx, docsKey); ok {
		t.Fatalf("expected miss before put")
	}

	c.Put(ctx, docsKey, results)
	c.Put(ctx, otherKey, results)

	got, ok := c.Get(ctx, docsKey)
	if !ok {
		t.Fatalf("expected hit after put")
	}
	if len(got) != 2 || got[0].Score != 0.91 || got[0].Source != results[0].Source {
		t.Fatalf("cached results do not round-trip: %#v", got)
	}

	// Invalidating docs must not touch the runbooks entry.
	if n := c.Invalidate(ctx, "docs"); n != 1 {
		t.Fatalf("expected 1 entry invalidated, got %d", n)
	}
	if _, ok := c.Get(ctx, docsKey); ok {
		t.Fatalf("docs entry must be gone after invalidation")
	}
	if _, ok := c.Get(ctx, otherKey); !ok {
		t.Fatalf("runbooks entry must survive docs invalidation")
	}
}
