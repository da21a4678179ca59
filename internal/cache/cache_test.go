package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/johnyohanyoon/alfred-ai/config"
)

func TestFingerprintNormalization(t *testing.T) {
	a := Fingerprint("Hello World", "docs", 5)
	b := Fingerprint("hello world", "docs", 5)
	if a != b {
		t.Fatalf("case must not change the fingerprint: %s vs %s", a, b)
	}
	c := Fingerprint("  hello   world \n", "docs", 5)
	if a != c {
		t.Fatalf("whitespace must not change the fingerprint: %s vs %s", a, c)
	}
}

func TestFingerprintDiscriminates(t *testing.T) {
	base := Fingerprint("hello world", "docs", 5)
	if Fingerprint("hello world", "runbooks", 5) == base {
		t.Fatalf("different collections must not share a fingerprint")
	}
	if Fingerprint("hello world", "docs", 3) == base {
		t.Fatalf("different k must not share a fingerprint")
	}
	if Fingerprint("hello there", "docs", 5) == base {
		t.Fatalf("different queries must not share a fingerprint")
	}
}

func TestFingerprintScopedByCollectionPrefix(t *testing.T) {
	fp := Fingerprint("hello", "docs", 5)
	if !strings.HasPrefix(fp, keyPrefix+"docs:") {
		t.Fatalf("fingerprint must carry the collection prefix for bulk invalidation, got %s", fp)
	}
}

// With Redis unreachable every operation must degrade to miss behaviour
// without surfacing an error.
func TestDegradedCacheBehavesAsMiss(t *testing.T) {
	c := New(config.CacheConfig{
		Host:    "127.0.0.1",
		Port:    "1",
		Timeout: 200 * time.Millisecond,
		TTL:     time.Minute,
	}, nil)
	defer c.Close()

	ctx := context.Background()
	fp := Fingerprint("hello", "docs", 5)

	if _, ok := c.Get(ctx, fp); ok {
		t.Fatalf("unreachable redis must read as a miss")
	}
	c.Put(ctx, fp, nil) // must not panic or block beyond the timeout
	if n := c.Invalidate(ctx, "docs"); n != 0 {
		t.Fatalf("unreachable redis must invalidate nothing, got %d", n)
	}
}
