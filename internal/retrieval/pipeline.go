package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/johnyohanyoon/alfred-ai/internal/cache"
	"github.com/johnyohanyoon/alfred-ai/models"
)

// Embedder turns the query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the read side of the vector store.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, k int) ([]models.SearchResult, error)
}

// ResultCache holds previously computed result sets keyed by fingerprint.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) ([]models.SearchResult, bool)
	Put(ctx context.Context, fingerprint string, results []models.SearchResult)
}

// Response carries the ranked results plus how they were produced. Degraded
// means the vector store was unreachable and an empty set was returned
// instead of an error.
type Response struct {
	Results  []models.SearchResult `json:"results"`
	CacheHit bool                  `json:"cache_hit"`
	Degraded bool                  `json:"degraded,omitempty"`
}

// Pipeline is the read path: fingerprint, cache lookup, embed, vector
// search, cache store. Scores and ordering come from the store unmodified.
type Pipeline struct {
	embedder Embedder
	store    Searcher
	cache    ResultCache
	logger   *log.Logger
}

func NewPipeline(embedder Embedder, store Searcher, resultCache ResultCache, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &Pipeline{embedder: embedder, store: store, cache: resultCache, logger: logger}
}

// Search returns up to k ranked results for the query against the
// collection. A cache hit is returned immediately; its freshness is bounded
// by the entry TTL rather than corpus state, a deliberate latency trade.
// useCache disables both lookup and store for this request.
func (p *Pipeline) Search(ctx context.Context, query, collection string, k int, useCache bool) (Response, error) {
	if strings.TrimSpace(query) == "" {
		return Response{}, fmt.Errorf("%w: query must not be empty", models.ErrInvalidInput)
	}
	if k <= 0 {
		return Response{}, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidInput, k)
	}
	if collection == "" {
		return Response{}, fmt.Errorf("%w: collection name required", models.ErrInvalidInput)
	}

	fingerprint := cache.Fingerprint(query, collection, k)
	if useCache {
		if results, ok := p.cache.Get(ctx, fingerprint); ok {
			p.logger.Printf("cache hit for %q in %s", truncate(query, 50), collection)
			return Response{Results: results, CacheHit: true}, nil
		}
	}

	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return Response{}, err
	}

	results, err := p.store.Search(ctx, collection, vector, k)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			// Empty results beat blocking the caller on a store outage.
			p.logger.Printf("store unavailable, degrading search for %q: %v", truncate(query, 50), err)
			return Response{Results: []models.SearchResult{}, Degraded: true}, nil
		}
		return Response{}, err
	}

	if useCache {
		p.cache.Put(ctx, fingerprint, results)
	}
	p.logger.Printf("found %d results for %q in %s", len(results), truncate(query, 50), collection)
	return Response{Results: results}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
