package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/johnyohanyoon/alfred-ai/internal/vectorstore"
	"github.com/johnyohanyoon/alfred-ai/models"
)

// Fetcher retrieves one URL's readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (models.Document, error)
}

// LinkExtractor discovers same-domain links on a base page.
type LinkExtractor interface {
	ExtractLinks(ctx context.Context, baseURL string) ([]string, error)
}

// Splitter breaks document text into embeddable chunks.
type Splitter interface {
	Split(text string) []string
}

// Embedder turns chunk texts into vectors of a fixed dimension.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Store is the write side of the vector store.
type Store interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	DeleteBySource(ctx context.Context, collection, sourceURL string) error
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
}

// Invalidator purges cached query results for a collection.
type Invalidator interface {
	Invalidate(ctx context.Context, collection string) int
}

// Pipeline is the write path: fetch, chunk, embed, upsert, one URL at a
// time as a logical unit, with independent URLs processed concurrently.
type Pipeline struct {
	fetcher     Fetcher
	extractor   LinkExtractor
	splitter    Splitter
	embedder    Embedder
	store       Store
	cache       Invalidator
	maxParallel int
	logger      *log.Logger
}

func NewPipeline(fetcher Fetcher, extractor LinkExtractor, splitter Splitter, embedder Embedder, store Store, cache Invalidator, maxParallel int, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Pipeline{
		fetcher:     fetcher,
		extractor:   extractor,
		splitter:    splitter,
		embedder:    embedder,
		store:       store,
		cache:       cache,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// Ingest processes each URL independently and reports one status per URL in
// input order. A failed URL never aborts the batch; the one exception is a
// dimension mismatch, which is a configuration error and cancels the
// remaining URLs to keep the collection's vectors homogeneous. When at
// least one URL succeeded, cached results for the collection are
// invalidated after its upserts completed.
func (p *Pipeline) Ingest(ctx context.Context, urls []string, collection string) ([]models.URLReport, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name required", models.ErrInvalidInput)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: at least one URL required", models.ErrInvalidInput)
	}

	if err := p.store.EnsureCollection(ctx, collection, p.embedder.Dimensions()); err != nil {
		// The store being down fails the whole write attempt; every URL is
		// reported failed rather than silently dropped.
		reports := make([]models.URLReport, len(urls))
		for i, url := range urls {
			reports[i] = models.URLReport{URL: url, Reason: err.Error()}
		}
		return reports, nil
	}

	reports := make([]models.URLReport, len(urls))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxParallel)

	for i, url := range urls {
		group.Go(func() error {
			if gctx.Err() != nil {
				reports[i] = models.URLReport{URL: url, Reason: "aborted: " + context.Cause(gctx).Error()}
				return nil
			}
			count, err := p.ingestOne(gctx, url, collection)
			if err != nil {
				reports[i] = models.URLReport{URL: url, Reason: err.Error()}
				if errors.Is(err, models.ErrModelMismatch) {
					return err
				}
				return nil
			}
			reports[i] = models.URLReport{URL: url, Success: true, ChunkCount: count}
			return nil
		})
	}
	groupErr := group.Wait()

	ingested := 0
	for _, r := range reports {
		if r.Success {
			ingested++
		}
	}
	if ingested > 0 {
		p.cache.Invalidate(ctx, collection)
	}
	p.logger.Printf("ingested %d/%d urls into %s", ingested, len(urls), collection)

	if groupErr != nil && errors.Is(groupErr, models.ErrModelMismatch) {
		return reports, groupErr
	}
	return reports, nil
}

// BulkIngest discovers same-domain links on the base page and ingests them.
// The returned link list is the deduplicated discovery result.
func (p *Pipeline) BulkIngest(ctx context.Context, baseURL, collection string) ([]string, []models.URLReport, error) {
	links, err := p.extractor.ExtractLinks(ctx, baseURL)
	if err != nil {
		return nil, nil, err
	}
	if len(links) == 0 {
		return nil, nil, fmt.Errorf("%w: no links found at %s", models.ErrFetch, baseURL)
	}
	reports, err := p.Ingest(ctx, links, collection)
	return links, reports, err
}

// ingestOne runs the fetch -> chunk -> embed -> upsert sequence for one URL.
// Its chunk set is upserted as one logical unit; the deterministic point IDs
// plus the preceding delete-by-source make re-ingestion replace rather than
// duplicate.
func (p *Pipeline) ingestOne(ctx context.Context, url, collection string) (int, error) {
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}

	chunks := p.splitter.Split(doc.Text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no chunkable text at %s", models.ErrFetch, url)
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, err
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, text := range chunks {
		points[i] = vectorstore.Point{
			ID:     vectorstore.PointID(collection, url, i),
			Vector: vectors[i],
			Payload: map[string]any{
				"text":        text,
				"source":      url,
				"chunk_index": i,
			},
		}
	}

	if err := p.store.DeleteBySource(ctx, collection, url); err != nil {
		return 0, err
	}
	if err := p.store.Upsert(ctx, collection, points); err != nil {
		return 0, err
	}
	return len(points), nil
}
