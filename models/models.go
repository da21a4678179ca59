package models

import (
	"errors"
	"time"
)

// Error taxonomy shared across the pipelines. Transient dependency errors
// (fetch/embedding/store) are retried inside the owning component and then
// surfaced per item; ErrInvalidInput is a caller error and is never retried.
var (
	// ErrInvalidInput is returned for malformed caller input (empty query,
	// non-positive k, unparseable URL).
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetch is returned when a URL cannot be fetched or does not carry
	// textual content.
	ErrFetch = errors.New("fetch failed")

	// ErrEmbeddingUnavailable is returned when the embedding provider stays
	// unreachable after the retry budget is exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrStoreUnavailable is returned on vector store connection or timeout
	// errors. Retryable for reads, fatal for the current ingestion attempt.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrModelMismatch is returned when an embedding's dimension disagrees
	// with the collection's expected dimension. A collection's dimension is
	// fixed at creation, so this is a configuration error and stops
	// ingestion into the affected collection.
	ErrModelMismatch = errors.New("embedding model dimension mismatch")
)

// Document is one fetched page. Re-scraping the same URL supersedes the
// previous document rather than merging with it.
type Document struct {
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	Title     string    `json:"title,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Chunk is the unit of embedding and storage. Identity inside the vector
// store is (collection, source URL, sequence index), so re-ingesting a URL
// replaces its chunks instead of duplicating them.
type Chunk struct {
	SourceURL  string    `json:"source_url"`
	Sequence   int       `json:"sequence"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"-"`
	Collection string    `json:"collection"`
}

// SearchResult is one ranked hit from the vector store, scores passed
// through unmodified.
type SearchResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// URLReport is the per-URL outcome of an ingestion call. A failed URL never
// aborts the rest of the batch.
type URLReport struct {
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// RouteTarget is where a routed query should be answered.
type RouteTarget string

const (
	RouteDocumentation RouteTarget = "documentation"
	RouteGeneral       RouteTarget = "general"
)

// RouteDecision is the ephemeral outcome of routing one query.
type RouteDecision struct {
	Query      string      `json:"query"`
	Target     RouteTarget `json:"target"`
	Confidence float64     `json:"confidence"`
	Reason     string      `json:"reason"`
	LatencyMS  int64       `json:"latency_ms"`
}
