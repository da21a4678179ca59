package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/models"
)

// Point is one (id, vector, payload) tuple for upsert. IDs are derived
// deterministically from (collection, source URL, sequence) so re-ingesting
// a URL replaces its chunks instead of duplicating them.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// PointID builds the stable identity for a chunk inside a collection.
func PointID(collection, sourceURL string, sequence int) string {
	name := fmt.Sprintf("%s|%s#%d", collection, sourceURL, sequence)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Client is a thin REST client for a Qdrant server. It owns no local state
// and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(cfg config.QdrantConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[QDRANT] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL(), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// EnsureCollection creates the collection with the given vector size if it
// does not exist yet. The size is fixed for the collection's lifetime.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	status, _, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	status, raw, err := c.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("create collection %s: status %d: %s", name, status, raw)
	}
	c.logger.Printf("created collection %s (dim %d)", name, vectorSize)
	return nil
}

// DeleteBySource removes all points in the collection whose payload source
// equals the given URL. Invoked before upserting a re-scraped document so a
// shorter re-scrape leaves no stale tail chunks.
func (c *Client) DeleteBySource(ctx context.Context, collection, sourceURL string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source", "match": map[string]any{"value": sourceURL}},
			},
		},
	}
	status, raw, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status != http.StatusOK {
		return fmt.Errorf("delete by source in %s: status %d: %s", collection, status, raw)
	}
	return nil
}

// Upsert writes points into the collection, replacing points with the same
// ID. Qdrant applies each upsert atomically from the caller's perspective.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, raw, err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("upsert %d points into %s: status %d: %s", len(points), collection, status, raw)
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search returns the k nearest points to the query vector, ordered by
// descending similarity exactly as the store ranks them. A nonexistent
// collection yields an empty result set rather than an error so the read
// path stays usable before a topic has been ingested.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, k int) ([]models.SearchResult, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	status, raw, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return []models.SearchResult{}, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search %s: status %d: %s", collection, status, raw)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("search %s: decode response: %w", collection, err)
	}
	results := make([]models.SearchResult, 0, len(resp.Result))
	for _, hit := range resp.Result {
		results = append(results, models.SearchResult{
			Text:   payloadString(hit.Payload, "text"),
			Source: payloadString(hit.Payload, "source"),
			Score:  hit.Score,
		})
	}
	return results, nil
}

type collectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

// Collections lists the collection names known to the store.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list collections: status %d: %s", status, raw)
	}
	var resp collectionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("list collections: decode response: %w", err)
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, col := range resp.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// Ping reports whether the store answers at all. Used by the status
// endpoint only, never on a request path.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, "/collections", nil)
	return err
}

// do sends one request and returns (status, body, error). Transport-level
// failures map to models.ErrStoreUnavailable; HTTP status handling is left
// to the caller since 404 is meaningful on some paths.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", models.ErrStoreUnavailable, err)
	}
	return resp.StatusCode, raw, nil
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
