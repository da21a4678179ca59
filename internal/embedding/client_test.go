package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/models"
)

func testConfig(host string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Host:       host,
		Model:      "all-minilm",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		Dimensions: map[string]int{"all-minilm": 4},
	}
}

func embedHandler(t *testing.T, vector []float32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "all-minilm" {
			t.Errorf("unexpected model %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vector})
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(embedHandler(t, []float32{0.1, 0.2, 0.3, 0.4}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	vec, err := c.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected 4 dimensions, got %d", len(vec))
	}
}

func TestEmbedEmptyTextIsInvalidInput(t *testing.T) {
	c := NewClient(testConfig("http://localhost:1"), nil)
	_, err := c.Embed(context.Background(), "   ")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(embedHandler(t, []float32{0.1, 0.2}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Embed(context.Background(), "hello")
	if !errors.Is(err, models.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}

func TestEmbedRetriesThenUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Embed(context.Background(), "hello")
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", got)
	}
}

func TestEmbedDoesNotRetryRejectedInput(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Embed(context.Background(), "hello")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("rejected input must not be retried, got %d attempts", got)
	}
}

func TestEmbedRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2, 3, 4}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected 4 dimensions, got %d", len(vec))
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Errorf("expected non-streaming request")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": " documentation \n"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	got, err := c.Generate(context.Background(), "llama3.2:1b", "classify this", GenerateOptions{Temperature: 0.1, NumPredict: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "documentation" {
		t.Fatalf("expected trimmed response, got %q", got)
	}
}
