package embedding

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

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/models"
)

// Client talks to an Ollama server for embeddings and short completions.
// It is stateless and safe for concurrent use.
type Client struct {
	host       string
	model      string
	dimensions int
	retries    int
	backoff    time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(cfg config.EmbeddingConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[EMBED] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	backoff := cfg.Backoff
	if backoff == 0 {
		backoff = 300 * time.Millisecond
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		model:      cfg.Model,
		dimensions: cfg.ExpectedDimensions(),
		retries:    retries,
		backoff:    backoff,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Dimensions is the vector size the configured model produces. Fixed per
// model; collections are created with this size.
func (c *Client) Dimensions() int { return c.dimensions }

// Model is the configured embedding model name.
func (c *Client) Model() string { return c.model }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed turns text into a fixed-dimension vector. Transient provider
// failures are retried with exponential backoff; after the budget is
// exhausted the call fails with models.ErrEmbeddingUnavailable. A provider
// rejection (4xx) is models.ErrInvalidInput and is not retried. A vector of
// unexpected dimension is models.ErrModelMismatch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", models.ErrInvalidInput)
	}

	var out embedResponse
	err := c.doJSON(ctx, c.host+"/api/embeddings", embedRequest{Model: c.model, Prompt: text}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			models.ErrModelMismatch, c.model, len(out.Embedding), c.dimensions)
	}
	return out.Embedding, nil
}

// EmbedBatch embeds texts one by one, failing fast on the first error so a
// partially embedded document is never upserted.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// GenerateOptions tunes a completion call.
type GenerateOptions struct {
	Temperature float64
	TopP        float64
	NumPredict  int
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs a non-streaming completion against the given model. Used by
// the router's intent classifier and the launcher's general answer path.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", models.ErrInvalidInput)
	}
	req := generateRequest{Model: model, Prompt: prompt, Stream: false}
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	if opts.NumPredict > 0 {
		options["num_predict"] = opts.NumPredict
	}
	if len(options) > 0 {
		req.Options = options
	}

	var out generateResponse
	if err := c.doJSON(ctx, c.host+"/api/generate", req, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Response), nil
}

// doJSON posts a JSON body and decodes a JSON response with the bounded
// retry policy. 4xx responses are fatal caller errors; everything else is
// treated as transient until the retry budget runs out.
func (c *Client) doJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			code := resp.StatusCode
			if code >= 200 && code < 300 {
				decErr := json.NewDecoder(resp.Body).Decode(out)
				resp.Body.Close()
				if decErr != nil {
					return fmt.Errorf("%w: decode response: %v", models.ErrEmbeddingUnavailable, decErr)
				}
				return nil
			}
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if code >= 400 && code < 500 {
				return fmt.Errorf("%w: %s: %s", models.ErrInvalidInput, resp.Status, strings.TrimSpace(string(b)))
			}
			lastErr = fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
		}

		if attempt < tries-1 {
			c.logger.Printf("attempt %d/%d against %s failed: %v", attempt+1, tries, url, lastErr)
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, lastErr)
}
