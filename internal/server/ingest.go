package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/johnyohanyoon/alfred-ai/models"
)

// Ingestor runs the write path: fetch, chunk, embed, store.
type Ingestor interface {
	Ingest(ctx context.Context, urls []string, collection string) ([]models.URLReport, error)
	BulkIngest(ctx context.Context, baseURL, collection string) ([]string, []models.URLReport, error)
}

// Discoverer lists same-host links under a base URL without ingesting them.
type Discoverer interface {
	ExtractLinks(ctx context.Context, baseURL string) ([]string, error)
}

// IngestHandler exposes the scraping endpoints. Ingestion is slow (network
// fetches plus embedding calls), so by default work runs in the background
// and the handler answers 202; wait=true runs inline and returns the
// per-URL reports.
type IngestHandler struct {
	Pipeline          Ingestor
	Links             Discoverer
	DefaultCollection string
	BackgroundTimeout time.Duration
	Logger            *log.Logger
}

func (h *IngestHandler) Register(g *echo.Group) {
	g.POST("/scrape", h.scrape)
	g.POST("/bulk-scrape", h.bulkScrape)
}

type scrapeRequest struct {
	URL        string   `json:"url"`
	URLs       []string `json:"urls"`
	Collection string   `json:"collection_name"`
	Wait       bool     `json:"wait"`
}

func (h *IngestHandler) scrape(c echo.Context) error {
	var req scrapeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	urls := req.URLs
	if req.URL != "" {
		urls = append([]string{req.URL}, urls...)
	}
	if len(urls) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "url or urls required")
	}
	collection := h.collection(req.Collection)

	if req.Wait {
		reports, err := h.Pipeline.Ingest(c.Request().Context(), urls, collection)
		if err != nil {
			return mapPipelineError(err)
		}
		observeReports(reports)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"collection": collection,
			"reports":    reports,
		})
	}

	go h.background(urls, collection)
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"status":     "accepted",
		"collection": collection,
		"urls":       len(urls),
	})
}

type bulkScrapeRequest struct {
	BaseURL    string `json:"base_url"`
	Collection string `json:"collection_name"`
	Wait       bool   `json:"wait"`
}

func (h *IngestHandler) bulkScrape(c echo.Context) error {
	var req bulkScrapeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.BaseURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "base_url required")
	}
	collection := h.collection(req.Collection)

	if req.Wait {
		links, reports, err := h.Pipeline.BulkIngest(c.Request().Context(), req.BaseURL, collection)
		if err != nil {
			return mapPipelineError(err)
		}
		observeReports(reports)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"collection":  collection,
			"links_found": len(links),
			"reports":     reports,
		})
	}

	// Discover links inline so the caller learns the batch size, then hand
	// the slow part to the background.
	links, err := h.Links.ExtractLinks(c.Request().Context(), req.BaseURL)
	if err != nil {
		return mapPipelineError(err)
	}
	go h.background(links, collection)

	preview := links
	if len(preview) > 10 {
		preview = preview[:10]
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"status":      "accepted",
		"collection":  collection,
		"links_found": len(links),
		"links":       preview,
	})
}

func (h *IngestHandler) background(urls []string, collection string) {
	timeout := h.BackgroundTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reports, err := h.Pipeline.Ingest(ctx, urls, collection)
	if err != nil {
		h.Logger.Printf("background ingest into %s failed: %v", collection, err)
		return
	}
	observeReports(reports)
	ok := 0
	for _, r := range reports {
		if r.Success {
			ok++
		}
	}
	h.Logger.Printf("background ingest into %s done: %d/%d urls succeeded", collection, ok, len(reports))
}

func (h *IngestHandler) collection(requested string) string {
	if requested != "" {
		return requested
	}
	return h.DefaultCollection
}

func mapPipelineError(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrModelMismatch):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrFetch):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable), errors.Is(err, models.ErrEmbeddingUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
