package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/johnyohanyoon/alfred-ai/internal/retrieval"
	"github.com/johnyohanyoon/alfred-ai/models"
)

const (
	defaultK = 5
	maxK     = 20
)

// Retriever runs the cached read path.
type Retriever interface {
	Search(ctx context.Context, query, collection string, k int, useCache bool) (retrieval.Response, error)
}

// Answerer classifies a query and, for documentation intent, answers it from
// the default collection.
type Answerer interface {
	Answer(ctx context.Context, query string) (models.RouteDecision, *retrieval.Response, error)
}

type SearchHandler struct {
	Retrieval         Retriever
	Router            Answerer
	DefaultCollection string
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/search", h.search)
	g.POST("/route", h.route)
}

type searchRequest struct {
	Query      string `json:"query"`
	Collection string `json:"collection"`
	K          int    `json:"k"`
	UseCache   *bool  `json:"use_cache"`
}

func (h *SearchHandler) search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.K == 0 {
		req.K = defaultK
	}
	if req.K < 1 || req.K > maxK {
		return echo.NewHTTPError(http.StatusBadRequest, "k must be between 1 and 20")
	}
	if req.Collection == "" {
		req.Collection = h.DefaultCollection
	}
	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	resp, err := h.Retrieval.Search(c.Request().Context(), req.Query, req.Collection, req.K, useCache)
	if err != nil {
		return mapPipelineError(err)
	}

	outcome := "miss"
	if resp.CacheHit {
		outcome = "hit"
	}
	searchesTotal.WithLabelValues(outcome).Inc()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"query":      req.Query,
		"collection": req.Collection,
		"count":      len(resp.Results),
		"results":    resp.Results,
		"cache_hit":  resp.CacheHit,
		"degraded":   resp.Degraded,
	})
}

type routeRequest struct {
	Query string `json:"query"`
}

func (h *SearchHandler) route(c echo.Context) error {
	var req routeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	decision, resp, err := h.Router.Answer(c.Request().Context(), req.Query)
	if err != nil {
		return mapPipelineError(err)
	}
	routeDecisionsTotal.WithLabelValues(string(decision.Target)).Inc()

	body := map[string]interface{}{"decision": decision}
	if resp != nil {
		body["count"] = len(resp.Results)
		body["results"] = resp.Results
		body["cache_hit"] = resp.CacheHit
		body["degraded"] = resp.Degraded
	}
	return c.JSON(http.StatusOK, body)
}
