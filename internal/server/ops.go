package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// StoreAdmin is the operational view of the vector store.
type StoreAdmin interface {
	Collections(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// CacheAdmin is the operational view of the query cache.
type CacheAdmin interface {
	Ping(ctx context.Context) error
	TTL() time.Duration
	Invalidate(ctx context.Context, collection string) int
}

// ModelInfo describes the embedding side for the status report.
type ModelInfo interface {
	Model() string
	Dimensions() int
}

type OpsHandler struct {
	Store StoreAdmin
	Cache CacheAdmin
	Model ModelInfo
}

func (h *OpsHandler) Register(g *echo.Group) {
	g.GET("/collections", h.collections)
	g.GET("/status", h.status)
	g.DELETE("/cache/:collection", h.invalidate)
}

func (h *OpsHandler) collections(c echo.Context) error {
	names, err := h.Store.Collections(c.Request().Context())
	if err != nil {
		return mapPipelineError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"collections": names,
		"count":       len(names),
	})
}

// status reports per-dependency health without failing the request: a down
// dependency is data here, not an error.
func (h *OpsHandler) status(c echo.Context) error {
	ctx := c.Request().Context()

	store := map[string]interface{}{"healthy": true}
	if err := h.Store.Ping(ctx); err != nil {
		store["healthy"] = false
		store["error"] = err.Error()
	} else if names, err := h.Store.Collections(ctx); err == nil {
		store["collections"] = len(names)
	}

	cache := map[string]interface{}{"healthy": true, "ttl": h.Cache.TTL().String()}
	if err := h.Cache.Ping(ctx); err != nil {
		cache["healthy"] = false
		cache["error"] = err.Error()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"vector_store": store,
		"cache":        cache,
		"embedding": map[string]interface{}{
			"model":      h.Model.Model(),
			"dimensions": h.Model.Dimensions(),
		},
	})
}

func (h *OpsHandler) invalidate(c echo.Context) error {
	collection := c.Param("collection")
	if collection == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "collection required")
	}
	removed := h.Cache.Invalidate(c.Request().Context(), collection)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"collection": collection,
		"removed":    removed,
	})
}
