package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/internal/cache"
	"github.com/johnyohanyoon/alfred-ai/internal/chunker"
	"github.com/johnyohanyoon/alfred-ai/internal/embedding"
	"github.com/johnyohanyoon/alfred-ai/internal/ingest"
	"github.com/johnyohanyoon/alfred-ai/internal/retrieval"
	"github.com/johnyohanyoon/alfred-ai/internal/router"
	"github.com/johnyohanyoon/alfred-ai/internal/scraper"
	"github.com/johnyohanyoon/alfred-ai/internal/vectorstore"
)

// Run wires the service together and serves HTTP until the listener fails.
func Run(cfg *config.Config, addr string) error {
	e := newEcho()

	// Shared dependencies (top-level DI)
	embedder := embedding.NewClient(cfg.Embedding, log.New(log.Writer(), "[EMBED] ", log.LstdFlags))
	store := vectorstore.NewClient(cfg.Qdrant, log.New(log.Writer(), "[QDRANT] ", log.LstdFlags))
	queryCache := cache.New(cfg.Cache, log.New(log.Writer(), "[CACHE] ", log.LstdFlags))
	pages := scraper.New(cfg.Scraper, log.New(log.Writer(), "[SCRAPER] ", log.LstdFlags))
	split := chunker.New(cfg.Chunking)

	ingestPipe := ingest.NewPipeline(pages, pages, split, embedder, store, queryCache,
		cfg.Scraper.MaxParallel, log.New(log.Writer(), "[INGEST] ", log.LstdFlags))
	retrievalPipe := retrieval.NewPipeline(embedder, store, queryCache,
		log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags))
	queryRouter := router.New(cfg.Router, embedder, store, retrievalPipe,
		log.New(log.Writer(), "[ROUTER] ", log.LstdFlags))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	ih := &IngestHandler{
		Pipeline:          ingestPipe,
		Links:             pages,
		DefaultCollection: cfg.Router.DefaultCollection,
		Logger:            log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
	}
	ih.Register(api)

	sh := &SearchHandler{
		Retrieval:         retrievalPipe,
		Router:            queryRouter,
		DefaultCollection: cfg.Router.DefaultCollection,
	}
	sh.Register(api)

	oh := &OpsHandler{Store: store, Cache: queryCache, Model: embedder}
	oh.Register(api)

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with middleware and the unified JSON
// error handler shared by every endpoint.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	return e
}
