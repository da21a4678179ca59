package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/johnyohanyoon/alfred-ai/models"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alfred_searches_total",
		Help: "Search requests served, by cache outcome.",
	}, []string{"outcome"})

	ingestedChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alfred_ingested_chunks_total",
		Help: "Chunks embedded and stored across all ingestion calls.",
	})

	ingestedPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alfred_ingested_pages_total",
		Help: "Pages processed by ingestion, by result.",
	}, []string{"result"})

	routeDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alfred_route_decisions_total",
		Help: "Query routing decisions, by target.",
	}, []string{"target"})
)

func observeReports(reports []models.URLReport) {
	for _, r := range reports {
		if r.Success {
			ingestedPagesTotal.WithLabelValues("success").Inc()
			ingestedChunksTotal.Add(float64(r.ChunkCount))
		} else {
			ingestedPagesTotal.WithLabelValues("failure").Inc()
		}
	}
}
