package router

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/internal/embedding"
	"github.com/johnyohanyoon/alfred-ai/internal/retrieval"
	"github.com/johnyohanyoon/alfred-ai/models"
)

// Generator is the completion side of the model provider, used for the
// optional LLM intent classifier.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts embedding.GenerateOptions) (string, error)
}

// CollectionLister reports the collections currently known to the store, so
// the classifier prompt can name them.
type CollectionLister interface {
	Collections(ctx context.Context) ([]string, error)
}

// Searcher runs a documentation search for routed queries.
type Searcher interface {
	Search(ctx context.Context, query, collection string, k int, useCache bool) (retrieval.Response, error)
}

// strategy inspects a query and either returns a decision or passes. The
// chain is ordered cheapest first; adding a classifier is a new entry, not
// a new branch.
type strategy func(ctx context.Context, query string) (models.RouteDecision, bool)

// Router classifies a query as documentation or general intent and, for
// documentation, answers it from the default collection.
type Router struct {
	cfg         config.RouterConfig
	generator   Generator
	collections CollectionLister
	searcher    Searcher
	strategies  []strategy
	logger      *log.Logger
}

func New(cfg config.RouterConfig, generator Generator, collections CollectionLister, searcher Searcher, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(log.Writer(), "[ROUTER] ", log.LstdFlags)
	}
	r := &Router{
		cfg:         cfg,
		generator:   generator,
		collections: collections,
		searcher:    searcher,
		logger:      logger,
	}
	r.strategies = []strategy{r.keywordHeuristic, r.llmClassifier, r.defaultGeneral}
	return r
}

// Route runs the strategy chain: keyword heuristic, then the LLM
// classifier, then the fail-open default to general.
func (r *Router) Route(ctx context.Context, query string) (models.RouteDecision, error) {
	if strings.TrimSpace(query) == "" {
		return models.RouteDecision{}, fmt.Errorf("%w: query must not be empty", models.ErrInvalidInput)
	}

	start := time.Now()
	for _, s := range r.strategies {
		if decision, ok := s(ctx, query); ok {
			decision.Query = query
			decision.LatencyMS = time.Since(start).Milliseconds()
			r.logger.Printf("routed %q -> %s (%s)", truncate(query, 50), decision.Target, decision.Reason)
			return decision, nil
		}
	}
	// Unreachable: defaultGeneral always decides.
	return models.RouteDecision{Query: query, Target: models.RouteGeneral, Confidence: 0.5, Reason: "default"}, nil
}

// Answer routes the query and, for documentation intent, searches the
// configured default collection. For general intent the results are nil and
// the caller forwards the query to its general answering path.
func (r *Router) Answer(ctx context.Context, query string) (models.RouteDecision, *retrieval.Response, error) {
	decision, err := r.Route(ctx, query)
	if err != nil {
		return models.RouteDecision{}, nil, err
	}
	if decision.Target != models.RouteDocumentation || r.searcher == nil {
		return decision, nil, nil
	}
	resp, err := r.searcher.Search(ctx, query, r.cfg.DefaultCollection, r.cfg.ResultCount, true)
	if err != nil {
		return models.RouteDecision{}, nil, err
	}
	return decision, &resp, nil
}

// keywordHeuristic short-circuits to documentation when the query contains
// enough of the configured intent keywords. Pure string work, resolves in
// microseconds.
func (r *Router) keywordHeuristic(_ context.Context, query string) (models.RouteDecision, bool) {
	q := strings.ToLower(query)
	matches := 0
	for _, kw := range r.cfg.Keywords {
		if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
			matches++
		}
	}
	threshold := r.cfg.StrongMatchCount
	if threshold <= 0 {
		threshold = 1
	}
	if matches >= threshold {
		return models.RouteDecision{
			Target:     models.RouteDocumentation,
			Confidence: 0.9,
			Reason:     fmt.Sprintf("keyword heuristic (%d matches)", matches),
		}, true
	}
	return models.RouteDecision{}, false
}

// llmClassifier asks a small local model to pick between documentation and
// general intent, under its own timeout. Any failure or unparseable answer
// passes to the next strategy rather than blocking the query.
func (r *Router) llmClassifier(ctx context.Context, query string) (models.RouteDecision, bool) {
	if r.generator == nil || r.cfg.ClassifierModel == "" {
		return models.RouteDecision{}, false
	}

	timeout := r.cfg.ClassifierTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := r.classifierPrompt(ctx, query)
	answer, err := r.generator.Generate(ctx, r.cfg.ClassifierModel, prompt, embedding.GenerateOptions{
		Temperature: 0.1,
		TopP:        0.9,
		NumPredict:  5,
	})
	if err != nil {
		r.logger.Printf("classifier unavailable, failing open: %v", err)
		return models.RouteDecision{}, false
	}

	switch {
	case strings.Contains(strings.ToLower(answer), "documentation"):
		return models.RouteDecision{Target: models.RouteDocumentation, Confidence: 0.7, Reason: "llm classifier"}, true
	case strings.Contains(strings.ToLower(answer), "general"):
		return models.RouteDecision{Target: models.RouteGeneral, Confidence: 0.7, Reason: "llm classifier"}, true
	default:
		r.logger.Printf("classifier answer %q not understood, falling through", answer)
		return models.RouteDecision{}, false
	}
}

// defaultGeneral fails open toward the broader-capability path.
func (r *Router) defaultGeneral(context.Context, string) (models.RouteDecision, bool) {
	return models.RouteDecision{
		Target:     models.RouteGeneral,
		Confidence: 0.5,
		Reason:     "no classifier opinion, failing open to general",
	}, true
}

func (r *Router) classifierPrompt(ctx context.Context, query string) string {
	available := "none"
	if r.collections != nil {
		if names, err := r.collections.Collections(ctx); err == nil && len(names) > 0 {
			available = strings.Join(names, ", ")
		}
	}
	return fmt.Sprintf(`Analyze this query and determine if it should be routed to 'documentation' or 'general'.

Available knowledge collections: %s

Route to 'documentation' if the query asks for specific information, how-to guides, or technical documentation likely covered by the available collections.

Route to 'general' if the query is general conversation, a creative task, or clearly outside the scope of the available collections.

Query: %q

Respond with exactly one word: either 'documentation' or 'general'`, available, query)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
