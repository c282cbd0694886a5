// Package executor evaluates compiled boolean queries against the head and
// body indexes.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/metrics"
)

// Viewer is satisfied by *index.InvertedIndex.
type Viewer interface {
	View(fn func(r index.Reader))
}

// SearchResult carries the matches of one query in both indexes, sorted
// by document id.
type SearchResult struct {
	Query     string   `json:"query"`
	Mode      string   `json:"mode"`
	Canonical string   `json:"canonical"`
	Head      []string `json:"head"`
	Body      []string `json:"body"`
}

type Executor struct {
	head    Viewer
	body    Viewer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds an Executor. m may be nil.
func New(head, body Viewer, m *metrics.Metrics) *Executor {
	return &Executor{
		head:    head,
		body:    body,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Search compiles text once and evaluates it against each index under that
// index's read lock. Rejected queries return a *parser.SyntaxError.
func (e *Executor) Search(ctx context.Context, text string, mode parser.Mode) (*SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	ast, err := parser.Compile(text, mode)
	if err != nil {
		e.observe(mode, "rejected", start)
		log.Debug("query rejected", "query", text, "mode", mode.String(), "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var head, body index.DocSet
	e.head.View(func(r index.Reader) { head = Evaluate(ast, r) })
	e.body.View(func(r index.Reader) { body = Evaluate(ast, r) })

	result := &SearchResult{
		Query:     text,
		Mode:      mode.String(),
		Canonical: ast.Canonical(),
		Head:      head.Sorted(),
		Body:      body.Sorted(),
	}

	outcome := "hit"
	if len(result.Head) == 0 && len(result.Body) == 0 {
		outcome = "zero_result"
	}
	e.observe(mode, outcome, start)
	if e.metrics != nil {
		e.metrics.SearchResultsCount.WithLabelValues(string(index.WordClassHead)).Observe(float64(len(result.Head)))
		e.metrics.SearchResultsCount.WithLabelValues(string(index.WordClassBody)).Observe(float64(len(result.Body)))
	}

	log.Debug("query evaluated",
		"query", text,
		"canonical", result.Canonical,
		"head_hits", len(result.Head),
		"body_hits", len(result.Body),
		"latency", time.Since(start),
	)
	return result, nil
}

func (e *Executor) observe(mode parser.Mode, outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(mode.String(), outcome).Inc()
	e.metrics.SearchLatency.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
}
