package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/logger"
)

// Searcher is satisfied by *executor.Executor.
type Searcher interface {
	Search(ctx context.Context, text string, mode parser.Mode) (*executor.SearchResult, error)
}

// Index is satisfied by *indexer.Engine.
type Index interface {
	BuildDocument(ctx context.Context, doc indexer.Document) error
	Stats() indexer.Stats
	Generation() int64
}

// Tracker is satisfied by *analytics.Collector.
type Tracker interface {
	Track(ev analytics.SearchEvent)
}

type Options struct {
	DefaultMode    parser.Mode
	MaxQueryLength int
}

type SearchResponse struct {
	executor.SearchResult
	CacheHit  bool  `json:"cache_hit"`
	LatencyMs int64 `json:"latency_ms"`
}

type Handler struct {
	searcher Searcher
	index    Index
	cache    *cache.QueryCache
	tracker  Tracker
	opts     Options
	logger   *slog.Logger
}

// New builds the search API handler. queryCache and tracker may be nil.
func New(s Searcher, idx Index, queryCache *cache.QueryCache, tracker Tracker, opts Options) *Handler {
	return &Handler{
		searcher: s,
		index:    idx,
		cache:    queryCache,
		tracker:  tracker,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&mode=prefix|infix.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	mode := h.opts.DefaultMode
	if m := r.URL.Query().Get("mode"); m != "" {
		parsed, err := parser.ParseMode(m)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = parsed
	}
	if h.opts.MaxQueryLength > 0 && len(query) > h.opts.MaxQueryLength {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("query must be at most %d bytes", h.opts.MaxQueryLength))
		return
	}

	var (
		result   *executor.SearchResult
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, mode, query, h.index.Generation(), func() (*executor.SearchResult, error) {
			return h.searcher.Search(ctx, query, mode)
		})
	} else {
		result, err = h.searcher.Search(ctx, query, mode)
	}
	latency := time.Since(start)

	if err != nil {
		var syn *parser.SyntaxError
		if errors.As(err, &syn) {
			h.track(r, analytics.SearchEvent{Query: query, Mode: mode.String(), Outcome: analytics.OutcomeRejected}, latency)
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":    syn.Error(),
				"query":    syn.Query,
				"position": syn.Position,
			})
			return
		}
		status := apperrors.HTTPStatusCode(err)
		log.Error("search failed", "query", query, "mode", mode.String(), "error", err)
		h.writeError(w, status, "search failed")
		return
	}

	resp := SearchResponse{SearchResult: *result, CacheHit: cacheHit, LatencyMs: latency.Milliseconds()}
	resp.Query = query

	outcome := analytics.OutcomeHit
	if len(resp.Head) == 0 && len(resp.Body) == 0 {
		outcome = analytics.OutcomeZeroResult
	}
	h.track(r, analytics.SearchEvent{
		Query:     query,
		Mode:      mode.String(),
		Canonical: resp.Canonical,
		Outcome:   outcome,
		HeadHits:  len(resp.Head),
		BodyHits:  len(resp.Body),
		CacheHit:  cacheHit,
	}, latency)

	log.Info("search completed",
		"query", query,
		"mode", mode.String(),
		"head_hits", len(resp.Head),
		"body_hits", len(resp.Body),
		"cache_hit", cacheHit,
		"latency_ms", resp.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// BuildDocument handles POST /api/v1/documents.
func (h *Handler) BuildDocument(w http.ResponseWriter, r *http.Request) {
	var doc indexer.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc.Source = indexer.SourceAPI
	if err := h.index.BuildDocument(r.Context(), doc); err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("build document failed", "doc_id", doc.ID, "error", err)
		}
		h.writeError(w, status, apperrors.ClientMessage(err, "build document failed"))
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"document_id": doc.ID,
		"generation":  h.index.Generation(),
	})
}

// IndexStats handles GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.index.Stats())
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	s := h.cache.Stats()
	total := s.Hits + s.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     s.Hits,
		"misses":   s.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  s.Breaker,
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) track(r *http.Request, ev analytics.SearchEvent, latency time.Duration) {
	if h.tracker == nil {
		return
	}
	ev.LatencyMs = latency.Milliseconds()
	ev.Timestamp = time.Now().UTC()
	ev.RequestID = logger.RequestID(r.Context())
	h.tracker.Track(ev)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
