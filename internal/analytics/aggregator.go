package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	defaultTop        = 10
	maxTop            = 100
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	ByMode            map[string]int64 `json:"by_mode"`
	ByOutcome         map[string]int64 `json:"by_outcome"`
	CacheHits         int64            `json:"cache_hits"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	RejectedQueries   []QueryCount     `json:"rejected_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds SearchEvents into running totals. Latencies are kept in
// a ring of the most recent samples.
type Aggregator struct {
	mu          sync.RWMutex
	total       int64
	cacheHits   int64
	byMode      map[string]int64
	byOutcome   map[string]int64
	latencies   []int64
	next        int
	queries     map[string]int64
	zeroResults map[string]int64
	rejected    map[string]int64
	startTime   time.Time
	logger      *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byMode:      make(map[string]int64),
		byOutcome:   make(map[string]int64),
		latencies:   make([]int64, 0, 1024),
		queries:     make(map[string]int64),
		zeroResults: make(map[string]int64),
		rejected:    make(map[string]int64),
		startTime:   time.Now(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a kafka.Handler feeding the search-events topic into
// agg.
func HandleEvent(agg *Aggregator) kafka.Handler {
	return func(_ context.Context, _, value []byte) error {
		ev, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode search event", "error", err)
			return err
		}
		agg.Record(ev)
		return nil
	}
}

func (a *Aggregator) Record(ev SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byMode[ev.Mode]++
	a.byOutcome[string(ev.Outcome)]++
	if ev.CacheHit {
		a.cacheHits++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ev.LatencyMs)
	} else {
		a.latencies[a.next] = ev.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}

	switch ev.Outcome {
	case OutcomeRejected:
		a.rejected[ev.Query]++
	case OutcomeZeroResult:
		a.zeroResults[ev.Query]++
		a.queries[ev.Query]++
	default:
		a.queries[ev.Query]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	return a.Snapshot(defaultTop)
}

// Snapshot is Stats with the query lists cut to top entries each.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches: a.total,
		ByMode:        copyCounts(a.byMode),
		ByOutcome:     copyCounts(a.byOutcome),
		CacheHits:     a.cacheHits,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queries, top)
	stats.ZeroResultQueries = topN(a.zeroResults, top)
	stats.RejectedQueries = topN(a.rejected, top)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then by query so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	if n <= 0 {
		return []QueryCount{}
	}
	result := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		result = append(result, QueryCount{Query: q, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
