// Package analytics publishes one SearchEvent per query to kafka and folds
// the events back into in-memory usage statistics.
package analytics

import "time"

// Outcome of a query.
type Outcome string

const (
	OutcomeHit        Outcome = "hit"
	OutcomeZeroResult Outcome = "zero_result"
	OutcomeRejected   Outcome = "rejected"
)

type SearchEvent struct {
	Query     string    `json:"query"`
	Mode      string    `json:"mode"`
	Canonical string    `json:"canonical,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	HeadHits  int       `json:"head_hits"`
	BodyHits  int       `json:"body_hits"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
