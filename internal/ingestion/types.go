// Package ingestion defines the page-visit request accepted from the browser
// and the event published to the indexers.
package ingestion

import "time"

// PageRequest is the body of POST /api/v1/pages. Either HTML or the two term
// lists may be supplied, not both.
type PageRequest struct {
	DocumentID string   `json:"document_id"`
	HTML       string   `json:"html,omitempty"`
	HeadTerms  []string `json:"head_terms,omitempty"`
	BodyTerms  []string `json:"body_terms,omitempty"`
}

// Statuses reported back to the caller.
const (
	StatusPublished = "PUBLISHED"
	// StatusRecorded means the visit is in history but the event could not
	// be published; it is indexed on the next history replay.
	StatusRecorded = "RECORDED"
)

type PageResponse struct {
	DocumentID string `json:"document_id"`
	VisitID    int64  `json:"visit_id,omitempty"`
	Status     string `json:"status"`
	HeadTerms  int    `json:"head_terms"`
	BodyTerms  int    `json:"body_terms"`
}

// PageEvent is the page-visits message payload. Terms are normalised.
type PageEvent struct {
	DocumentID string    `json:"document_id"`
	HeadTerms  []string  `json:"head_terms"`
	BodyTerms  []string  `json:"body_terms"`
	VisitID    int64     `json:"visit_id,omitempty"`
	VisitedAt  time.Time `json:"visited_at"`
}
