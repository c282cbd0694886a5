// Package publisher tokenizes accepted pages, records them in the browsing
// history and publishes a PageEvent for the search service to index.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/history"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/metrics"
)

// Recorder is satisfied by *history.Store.
type Recorder interface {
	Record(ctx context.Context, visits ...*history.Visit) error
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, values ...any) error
}

type Publisher struct {
	recorder Recorder
	events   EventPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds a Publisher. recorder and m may be nil; without a recorder a
// failed publish loses the visit and is reported to the caller.
func New(recorder Recorder, events EventPublisher, m *metrics.Metrics) *Publisher {
	return &Publisher{
		recorder: recorder,
		events:   events,
		metrics:  m,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest tokenizes req, records the visit and publishes it. History is
// written first so a page whose event is lost is still indexed by the next
// replay.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.PageRequest) (*ingestion.PageResponse, error) {
	id := strings.TrimSpace(req.DocumentID)
	head, body, err := terms(req)
	if err != nil {
		p.count("invalid")
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unreadable html: %v", err)
	}

	visit := &history.Visit{DocumentID: id, HeadTerms: head, BodyTerms: body, VisitedAt: time.Now().UTC()}
	if p.recorder != nil {
		if err := p.recorder.Record(ctx, visit); err != nil {
			p.count("failed")
			return nil, fmt.Errorf("recording visit: %w", err)
		}
	}

	resp := &ingestion.PageResponse{
		DocumentID: id,
		VisitID:    visit.ID,
		Status:     ingestion.StatusPublished,
		HeadTerms:  len(head),
		BodyTerms:  len(body),
	}

	event := ingestion.PageEvent{
		DocumentID: id,
		HeadTerms:  head,
		BodyTerms:  body,
		VisitID:    visit.ID,
		VisitedAt:  visit.VisitedAt,
	}
	if err := p.events.Publish(ctx, id, event); err != nil {
		if p.recorder == nil {
			p.count("failed")
			return nil, apperrors.Newf(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "publishing page event: %v", err)
		}
		p.logger.Error("page recorded but not published, it will be indexed on replay",
			"doc_id", id,
			"visit_id", visit.ID,
			"error", err,
		)
		resp.Status = ingestion.StatusRecorded
	}
	p.count(strings.ToLower(resp.Status))
	return resp, nil
}

func terms(req *ingestion.PageRequest) (head, body []string, err error) {
	if req.HTML != "" {
		return tokenizer.ExtractPage(strings.NewReader(req.HTML))
	}
	return tokenizer.Terms(req.HeadTerms), tokenizer.Terms(req.BodyTerms), nil
}

func (p *Publisher) count(status string) {
	if p.metrics != nil {
		p.metrics.PagesIngestedTotal.WithLabelValues(status).Inc()
	}
}
