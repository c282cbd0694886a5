package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/metrics"
)

// Sources label where a document came from.
const (
	SourceAPI     = "api"
	SourceKafka   = "kafka"
	SourceHistory = "history"
)

// Document is one visited page split into head words and body words.
type Document struct {
	ID        string   `json:"document_id"`
	HeadTerms []string `json:"head_terms"`
	BodyTerms []string `json:"body_terms"`
	Source    string   `json:"-"`
}

// ClassStats describes one index.
type ClassStats struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
}

type Stats struct {
	Head       ClassStats `json:"head"`
	Body       ClassStats `json:"body"`
	Generation int64      `json:"generation"`
}

// Engine owns the head and body indexes. Documents are only ever added.
type Engine struct {
	head       *index.InvertedIndex
	body       *index.InvertedIndex
	generation atomic.Int64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEngine builds an empty Engine. m may be nil.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{
		head:    index.NewInvertedIndex(index.WordClassHead),
		body:    index.NewInvertedIndex(index.WordClassBody),
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// BuildDocument adds doc to both indexes. Terms are lowercased and reduced
// to letters; a document with no words in a class is still counted there
// but never matches a term in it.
func (e *Engine) BuildDocument(ctx context.Context, doc Document) error {
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document_id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	head := tokenizer.Terms(doc.HeadTerms)
	body := tokenizer.Terms(doc.BodyTerms)
	e.head.Add(id, head)
	e.body.Add(id, body)
	gen := e.generation.Add(1)

	source := doc.Source
	if source == "" {
		source = SourceAPI
	}
	e.record(source)

	logger.FromContext(ctx).Debug("document indexed",
		"doc_id", id,
		"source", source,
		"head_terms", len(head),
		"body_terms", len(body),
		"generation", gen,
	)
	return nil
}

// IndexPage extracts head and body words from an HTML page and builds the
// document from them.
func (e *Engine) IndexPage(ctx context.Context, docID, page, source string) error {
	head, body, err := tokenizer.ExtractPage(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("extracting page %s: %w", docID, err)
	}
	return e.BuildDocument(ctx, Document{ID: docID, HeadTerms: head, BodyTerms: body, Source: source})
}

func (e *Engine) Head() *index.InvertedIndex { return e.head }

func (e *Engine) Body() *index.InvertedIndex { return e.body }

// Generation increases by one on every successful BuildDocument.
func (e *Engine) Generation() int64 {
	return e.generation.Load()
}

func (e *Engine) Stats() Stats {
	return Stats{
		Head:       ClassStats{Documents: e.head.DocCount(), Terms: e.head.TermCount()},
		Body:       ClassStats{Documents: e.body.DocCount(), Terms: e.body.TermCount()},
		Generation: e.Generation(),
	}
}

func (e *Engine) record(source string) {
	if e.metrics == nil {
		return
	}
	e.metrics.DocsIndexedTotal.WithLabelValues(source).Inc()
	for _, x := range []*index.InvertedIndex{e.head, e.body} {
		class := string(x.Class())
		e.metrics.IndexDocuments.WithLabelValues(class).Set(float64(x.DocCount()))
		e.metrics.IndexTerms.WithLabelValues(class).Set(float64(x.TermCount()))
	}
}
