// Package consumer indexes page-visit events read from kafka.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/kafka"
)

// Builder is satisfied by *indexer.Engine.
type Builder interface {
	BuildDocument(ctx context.Context, doc indexer.Document) error
}

// HandleMessage returns a kafka.Handler that builds each PageEvent into the
// engine. Undecodable or id-less events are skipped.
func HandleMessage(b Builder) kafka.Handler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.PageEvent](value)
		if err != nil {
			logger.Error("failed to decode page event", "key", string(key), "error", err)
			return err
		}
		if strings.TrimSpace(event.DocumentID) == "" {
			return fmt.Errorf("%w: page event without document_id", kafka.ErrSkip)
		}

		err = b.BuildDocument(ctx, indexer.Document{
			ID:        event.DocumentID,
			HeadTerms: event.HeadTerms,
			BodyTerms: event.BodyTerms,
			Source:    indexer.SourceKafka,
		})
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return fmt.Errorf("%w: %v", kafka.ErrSkip, err)
		}
		if err != nil {
			return fmt.Errorf("indexing %s: %w", event.DocumentID, err)
		}
		logger.Debug("page indexed", "doc_id", event.DocumentID, "visit_id", event.VisitID)
		return nil
	}
}
