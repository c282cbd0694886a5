// Package history persists visited pages in postgres so the in-memory
// indexes can be rebuilt when the search service restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS page_visits (
	id          BIGSERIAL PRIMARY KEY,
	document_id TEXT        NOT NULL,
	head_terms  TEXT[]      NOT NULL DEFAULT '{}',
	body_terms  TEXT[]      NOT NULL DEFAULT '{}',
	visited_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS page_visits_document_id_idx ON page_visits (document_id);
`

// Visit is one recorded page view. Terms are already normalised.
type Visit struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document_id"`
	HeadTerms  []string  `json:"head_terms"`
	BodyTerms  []string  `json:"body_terms"`
	VisitedAt  time.Time `json:"visited_at"`
}

type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

func NewStore(client *postgres.Client) *Store {
	return &Store{
		client: client,
		logger: slog.Default().With("component", "history-store"),
	}
}

// Migrate creates the page_visits table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating page_visits: %w", err)
	}
	return nil
}

// Record inserts visits in one transaction and fills in their ids and
// timestamps.
func (s *Store) Record(ctx context.Context, visits ...*Visit) error {
	if len(visits) == 0 {
		return nil
	}
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO page_visits (document_id, head_terms, body_terms)
			VALUES ($1, $2, $3)
			RETURNING id, visited_at`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, v := range visits {
			err := stmt.QueryRowContext(ctx,
				v.DocumentID,
				pq.Array(nonNil(v.HeadTerms)),
				pq.Array(nonNil(v.BodyTerms)),
			).Scan(&v.ID, &v.VisitedAt)
			if err != nil {
				return fmt.Errorf("inserting visit %s: %w", v.DocumentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("visits recorded", "count", len(visits))
	return nil
}

// Replay streams every visit in insertion order, batchSize rows per query.
// It stops at the first error returned by fn.
func (s *Store) Replay(ctx context.Context, batchSize int, fn func(Visit) error) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var (
		after int64
		total int
	)
	for {
		batch, err := s.page(ctx, after, batchSize)
		if err != nil {
			return total, err
		}
		for _, v := range batch {
			if err := fn(v); err != nil {
				return total, fmt.Errorf("replaying visit %d: %w", v.ID, err)
			}
			total++
			after = v.ID
		}
		if len(batch) < batchSize {
			s.logger.Info("history replayed", "visits", total)
			return total, nil
		}
	}
}

func (s *Store) page(ctx context.Context, after int64, limit int) ([]Visit, error) {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT id, document_id, head_terms, body_terms, visited_at
		FROM page_visits
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("querying page_visits: %w", err)
	}
	defer rows.Close()

	visits := make([]Visit, 0, limit)
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.DocumentID, pq.Array(&v.HeadTerms), pq.Array(&v.BodyTerms), &v.VisitedAt); err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating page_visits: %w", err)
	}
	return visits, nil
}

// Count returns the number of recorded visits.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM page_visits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting page_visits: %w", err)
	}
	return n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
