package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the relay-facing view of the outbox table.
type Store interface {
	ListPending(ctx context.Context, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordError(ctx context.Context, id uuid.UUID, attempt string) error
}

// PGStore persists outbox messages in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs PGStore.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ListPending returns undelivered messages in creation order.
func (s *PGStore) ListPending(ctx context.Context, limit int) ([]Message, error) {
	if s == nil {
		return nil, errors.New("outbox store not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name, content, created_on, processed_on, errors
FROM outbox_messages
WHERE processed_on IS NULL
ORDER BY created_on ASC, id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Content, &m.CreatedOn, &m.ProcessedOn, &m.Errors); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkProcessed stamps the delivery time. Payloads are never rewritten.
func (s *PGStore) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s == nil {
		return errors.New("outbox store not initialised")
	}
	tag, err := s.pool.Exec(ctx, `UPDATE outbox_messages SET processed_on=$2 WHERE id=$1 AND processed_on IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// RecordError appends a delivery failure. Rows are kept for inspection and
// picked up again on the next poll cycle.
func (s *PGStore) RecordError(ctx context.Context, id uuid.UUID, attempt string) error {
	if s == nil {
		return errors.New("outbox store not initialised")
	}
	line := time.Now().UTC().Format(time.RFC3339) + " " + attempt
	tag, err := s.pool.Exec(ctx, `UPDATE outbox_messages
SET errors = CASE WHEN errors = '' THEN $2 ELSE errors || E'\n' || $2 END
WHERE id=$1`, id, line)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Stats counts rows per delivery state.
func (s *PGStore) Stats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, errors.New("outbox store not initialised")
	}
	var st Stats
	err := s.pool.QueryRow(ctx, `SELECT
	COUNT(*) FILTER (WHERE processed_on IS NULL),
	COUNT(*) FILTER (WHERE processed_on IS NOT NULL),
	COUNT(*) FILTER (WHERE processed_on IS NULL AND errors <> '')
FROM outbox_messages`).Scan(&st.Pending, &st.Processed, &st.Failing)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}
