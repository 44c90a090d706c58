package outbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// TxWriter enqueues messages inside a caller-owned transaction so the event
// commits or rolls back together with the business mutation it describes.
type TxWriter interface {
	Enqueue(ctx context.Context, msg Message) error
}

type txWriter struct {
	tx pgx.Tx
}

// NewTxWriter binds a writer to a live transaction.
func NewTxWriter(tx pgx.Tx) TxWriter {
	return &txWriter{tx: tx}
}

func (w *txWriter) Enqueue(ctx context.Context, msg Message) error {
	if w == nil || w.tx == nil {
		return errors.New("outbox: tx writer not initialised")
	}
	if msg.Name == "" {
		return errors.New("outbox: event name required")
	}
	_, err := w.tx.Exec(ctx, `INSERT INTO outbox_messages (id, name, content, created_on)
VALUES ($1, $2, $3, $4)`, msg.ID, msg.Name, msg.Content, msg.CreatedOn)
	return err
}
