package transfer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-wms/vantage/internal/ledger"
	"github.com/vantage-wms/vantage/internal/outbox"
	"github.com/vantage-wms/vantage/internal/platform/db"
)

// Repository persists stock transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository groups everything one workflow step may touch inside a single
// transaction: the transfer row, the ledger and the outbox.
type TxRepository interface {
	GetTransferForUpdate(ctx context.Context, id uuid.UUID) (StockTransfer, error)
	InsertTransfer(ctx context.Context, t StockTransfer) error
	UpdateTransferStatus(ctx context.Context, id uuid.UUID, status Status, outMovementID int64) error
	Ledger() ledger.TxStore
	Outbox() outbox.TxWriter
}

type txRepository struct {
	tx     pgx.Tx
	ledger ledger.TxStore
	outbox outbox.TxWriter
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("transfer repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		wrapper := &txRepository{tx: tx, ledger: ledger.NewTxStore(tx), outbox: outbox.NewTxWriter(tx)}
		return fn(ctx, wrapper)
	})
}

// GetTransfer returns a transfer by id.
func (r *Repository) GetTransfer(ctx context.Context, id uuid.UUID) (StockTransfer, error) {
	if r == nil {
		return StockTransfer{}, errors.New("transfer repository not initialised")
	}
	return scanTransfer(r.pool.QueryRow(ctx, selectTransfer+` WHERE id=$1`, id))
}

// ListByStatus returns transfers in a given state, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status Status, limit int) ([]StockTransfer, error) {
	if r == nil {
		return nil, errors.New("transfer repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, selectTransfer+` WHERE status=$1 ORDER BY created_at ASC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var transfers []StockTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

const selectTransfer = `SELECT id, product_id, from_location_id, to_location_id, quantity, status, out_movement_id, note, created_at, created_by, updated_at
FROM stock_transfers`

func (r *txRepository) GetTransferForUpdate(ctx context.Context, id uuid.UUID) (StockTransfer, error) {
	return scanTransfer(r.tx.QueryRow(ctx, selectTransfer+` WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) InsertTransfer(ctx context.Context, t StockTransfer) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_transfers (id, product_id, from_location_id, to_location_id, quantity, status, note, created_at, created_by, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),$8,NOW())`,
		t.ID, t.ProductID, t.FromLocationID, t.ToLocationID, t.Quantity, string(t.Status), t.Note, t.CreatedBy)
	return err
}

func (r *txRepository) UpdateTransferStatus(ctx context.Context, id uuid.UUID, status Status, outMovementID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_transfers SET status=$2, out_movement_id=$3, updated_at=NOW() WHERE id=$1`,
		id, string(status), nullInt(outMovementID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) Ledger() ledger.TxStore {
	return r.ledger
}

func (r *txRepository) Outbox() outbox.TxWriter {
	return r.outbox
}

func scanTransfer(row pgx.Row) (StockTransfer, error) {
	var t StockTransfer
	var status string
	var outMovementID *int64
	err := row.Scan(&t.ID, &t.ProductID, &t.FromLocationID, &t.ToLocationID, &t.Quantity, &status, &outMovementID,
		&t.Note, &t.CreatedAt, &t.CreatedBy, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockTransfer{}, ErrNotFound
		}
		return StockTransfer{}, err
	}
	t.Status = Status(status)
	if outMovementID != nil {
		t.OutMovementID = *outMovementID
	}
	return t, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
