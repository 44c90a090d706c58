package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-wms/vantage/internal/outbox"
	"github.com/vantage-wms/vantage/internal/platform/db"
)

const pgUniqueViolation = "23505"

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore exposes the transactional ledger operations. The transfer workflow
// composes these inside its own transactions.
type TxStore interface {
	GetSlotForUpdate(ctx context.Context, productID, locationID int64) (Slot, error)
	InsertSlot(ctx context.Context, slot Slot) (int64, error)
	UpdateSlotQuantity(ctx context.Context, slotID, quantity int64) error
	SoftDeleteSlot(ctx context.Context, slotID, actorID int64, at time.Time) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// TxRepository couples the ledger store with an outbox writer bound to the
// same transaction, so a mutation and its event commit together.
type TxRepository interface {
	TxStore
	Outbox() outbox.TxWriter
}

type txStore struct {
	tx pgx.Tx
}

type txRepository struct {
	txStore
	outbox outbox.TxWriter
}

func (r *txRepository) Outbox() outbox.TxWriter {
	return r.outbox
}

// NewTxStore binds ledger operations to a caller-owned transaction.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		wrapper := &txRepository{txStore: txStore{tx: tx}, outbox: outbox.NewTxWriter(tx)}
		return fn(ctx, wrapper)
	})
}

// GetSlot returns the active slot for a product/location pair.
func (r *Repository) GetSlot(ctx context.Context, productID, locationID int64) (Slot, error) {
	if r == nil {
		return Slot{}, errors.New("ledger repository not initialised")
	}
	return scanSlot(r.pool.QueryRow(ctx, `SELECT id, product_id, location_id, quantity_on_hand, reorder_level, max_level, deleted_at, deleted_by, created_at, created_by
FROM inventory_slots
WHERE product_id=$1 AND location_id=$2 AND deleted_at IS NULL`, productID, locationID))
}

// ListMovements returns audit rows, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, slot_id, product_id, movement_type, quantity, status, ref_movement_id, transfer_id, note, created_at, created_by
FROM stock_movements
WHERE ($1 = 0 OR product_id = $1)
  AND ($2 = 0 OR slot_id IN (SELECT id FROM inventory_slots WHERE location_id = $2))
  AND ($3::uuid IS NULL OR transfer_id = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`, filter.ProductID, filter.LocationID, nullUUID(filter.TransferID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		var refID *int64
		var transferID *uuid.UUID
		if err := rows.Scan(&m.ID, &m.SlotID, &m.ProductID, &m.Type, &m.Quantity, &m.Status, &refID, &transferID, &m.Note, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, err
		}
		if refID != nil {
			m.RefMovementID = *refID
		}
		if transferID != nil {
			m.TransferID = *transferID
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *txStore) GetSlotForUpdate(ctx context.Context, productID, locationID int64) (Slot, error) {
	return scanSlot(s.tx.QueryRow(ctx, `SELECT id, product_id, location_id, quantity_on_hand, reorder_level, max_level, deleted_at, deleted_by, created_at, created_by
FROM inventory_slots
WHERE product_id=$1 AND location_id=$2 AND deleted_at IS NULL
FOR UPDATE`, productID, locationID))
}

func (s *txStore) InsertSlot(ctx context.Context, slot Slot) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_slots (product_id, location_id, quantity_on_hand, reorder_level, max_level, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,NOW(),$6) RETURNING id`,
		slot.ProductID, slot.LocationID, slot.QuantityOnHand, slot.ReorderLevel, slot.MaxLevel, slot.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, ErrSlotExists
		}
		return 0, err
	}
	return id, nil
}

func (s *txStore) UpdateSlotQuantity(ctx context.Context, slotID, quantity int64) error {
	tag, err := s.tx.Exec(ctx, `UPDATE inventory_slots SET quantity_on_hand=$2 WHERE id=$1 AND deleted_at IS NULL`, slotID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (s *txStore) SoftDeleteSlot(ctx context.Context, slotID, actorID int64, at time.Time) error {
	tag, err := s.tx.Exec(ctx, `UPDATE inventory_slots SET deleted_at=$2, deleted_by=$3 WHERE id=$1 AND deleted_at IS NULL`, slotID, at, nullInt(actorID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_movements (slot_id, product_id, movement_type, quantity, status, ref_movement_id, transfer_id, note, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),$9) RETURNING id`,
		m.SlotID, m.ProductID, string(m.Type), m.Quantity, string(m.Status), nullInt(m.RefMovementID), nullUUID(m.TransferID), m.Note, m.CreatedBy).Scan(&id)
	return id, err
}

func scanSlot(row pgx.Row) (Slot, error) {
	var slot Slot
	var deletedBy *int64
	err := row.Scan(&slot.ID, &slot.ProductID, &slot.LocationID, &slot.QuantityOnHand, &slot.ReorderLevel, &slot.MaxLevel,
		&slot.Lifecycle.DeletedAt, &deletedBy, &slot.CreatedAt, &slot.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slot{}, ErrSlotNotFound
		}
		return Slot{}, err
	}
	if deletedBy != nil {
		slot.Lifecycle.DeletedBy = *deletedBy
	}
	return slot, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullUUID(value uuid.UUID) any {
	if value == uuid.Nil {
		return nil
	}
	return value
}
