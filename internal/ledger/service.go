package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantage-wms/vantage/internal/outbox"
	"github.com/vantage-wms/vantage/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSlot(ctx context.Context, productID, locationID int64) (Slot, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations. Each mutation, its movement row and
// its outbox message commit in one unit of work.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, logger: logger}
}

// CreateSlot registers a new product/location slot with zero quantity.
func (s *Service) CreateSlot(ctx context.Context, input CreateSlotInput) (Slot, error) {
	if input.ProductID == 0 || input.LocationID == 0 {
		return Slot{}, ErrSlotNotFound
	}
	if input.ReorderLevel < 0 || input.MaxLevel < 0 {
		return Slot{}, ErrInvalidQuantity
	}
	actor := actorID(ctx, input.ActorID)
	slot := Slot{
		ProductID:    input.ProductID,
		LocationID:   input.LocationID,
		ReorderLevel: input.ReorderLevel,
		MaxLevel:     input.MaxLevel,
		CreatedBy:    actor,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSlot(ctx, slot)
		if err != nil {
			return err
		}
		slot.ID = id
		msg, err := outbox.NewMessage(EventSlotCreated, SlotEvent{
			SlotID:     id,
			ProductID:  slot.ProductID,
			LocationID: slot.LocationID,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.Outbox().Enqueue(ctx, msg)
	})
	if err != nil {
		return Slot{}, err
	}
	s.recordAudit(ctx, actor, "ledger:slot_create", slot.ID, map[string]any{
		"product_id":  slot.ProductID,
		"location_id": slot.LocationID,
	})
	return slot, nil
}

// Debit decrements on-hand quantity. Fails with ErrInsufficientStock when the
// slot holds less than qty, validated after the row lock is taken.
func (s *Service) Debit(ctx context.Context, input DebitInput) (Level, error) {
	if input.Qty <= 0 {
		return Level{}, ErrInvalidQuantity
	}
	return s.post(ctx, postRequest{
		productID:      input.ProductID,
		locationID:     input.LocationID,
		movementType:   MovementOut,
		qtyChange:      -input.Qty,
		idempotencyKey: input.IdempotencyKey,
		note:           input.Note,
		actorID:        actorID(ctx, input.ActorID),
		event:          EventDebited,
	})
}

// Credit increments on-hand quantity. Exceeding MaxLevel is advisory only and
// logged, never rejected.
func (s *Service) Credit(ctx context.Context, input CreditInput) (Level, error) {
	if input.Qty <= 0 {
		return Level{}, ErrInvalidQuantity
	}
	return s.post(ctx, postRequest{
		productID:      input.ProductID,
		locationID:     input.LocationID,
		movementType:   MovementIn,
		qtyChange:      input.Qty,
		idempotencyKey: input.IdempotencyKey,
		note:           input.Note,
		actorID:        actorID(ctx, input.ActorID),
		event:          EventCredited,
	})
}

// Adjust applies a signed manual correction as an ADJUST movement.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Level, error) {
	if input.Qty == 0 {
		return Level{}, ErrInvalidQuantity
	}
	return s.post(ctx, postRequest{
		productID:      input.ProductID,
		locationID:     input.LocationID,
		movementType:   MovementAdjust,
		qtyChange:      input.Qty,
		idempotencyKey: input.IdempotencyKey,
		note:           input.Note,
		actorID:        actorID(ctx, input.ActorID),
		event:          EventAdjusted,
	})
}

// GetLevel returns the current snapshot for a slot.
func (s *Service) GetLevel(ctx context.Context, productID, locationID int64) (Level, error) {
	slot, err := s.repo.GetSlot(ctx, productID, locationID)
	if err != nil {
		return Level{}, err
	}
	return levelFromSlot(slot), nil
}

// ListMovements lists audit rows.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// Deactivate soft-deletes a slot, freeing its product/location pair.
func (s *Service) Deactivate(ctx context.Context, productID, locationID, requestedBy int64) error {
	actor := actorID(ctx, requestedBy)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		slot, err := tx.GetSlotForUpdate(ctx, productID, locationID)
		if err != nil {
			return err
		}
		if err := tx.SoftDeleteSlot(ctx, slot.ID, actor, time.Now().UTC()); err != nil {
			return err
		}
		msg, err := outbox.NewMessage(EventSlotDeactivated, SlotEvent{
			SlotID:     slot.ID,
			ProductID:  slot.ProductID,
			LocationID: slot.LocationID,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.Outbox().Enqueue(ctx, msg)
	})
}

type postRequest struct {
	productID      int64
	locationID     int64
	movementType   MovementType
	qtyChange      int64
	idempotencyKey string
	note           string
	actorID        int64
	event          string
}

func (s *Service) post(ctx context.Context, req postRequest) (Level, error) {
	insertedKey := false
	if req.idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.idempotencyKey, "ledger"); err != nil {
			return Level{}, err
		}
		insertedKey = true
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := Post(ctx, tx, PostParams{
			ProductID:  req.productID,
			LocationID: req.locationID,
			Type:       req.movementType,
			QtyChange:  req.qtyChange,
			Note:       req.note,
			ActorID:    req.actorID,
		})
		if err != nil {
			return err
		}
		entry = e
		msg, err := outbox.NewMessage(req.event, LevelChangedEvent{
			MovementID:     e.MovementID,
			MovementType:   req.movementType,
			ProductID:      req.productID,
			LocationID:     req.locationID,
			Quantity:       abs(req.qtyChange),
			QuantityOnHand: e.Slot.QuantityOnHand,
			LowStock:       e.Slot.LowStock(),
			OccurredAt:     time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.Outbox().Enqueue(ctx, msg)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, req.idempotencyKey)
		}
		return Level{}, err
	}
	if entry.Slot.OverMax() {
		s.logger.Warn("quantity exceeds max level",
			slog.Int64("product_id", req.productID),
			slog.Int64("location_id", req.locationID),
			slog.Int64("quantity_on_hand", entry.Slot.QuantityOnHand),
			slog.Int64("max_level", entry.Slot.MaxLevel))
	}
	s.recordAudit(ctx, req.actorID, fmt.Sprintf("ledger:%s", req.movementType), entry.Slot.ID, map[string]any{
		"product_id":  req.productID,
		"location_id": req.locationID,
		"qty_change":  req.qtyChange,
		"movement_id": entry.MovementID,
	})
	return levelFromSlot(entry.Slot), nil
}

func (s *Service) recordAudit(ctx context.Context, actor int64, action string, slotID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "inventory_slot",
		EntityID: fmt.Sprintf("%d", slotID),
		Meta:     meta,
	})
}

func levelFromSlot(slot Slot) Level {
	return Level{
		ProductID:      slot.ProductID,
		LocationID:     slot.LocationID,
		QuantityOnHand: slot.QuantityOnHand,
		ReorderLevel:   slot.ReorderLevel,
		MaxLevel:       slot.MaxLevel,
		LowStock:       slot.LowStock(),
	}
}

func actorID(ctx context.Context, explicit int64) int64 {
	if explicit != 0 {
		return explicit
	}
	return shared.ActorFromContext(ctx).UserID
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
