package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vantage-wms/vantage/internal/ledger"
	"github.com/vantage-wms/vantage/internal/outbox"
	"github.com/vantage-wms/vantage/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransfer(ctx context.Context, id uuid.UUID) (StockTransfer, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]StockTransfer, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the transfer state machine. Every transition is one
// transaction carrying its ledger effect, movement row and outbox message.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the transfer service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers a transfer in PENDING. Stock sufficiency is deliberately
// not checked here; each ledger-affecting step validates at commit time.
func (s *Service) Create(ctx context.Context, input CreateInput) (StockTransfer, error) {
	if err := validateCreate(input); err != nil {
		return StockTransfer{}, err
	}
	actor := actorID(ctx, input.ActorID)
	t := StockTransfer{
		ID:             uuid.New(),
		ProductID:      input.ProductID,
		FromLocationID: input.FromLocationID,
		ToLocationID:   input.ToLocationID,
		Quantity:       input.Quantity,
		Status:         StatusPending,
		Note:           input.Note,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      actor,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertTransfer(ctx, t); err != nil {
			return err
		}
		return emit(ctx, tx, t, StatusPending, "")
	})
	if err != nil {
		return StockTransfer{}, err
	}
	s.recordAudit(ctx, actor, "transfer:create", t.ID, map[string]any{
		"product_id": t.ProductID,
		"from":       t.FromLocationID,
		"to":         t.ToLocationID,
		"quantity":   t.Quantity,
	})
	return t, nil
}

// Approve moves PENDING to APPROVED. Status only, no ledger effect.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, requestedBy int64) error {
	return s.statusOnly(ctx, id, StatusApproved, requestedBy)
}

// Cancel aborts a transfer before any debit has occurred.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, requestedBy int64) error {
	return s.statusOnly(ctx, id, StatusCancelled, requestedBy)
}

// Reject declines a transfer before any debit has occurred.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, requestedBy int64) error {
	return s.statusOnly(ctx, id, StatusRejected, requestedBy)
}

// BeginTransit debits the source slot and posts the OUT movement in a single
// transaction. On insufficient stock the transfer is marked FAILED in a
// follow-up transaction; the debit itself never partially persists.
func (s *Service) BeginTransit(ctx context.Context, id uuid.UUID, requestedBy int64) error {
	actor := actorID(ctx, requestedBy)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusApproved {
			return ErrInvalidState
		}
		entry, err := ledger.Post(ctx, tx.Ledger(), ledger.PostParams{
			ProductID:  t.ProductID,
			LocationID: t.FromLocationID,
			Type:       ledger.MovementOut,
			QtyChange:  -t.Quantity,
			TransferID: t.ID,
			Note:       "transfer dispatch",
			ActorID:    actor,
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateTransferStatus(ctx, id, StatusInTransit, entry.MovementID); err != nil {
			return err
		}
		return emit(ctx, tx, t, StatusInTransit, "")
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientStock) {
			if failErr := s.markFailed(ctx, id, "insufficient stock at source location"); failErr != nil {
				s.logger.Error("mark transfer failed",
					slog.String("transfer_id", id.String()),
					slog.Any("error", failErr))
			}
		}
		return err
	}
	s.recordAudit(ctx, actor, "transfer:begin_transit", id, nil)
	return nil
}

// Complete credits the destination slot and finishes the workflow. When the
// crediting transaction fails after the debit already committed, the source
// slot is re-credited with a reversal movement and the transfer is marked
// FAILED; only compensation failure is left to manual intervention.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, requestedBy int64) error {
	actor := actorID(ctx, requestedBy)
	var credited ledger.Slot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusInTransit {
			return ErrInvalidState
		}
		entry, err := ledger.Post(ctx, tx.Ledger(), ledger.PostParams{
			ProductID:  t.ProductID,
			LocationID: t.ToLocationID,
			Type:       ledger.MovementIn,
			QtyChange:  t.Quantity,
			TransferID: t.ID,
			Note:       "transfer receipt",
			ActorID:    actor,
		})
		if err != nil {
			return err
		}
		credited = entry.Slot
		if err := tx.UpdateTransferStatus(ctx, id, StatusCompleted, t.OutMovementID); err != nil {
			return err
		}
		return emit(ctx, tx, t, StatusCompleted, "")
	})
	if err != nil {
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
			return err
		}
		return s.failWithCompensation(ctx, id, actor, err)
	}
	if credited.OverMax() {
		s.logger.Warn("transfer credit exceeds max level",
			slog.String("transfer_id", id.String()),
			slog.Int64("quantity_on_hand", credited.QuantityOnHand),
			slog.Int64("max_level", credited.MaxLevel))
	}
	s.recordAudit(ctx, actor, "transfer:complete", id, nil)
	return nil
}

// Get returns a transfer by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (StockTransfer, error) {
	return s.repo.GetTransfer(ctx, id)
}

// ListByStatus lists transfers in a given state.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]StockTransfer, error) {
	return s.repo.ListByStatus(ctx, status, limit)
}

func (s *Service) statusOnly(ctx context.Context, id uuid.UUID, to Status, requestedBy int64) error {
	actor := actorID(ctx, requestedBy)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(t.Status, to) {
			return ErrInvalidState
		}
		if err := tx.UpdateTransferStatus(ctx, id, to, t.OutMovementID); err != nil {
			return err
		}
		return emit(ctx, tx, t, to, "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, fmt.Sprintf("transfer:%s", to), id, nil)
	return nil
}

// markFailed records FAILED without any ledger effect. Used when the failing
// step left nothing behind to unwind.
func (s *Service) markFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(t.Status, StatusFailed) {
			return ErrInvalidState
		}
		if err := tx.UpdateTransferStatus(ctx, id, StatusFailed, t.OutMovementID); err != nil {
			return err
		}
		return emit(ctx, tx, t, StatusFailed, reason)
	})
}

// failWithCompensation re-credits the source slot with a reversal movement
// back-referencing the original OUT movement, then marks the transfer FAILED.
func (s *Service) failWithCompensation(ctx context.Context, id uuid.UUID, actor int64, cause error) error {
	compErr := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusInTransit {
			return ErrInvalidState
		}
		_, err = ledger.Post(ctx, tx.Ledger(), ledger.PostParams{
			ProductID:     t.ProductID,
			LocationID:    t.FromLocationID,
			Type:          ledger.MovementIn,
			QtyChange:     t.Quantity,
			Status:        ledger.MovementReversal,
			RefMovementID: t.OutMovementID,
			TransferID:    t.ID,
			Note:          "compensation: completion failed",
			ActorID:       actor,
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateTransferStatus(ctx, id, StatusFailed, t.OutMovementID); err != nil {
			return err
		}
		return emit(ctx, tx, t, StatusFailed, cause.Error())
	})
	if compErr != nil {
		s.logger.Error("transfer compensation failed, manual intervention required",
			slog.String("transfer_id", id.String()),
			slog.Any("cause", cause),
			slog.Any("error", compErr))
		return fmt.Errorf("transfer: completion failed (%v), compensation failed: %w", cause, compErr)
	}
	return fmt.Errorf("transfer: completion failed, source re-credited: %w", cause)
}

func emit(ctx context.Context, tx TxRepository, t StockTransfer, to Status, reason string) error {
	msg, err := outbox.NewMessage(eventName(to), StatusChangedEvent{
		TransferID:     t.ID,
		ProductID:      t.ProductID,
		FromLocationID: t.FromLocationID,
		ToLocationID:   t.ToLocationID,
		Quantity:       t.Quantity,
		Status:         to,
		Reason:         reason,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, msg)
}

func (s *Service) recordAudit(ctx context.Context, actor int64, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "stock_transfer",
		EntityID: id.String(),
		Meta:     meta,
	})
}

func actorID(ctx context.Context, explicit int64) int64 {
	if explicit != 0 {
		return explicit
	}
	return shared.ActorFromContext(ctx).UserID
}
