package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PostParams describes one ledger mutation applied inside a caller-owned
// transaction.
type PostParams struct {
	ProductID     int64
	LocationID    int64
	Type          MovementType
	QtyChange     int64 // signed; negative for OUT
	Status        MovementStatus
	RefMovementID int64
	TransferID    uuid.UUID
	Note          string
	ActorID       int64
}

// Entry is the committed result of a single posting.
type Entry struct {
	MovementID int64
	Slot       Slot
}

// Post locks the slot row, validates the quantity invariant at commit time
// and writes the new level plus its movement row. The movement never commits
// without the quantity change and vice versa: both ride the caller's
// transaction.
func Post(ctx context.Context, tx TxStore, p PostParams) (Entry, error) {
	if p.QtyChange == 0 {
		return Entry{}, ErrInvalidQuantity
	}
	if p.ProductID == 0 || p.LocationID == 0 {
		return Entry{}, ErrSlotNotFound
	}
	slot, err := tx.GetSlotForUpdate(ctx, p.ProductID, p.LocationID)
	if err != nil {
		return Entry{}, err
	}
	newQty := slot.QuantityOnHand + p.QtyChange
	if newQty < 0 {
		return Entry{}, ErrInsufficientStock
	}
	status := p.Status
	if status == "" {
		status = MovementPosted
	}
	qty := p.QtyChange
	if qty < 0 {
		qty = -qty
	}
	movement := Movement{
		SlotID:        slot.ID,
		ProductID:     p.ProductID,
		Type:          p.Type,
		Quantity:      qty,
		Status:        status,
		RefMovementID: p.RefMovementID,
		TransferID:    p.TransferID,
		Note:          p.Note,
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     p.ActorID,
	}
	movementID, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.UpdateSlotQuantity(ctx, slot.ID, newQty); err != nil {
		return Entry{}, err
	}
	slot.QuantityOnHand = newQty
	return Entry{MovementID: movementID, Slot: slot}, nil
}
