package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Outbox event names emitted by the ledger.
const (
	EventSlotCreated     = "ledger.slot_created"
	EventSlotDeactivated = "ledger.slot_deactivated"
	EventDebited         = "ledger.debited"
	EventCredited        = "ledger.credited"
	EventAdjusted        = "ledger.adjusted"
)

// LevelChangedEvent describes a committed quantity mutation.
type LevelChangedEvent struct {
	MovementID     int64        `json:"movement_id"`
	MovementType   MovementType `json:"movement_type"`
	ProductID      int64        `json:"product_id"`
	LocationID     int64        `json:"location_id"`
	Quantity       int64        `json:"quantity"`
	QuantityOnHand int64        `json:"quantity_on_hand"`
	LowStock       bool         `json:"low_stock"`
	TransferID     uuid.UUID    `json:"transfer_id,omitzero"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// SlotEvent describes slot lifecycle changes.
type SlotEvent struct {
	SlotID     int64     `json:"slot_id"`
	ProductID  int64     `json:"product_id"`
	LocationID int64     `json:"location_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
