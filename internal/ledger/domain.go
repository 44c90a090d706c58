package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound quantity change.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound quantity change.
	MovementOut MovementType = "OUT"
	// MovementAdjust indicates manual adjustments.
	MovementAdjust MovementType = "ADJUST"
)

// MovementStatus tags the audit row. Corrections are new compensating rows,
// never edits.
type MovementStatus string

const (
	// MovementPosted is the normal status for a committed movement.
	MovementPosted MovementStatus = "POSTED"
	// MovementReversal marks a compensating row pointing back at the
	// movement it undoes.
	MovementReversal MovementStatus = "REVERSAL"
)

// Lifecycle folds the soft-delete flags into one value per aggregate.
type Lifecycle struct {
	DeletedAt *time.Time
	DeletedBy int64
}

// Active reports whether the row is live.
func (l Lifecycle) Active() bool {
	return l.DeletedAt == nil
}

// Slot is the authoritative quantity record per product/location pair.
// The pair is unique among active rows and QuantityOnHand never goes
// observably negative.
type Slot struct {
	ID             int64
	ProductID      int64
	LocationID     int64
	QuantityOnHand int64
	ReorderLevel   int64
	MaxLevel       int64
	Lifecycle      Lifecycle
	CreatedAt      time.Time
	CreatedBy      int64
}

// LowStock is a derived predicate, never persisted.
func (s Slot) LowStock() bool {
	return s.QuantityOnHand <= s.ReorderLevel
}

// OverMax reports whether the advisory ceiling is exceeded.
func (s Slot) OverMax() bool {
	return s.MaxLevel > 0 && s.QuantityOnHand > s.MaxLevel
}

// Movement is one immutable audit row per ledger mutation.
type Movement struct {
	ID            int64
	SlotID        int64
	ProductID     int64
	Type          MovementType
	Quantity      int64
	Status        MovementStatus
	RefMovementID int64
	TransferID    uuid.UUID
	Note          string
	CreatedAt     time.Time
	CreatedBy     int64
}

// Level is the snapshot returned by ledger operations.
type Level struct {
	ProductID      int64
	LocationID     int64
	QuantityOnHand int64
	ReorderLevel   int64
	MaxLevel       int64
	LowStock       bool
}

// CreateSlotInput describes a new product/location slot.
type CreateSlotInput struct {
	ProductID    int64
	LocationID   int64
	ReorderLevel int64
	MaxLevel     int64
	ActorID      int64
}

// DebitInput decrements a slot.
type DebitInput struct {
	ProductID      int64
	LocationID     int64
	Qty            int64
	IdempotencyKey string
	Note           string
	ActorID        int64
}

// CreditInput increments a slot.
type CreditInput struct {
	ProductID      int64
	LocationID     int64
	Qty            int64
	IdempotencyKey string
	Note           string
	ActorID        int64
}

// AdjustInput applies a signed manual correction.
type AdjustInput struct {
	ProductID      int64
	LocationID     int64
	Qty            int64
	IdempotencyKey string
	Note           string
	ActorID        int64
}

// MovementFilter filters the movement history.
type MovementFilter struct {
	ProductID  int64
	LocationID int64
	TransferID uuid.UUID
	Limit      int
}

// ErrInsufficientStock triggered when a debit exceeds on-hand quantity.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// ErrInvalidQuantity indicates a non-positive or zero quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrSlotNotFound indicates a missing or deactivated slot.
var ErrSlotNotFound = errors.New("ledger: inventory slot not found")

// ErrSlotExists indicates a duplicate active product/location pair.
var ErrSlotExists = errors.New("ledger: product/location slot already exists")
