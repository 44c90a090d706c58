package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the stock transfer lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
	StatusFailed    Status = "FAILED"
)

// transitions encodes the allowed state machine edges. FAILED is reachable
// from every non-terminal state.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled, StatusRejected, StatusFailed},
	StatusApproved:  {StatusInTransit, StatusCancelled, StatusRejected, StatusFailed},
	StatusInTransit: {StatusCompleted, StatusFailed},
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether the edge from → to is part of the workflow.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StockTransfer coordinates a debit at one location and a credit at another
// as a single business operation. Quantities move only through the ledger.
type StockTransfer struct {
	ID             uuid.UUID
	ProductID      int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int64
	Status         Status
	OutMovementID  int64
	Note           string
	CreatedAt      time.Time
	CreatedBy      int64
	UpdatedAt      time.Time
}

// ErrInvalidState occurs when an action violates the status workflow.
var ErrInvalidState = errors.New("transfer: invalid state transition")

// ErrNotFound indicates a missing transfer.
var ErrNotFound = errors.New("transfer: not found")

// ErrValidation indicates invalid input.
var ErrValidation = errors.New("transfer: invalid input")

// ErrSameLocation indicates identical source and destination.
var ErrSameLocation = errors.New("transfer: source and destination location must differ")
