package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Outbox event names, one per workflow transition.
const (
	EventCreated   = "transfer.created"
	EventApproved  = "transfer.approved"
	EventInTransit = "transfer.in_transit"
	EventCompleted = "transfer.completed"
	EventCancelled = "transfer.cancelled"
	EventRejected  = "transfer.rejected"
	EventFailed    = "transfer.failed"
)

// StatusChangedEvent describes the new state after a transition commits.
type StatusChangedEvent struct {
	TransferID     uuid.UUID `json:"transfer_id"`
	ProductID      int64     `json:"product_id"`
	FromLocationID int64     `json:"from_location_id"`
	ToLocationID   int64     `json:"to_location_id"`
	Quantity       int64     `json:"quantity"`
	Status         Status    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func eventName(to Status) string {
	switch to {
	case StatusPending:
		return EventCreated
	case StatusApproved:
		return EventApproved
	case StatusInTransit:
		return EventInTransit
	case StatusCompleted:
		return EventCompleted
	case StatusCancelled:
		return EventCancelled
	case StatusRejected:
		return EventRejected
	default:
		return EventFailed
	}
}
