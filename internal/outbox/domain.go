package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is a durable event staged alongside the transaction that produced
// it. Content is fixed at creation; only delivery bookkeeping mutates later.
type Message struct {
	ID          uuid.UUID
	Name        string
	Content     []byte
	CreatedOn   time.Time
	ProcessedOn *time.Time
	Errors      string
}

// Stats summarises the outbox table for operational inspection.
type Stats struct {
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Failing   int64 `json:"failing"`
}

// ErrMessageNotFound indicates a missing outbox row.
var ErrMessageNotFound = errors.New("outbox: message not found")

// NewMessage serialises payload and wraps it as a pending message.
func NewMessage(name string, payload any) (Message, error) {
	if name == "" {
		return Message{}, errors.New("outbox: event name required")
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("outbox: marshal %s: %w", name, err)
	}
	return Message{
		ID:        uuid.New(),
		Name:      name,
		Content:   content,
		CreatedOn: time.Now().UTC(),
	}, nil
}

// Processed reports whether the message was already delivered.
func (m Message) Processed() bool {
	return m.ProcessedOn != nil
}
