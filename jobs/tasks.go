package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vantage-wms/vantage/internal/outbox"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEventDispatch is the task type carrying relayed outbox events.
	TaskEventDispatch = "outbox:event"
)

// EventDispatchPayload is the wire form of a relayed outbox message.
type EventDispatchPayload struct {
	MessageID uuid.UUID       `json:"message_id"`
	Name      string          `json:"name"`
	Content   json.RawMessage `json:"content"`
	CreatedOn time.Time       `json:"created_on"`
}

// NewEventDispatchTask constructs an Asynq task from an outbox message.
func NewEventDispatchTask(msg outbox.Message) (*asynq.Task, error) {
	data, err := json.Marshal(EventDispatchPayload{
		MessageID: msg.ID,
		Name:      msg.Name,
		Content:   msg.Content,
		CreatedOn: msg.CreatedOn,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventDispatch, data), nil
}

// HandleEventDispatchTask processes relayed events. The relay delivers
// at-least-once, so handlers key off MessageID to stay idempotent.
func HandleEventDispatchTask(ctx context.Context, t *asynq.Task) error {
	var payload EventDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder consumer: downstream integrations subscribe here.
	slog.Default().Info("event dispatched",
		slog.String("event", payload.Name),
		slog.String("message_id", payload.MessageID.String()))
	return nil
}
