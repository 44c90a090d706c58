package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/vantage-wms/vantage/internal/outbox"
)

// Publisher hands relayed outbox messages to the task queue. It satisfies
// outbox.Publisher.
type Publisher struct {
	client *Client
}

// NewPublisher constructs Publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues one event-dispatch task per message.
func (p *Publisher) Publish(ctx context.Context, msg outbox.Message) error {
	if p == nil || p.client == nil {
		return errors.New("jobs: publisher not configured")
	}
	task, err := NewEventDispatchTask(msg)
	if err != nil {
		return err
	}
	_, err = p.client.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}
