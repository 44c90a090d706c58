package outbox

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	jobmetrics "github.com/vantage-wms/vantage/internal/jobs"
)

// Publisher forwards a staged message to its downstream consumer.
// Delivery is at-least-once; consumers must tolerate duplicates.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// LeasePort gates a drain pass to a single relay instance.
type LeasePort interface {
	Acquire(ctx context.Context) (bool, error)
}

// RelayConfig groups polling knobs.
type RelayConfig struct {
	Interval time.Duration
	Jitter   time.Duration
	Batch    int
}

// Relay periodically drains unprocessed outbox rows, independent of the
// request path that produced them.
type Relay struct {
	store     Store
	publisher Publisher
	lease     LeasePort
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
	cfg       RelayConfig
}

// NewRelay constructs Relay. Lease and metrics are optional.
func NewRelay(store Store, publisher Publisher, lease LeasePort, logger *slog.Logger, metrics *jobmetrics.Metrics, cfg RelayConfig) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{store: store, publisher: publisher, lease: lease, logger: logger, metrics: metrics, cfg: cfg}
}

// Run polls until context cancellation.
func (r *Relay) Run(ctx context.Context) error {
	if r == nil || r.store == nil || r.publisher == nil {
		return errors.New("outbox: relay not configured")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.nextWait()):
		}
		delivered, err := r.DrainOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			r.logger.Error("outbox drain", slog.Any("error", err))
			continue
		}
		if delivered > 0 {
			r.logger.Info("outbox drained", slog.Int("delivered", delivered))
		}
	}
}

// DrainOnce attempts a single drain pass and reports delivered count.
// A pass skipped because another instance holds the lease returns (0, nil).
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	tracker := r.metrics.Track("outbox_drain")
	delivered, err := r.drain(ctx)
	_ = tracker.End(err)
	r.metrics.AddDelivered(delivered)
	return delivered, err
}

func (r *Relay) drain(ctx context.Context) (int, error) {
	if r.lease != nil {
		held, err := r.lease.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		if !held {
			return 0, nil
		}
	}
	msgs, err := r.store.ListPending(ctx, r.cfg.Batch)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.logger.Warn("outbox publish",
				slog.String("event", msg.Name),
				slog.String("message_id", msg.ID.String()),
				slog.Any("error", err))
			if recErr := r.store.RecordError(ctx, msg.ID, err.Error()); recErr != nil {
				return delivered, recErr
			}
			continue
		}
		if err := r.store.MarkProcessed(ctx, msg.ID, time.Now().UTC()); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

func (r *Relay) nextWait() time.Duration {
	wait := r.cfg.Interval
	if r.cfg.Jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(r.cfg.Jitter)))
	}
	return wait
}
