package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vantage-wms/vantage/internal/jobs"
	"github.com/vantage-wms/vantage/internal/shared"
)

const (
	// TaskIdempotencySweep removes expired idempotency keys.
	TaskIdempotencySweep = "maintenance:idempotency_sweep"
)

// IdempotencySweepPayload carries the retention window in seconds.
type IdempotencySweepPayload struct {
	RetentionSeconds int64 `json:"retention_seconds"`
}

// NewIdempotencySweepTask constructs the sweep task.
func NewIdempotencySweepTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencySweepPayload{RetentionSeconds: int64(retention.Seconds())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencySweep, body, asynq.Queue(QueueDefault)), nil
}

// SweepJob prunes processed idempotency keys past their retention.
type SweepJob struct {
	store   *shared.IdempotencyStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSweepJob constructs SweepJob.
func NewSweepJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencySweep tasks.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionSeconds) * time.Second
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	tracker := j.metrics.Track("idempotency_sweep")
	err := j.store.Cleanup(ctx, retention)
	if err != nil {
		j.logger.Error("idempotency sweep", slog.Any("error", err))
	}
	return tracker.End(err)
}
