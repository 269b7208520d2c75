package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/jobs"
	"github.com/Proton-105/savos-bot/pkg/metrics"
)

// AsynqOutbox persists changes as asynq tasks in Redis; retries are left to asynq.
type AsynqOutbox struct {
	manager     jobs.Manager
	maxAttempts int
	log         *slog.Logger
}

var _ Outbox = (*AsynqOutbox)(nil)

// NewAsynqOutbox enqueues through manager. maxAttempts counts the first delivery.
func NewAsynqOutbox(manager jobs.Manager, maxAttempts int, log *slog.Logger) *AsynqOutbox {
	if log == nil {
		log = slog.Default()
	}

	return &AsynqOutbox{
		manager:     manager,
		maxAttempts: maxAttempts,
		log:         log.With(slog.String("component", "outbox")),
	}
}

func (o *AsynqOutbox) Enqueue(ctx context.Context, change Change) error {
	if err := change.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	_, err = o.manager.Enqueue(ctx, jobs.NewDeliverTask(change.ID, payload, o.maxAttempts))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		o.log.DebugContext(ctx, "change already queued", slog.String("change_id", change.ID))
		return nil
	}
	if err != nil {
		metrics.RecordOutboxDropped(string(change.Kind))
		return fmt.Errorf("enqueue change %s: %w", change.ID, err)
	}

	metrics.RecordOutboxEnqueued(string(change.Kind))
	return nil
}

func (o *AsynqOutbox) Close(context.Context) error {
	return o.manager.Close()
}

// DecodeChange restores a change from a task payload.
func DecodeChange(payload []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(payload, &change); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if err := change.Validate(); err != nil {
		return Change{}, err
	}
	return change, nil
}
