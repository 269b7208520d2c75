package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/outbox"
	"github.com/Proton-105/savos-bot/pkg/metrics"
)

// DeliverHandler processes outbox:deliver tasks.
type DeliverHandler struct {
	deliverer outbox.Deliverer
	log       *slog.Logger
}

func NewDeliverHandler(deliverer outbox.Deliverer, log *slog.Logger) *DeliverHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DeliverHandler{deliverer: deliverer, log: log}
}

func (h *DeliverHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	change, err := outbox.DecodeChange(t.Payload())
	if err != nil {
		h.log.ErrorContext(ctx, "deliver: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	err = h.deliverer.Deliver(ctx, change)
	metrics.RecordOutboxDelivery(string(change.Kind), err)
	if err == nil {
		h.log.DebugContext(ctx, "deliver: change delivered",
			slog.String("change_id", change.ID),
			slog.String("kind", string(change.Kind)),
		)
		return nil
	}

	h.log.WarnContext(ctx, "deliver: attempt failed",
		slog.String("change_id", change.ID),
		slog.String("kind", string(change.Kind)),
		slog.Bool("retryable", apperrors.IsRetryable(err)),
		slog.Any("error", err),
	)

	if !apperrors.IsRetryable(err) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}
