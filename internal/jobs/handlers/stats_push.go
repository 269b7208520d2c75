package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/savos-bot/internal/outbox"
)

// StatsPushHandler processes the scheduled stats:push task.
type StatsPushHandler struct {
	stats     outbox.StatsSource
	deliverer outbox.Deliverer
	log       *slog.Logger
}

func NewStatsPushHandler(stats outbox.StatsSource, deliverer outbox.Deliverer, log *slog.Logger) *StatsPushHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StatsPushHandler{stats: stats, deliverer: deliverer, log: log}
}

func (h *StatsPushHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	snapshot, err := h.stats.Stats(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "stats push: compute failed", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := h.deliverer.Deliver(ctx, outbox.StatsChange(snapshot)); err != nil {
		h.log.WarnContext(ctx, "stats push: delivery failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	h.log.DebugContext(ctx, "stats push: delivered", slog.Int("total_users", snapshot.TotalUsers))
	return nil
}
