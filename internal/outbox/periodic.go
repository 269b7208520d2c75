package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/savos-bot/internal/domain"
)

// StatsSource computes the current statistics snapshot.
type StatsSource interface {
	Stats(ctx context.Context) (*domain.Statistics, error)
}

// RunPeriodicStats enqueues a statistics push every interval until ctx is done.
func RunPeriodicStats(ctx context.Context, interval time.Duration, stats StatsSource, ob Outbox, log *slog.Logger) {
	if interval <= 0 || stats == nil || ob == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot, err := stats.Stats(ctx)
			if err != nil {
				log.Warn("periodic stats: compute failed", slog.Any("error", err))
				continue
			}
			if err := ob.Enqueue(ctx, StatsChange(snapshot)); err != nil {
				log.Warn("periodic stats: enqueue failed", slog.Any("error", err))
			}
		}
	}
}
