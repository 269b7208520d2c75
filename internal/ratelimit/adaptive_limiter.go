package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/savos-bot/pkg/metrics"
)

const (
	backendPrimary  = "redis"
	backendFallback = "memory"
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter when the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check evaluates the limit using the primary backend. On backend errors the fallback
// runs with half the limit, since each process then counts only its own traffic.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || (errors.Is(err, ErrLimitExceeded) && result != nil) {
		return decide(backendPrimary, result)
	}

	metrics.RecordRateLimitBackendError(backendPrimary)
	a.log.Warn("redis limiter failed, falling back to in-memory", slog.String("key", key), slog.Any("error", err))

	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	fallbackResult, fallbackErr := a.fallback.Check(ctx, key, fallbackLimit, window)
	if fallbackErr != nil && !errors.Is(fallbackErr, ErrLimitExceeded) {
		metrics.RecordRateLimitBackendError(backendFallback)
		return fallbackResult, fallbackErr
	}

	return decide(backendFallback, fallbackResult)
}

func decide(backend string, result *Result) (*Result, error) {
	allowed := result != nil && result.Allowed
	metrics.RecordRateLimitCheck(backend, allowed)
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}
