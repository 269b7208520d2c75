// Package ratelimit throttles incoming updates per user and per command over sliding windows.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrLimitExceeded is returned together with the Result of a rejected check.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window frees a slot, never less than one.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil {
		return 1
	}
	seconds := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Limiter counts requests for key within window. A rejected request is not counted.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
