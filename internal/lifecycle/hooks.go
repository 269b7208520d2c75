package lifecycle

import (
	"context"
	"time"
)

// Hook describes a named shutdown step.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
	// Timeout bounds the step; zero means it shares the overall deadline.
	Timeout time.Duration
}

func (h Hook) run(ctx context.Context) error {
	if h.Timeout <= 0 {
		return h.Fn(ctx)
	}
	hookCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	return h.Fn(hookCtx)
}
