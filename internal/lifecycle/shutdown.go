package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Shutdown runs registered hooks one after another in registration order.
// Order matters here: updates stop first, queued changes drain next, connections close last.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	done  bool
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	s.RegisterHook(Hook{Name: name, Fn: fn})
}

// RegisterHook adds h, keeping its own timeout.
func (s *Shutdown) RegisterHook(h Hook) {
	if h.Fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, h)
}

// Execute runs every hook once, continuing past failures, and joins their errors.
// Later calls are no-ops.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for _, h := range hooks {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, ctx.Err()))
			s.log.Error("shutdown hook skipped", slog.String("hook", h.Name), slog.Any("error", ctx.Err()))
			continue
		}

		hookStart := time.Now()
		if err := h.run(ctx); err != nil {
			s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}

		s.log.Info("shutdown hook completed",
			slog.String("hook", h.Name),
			slog.Duration("elapsed", time.Since(hookStart)),
		)
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
