package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/savos-bot/internal/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_RunsHooksInOrder(t *testing.T) {
	s := NewShutdown(testLogger())

	var order []string
	for _, name := range []string{"bot", "outbox", "redis"} {
		name := name
		s.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	s.Register("nil", nil)

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"bot", "outbox", "redis"}, order)

	require.NoError(t, s.Execute(context.Background()))
	assert.Len(t, order, 3, "second Execute is a no-op")
}

func TestShutdown_ContinuesPastFailures(t *testing.T) {
	s := NewShutdown(testLogger())
	boom := errors.New("boom")

	var ran []string
	s.Register("first", func(context.Context) error {
		ran = append(ran, "first")
		return boom
	})
	s.Register("second", func(context.Context) error {
		ran = append(ran, "second")
		return nil
	})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first")
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestShutdown_HookTimeout(t *testing.T) {
	s := NewShutdown(testLogger())
	s.RegisterHook(Hook{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	err := s.Execute(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShutdown_SkipsHooksAfterDeadline(t *testing.T) {
	s := NewShutdown(testLogger())
	called := false
	s.Register("late", func(context.Context) error {
		called = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestProbes(t *testing.T) {
	ctx := context.Background()
	storageErr := errors.New("data dir is not writable")

	checker := health.NewChecker(testLogger())
	var storageDown bool
	checker.AddCheck("storage", health.CheckFunc(func(context.Context) error {
		if storageDown {
			return storageErr
		}
		return nil
	}))
	checker.AddOptionalCheck("website", health.CheckFunc(func(context.Context) error {
		return errors.New("unreachable")
	}))

	p := NewProbes(checker, testLogger())

	assert.NoError(t, p.Liveness(ctx))
	assert.NoError(t, p.Readiness(ctx), "optional website failure does not block readiness")

	storageDown = true
	err := p.Readiness(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage: data dir is not writable")
	assert.Contains(t, err.Error(), "website: unreachable")

	storageDown = false
	require.NoError(t, p.Drain(ctx))
	assert.ErrorIs(t, p.Readiness(ctx), ErrShuttingDown)
	assert.False(t, p.Report(ctx).Ready)
	assert.NoError(t, p.Liveness(ctx))
}

func TestProbes_NilChecker(t *testing.T) {
	p := NewProbes(nil, nil)
	assert.NoError(t, p.Readiness(context.Background()))
	assert.True(t, p.Report(context.Background()).Ready)
}
