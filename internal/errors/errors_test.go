package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewExternalAPIError_Retryable(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "network failure", status: 0, retryable: true},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
		{name: "too many requests", status: http.StatusTooManyRequests, retryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, retryable: false},
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := NewExternalAPIError("push_user", tc.status, nil)
			assert.Equal(t, CodeExternalAPI, err.Code)
			assert.Equal(t, tc.retryable, err.Retryable)
			assert.Equal(t, tc.retryable, IsRetryable(err))
		})
	}
}

func TestAppError_UnwrapAndType(t *testing.T) {
	cause := stdErrors.New("disk full")
	err := NewStorageError("write users", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage", err.Type())
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "capacity", NewCapacityError(10).Type())
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(testLogger(), false)
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{name: "nil", err: nil, want: Outcome{}},
		{
			name: "validation",
			err:  NewValidationError("phone"),
			want: Outcome{UserMessage: NewValidationError("phone").UserMessage, Severity: SeverityLow},
		},
		{
			name: "wrapped outage",
			err:  fmt.Errorf("push user: %w", NewExternalAPIError("website", 503, nil)),
			want: Outcome{UserMessage: NewExternalAPIError("website", 503, nil).UserMessage, Severity: SeverityMedium, Retryable: true},
		},
		{name: "plain error has no user text", err: stdErrors.New("boom"), want: Outcome{Severity: SeverityHigh}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, h.Handle(ctx, tc.err, slog.Int64("user_id", 42)))
		})
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(SeverityLow))
	assert.Equal(t, slog.LevelWarn, levelFor(SeverityMedium))
	assert.Equal(t, slog.LevelError, levelFor(SeverityHigh))
	assert.Equal(t, slog.LevelError, levelFor(SeverityCritical))
}

func TestRetryPolicy_Do(t *testing.T) {
	fast := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	t.Run("retries retryable errors until success", func(t *testing.T) {
		calls := 0
		err := fast.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return NewExternalAPIError("health", http.StatusServiceUnavailable, nil)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := fast.Do(context.Background(), func() error {
			calls++
			return NewValidationError("bad")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("no retry policy calls once", func(t *testing.T) {
		calls := 0
		_ = NoRetry().Do(context.Background(), func() error {
			calls++
			return NewExternalAPIError("health", 0, nil)
		})

		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := fast.Do(ctx, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryPolicy_BackoffCapped(t *testing.T) {
	p := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 3*time.Second, p.backoff(3))
}
