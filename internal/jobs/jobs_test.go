package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Proton-105/savos-bot/pkg/metrics"
)

func TestNewDeliverTask(t *testing.T) {
	task := NewDeliverTask("abc", []byte(`{"id":"abc"}`), 3)

	assert.Equal(t, TaskTypeDeliver, task.Type())
	assert.Equal(t, []byte(`{"id":"abc"}`), task.Payload())
	assert.Equal(t, "outbox:deliver:abc", DeliverTaskID("abc"))
}

func TestIsFinal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		retried  int
		maxRetry int
		want     bool
	}{
		{name: "first failure", err: errors.New("503"), retried: 0, maxRetry: 2, want: false},
		{name: "retries exhausted", err: errors.New("503"), retried: 2, maxRetry: 2, want: true},
		{name: "never retried", err: errors.New("503"), retried: 0, maxRetry: 0, want: true},
		{name: "skip retry", err: fmt.Errorf("%w: bad payload", asynq.SkipRetry), retried: 0, maxRetry: 5, want: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isFinal(tc.err, tc.retried, tc.maxRetry))
		})
	}
}

func TestStatsCronspec(t *testing.T) {
	assert.Equal(t, "@every 1h0m0s", StatsCronspec(time.Hour))
	assert.Equal(t, "@every 30s", StatsCronspec(30*time.Second))
}

func TestFailureReporter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	counter := func() float64 {
		return testutil.ToFloat64(metrics.JobFailures().WithLabelValues("test:report", "true"))
	}
	before := counter()

	// outside a worker the retry counters are absent and read as zero, so the failure is final
	failureReporter(log).HandleError(context.Background(), asynq.NewTask("test:report", nil), errors.New("boom"))

	assert.Equal(t, before+1, counter())
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "task_type=test:report")
	assert.Contains(t, buf.String(), "error=boom")
}
