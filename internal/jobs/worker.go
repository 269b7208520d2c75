package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/savos-bot/pkg/metrics"
)

// Worker processes queued tasks until Shutdown.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker with concurrency parallel handlers.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	log = log.With(slog.String("component", "jobs"))

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:         Queues(),
		Concurrency:    concurrency,
		RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		ErrorHandler:   failureReporter(log),
		Logger:         newAsynqLogger(log),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run starts processing and returns once the server is up.
func (w *worker) Run() error {
	w.log.Info("worker starting")
	return w.server.Start(w.mux)
}

// Shutdown waits for in-flight tasks before returning.
func (w *worker) Shutdown() {
	w.log.Info("worker shutting down")
	w.server.Shutdown()
}

// failureReporter logs every failed run and counts it. A task is final when asynq will not retry it.
func failureReporter(log *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		final := isFinal(err, retried, maxRetry)

		metrics.RecordJobFailure(task.Type(), final)

		level := slog.LevelWarn
		if final {
			level = slog.LevelError
		}
		log.LogAttrs(ctx, level, "task failed",
			slog.String("task_type", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Bool("final", final),
			slog.Any("error", err),
		)
	})
}

func isFinal(err error, retried, maxRetry int) bool {
	return errors.Is(err, asynq.SkipRetry) || retried >= maxRetry
}
