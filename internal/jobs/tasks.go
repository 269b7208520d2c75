package jobs

import (
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeDeliver   = "outbox:deliver"
	TaskTypeStatsPush = "stats:push"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const (
	deliverTimeout = 30 * time.Second
	// completed deliveries keep their task id reserved this long, so a replayed change is not sent twice
	deliverRetention = time.Hour
)

// Queues is the priority map used by the worker.
func Queues() map[string]int {
	return map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	}
}

// NewDeliverTask wraps an encoded outbox change. maxAttempts counts the first try.
// A non-empty changeID becomes the task id; enqueueing the same change twice fails with asynq.ErrTaskIDConflict.
func NewDeliverTask(changeID string, payload []byte, maxAttempts int) *asynq.Task {
	retries := maxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(retries),
		asynq.Timeout(deliverTimeout),
	}
	if changeID != "" {
		opts = append(opts, asynq.TaskID(DeliverTaskID(changeID)), asynq.Retention(deliverRetention))
	}

	return asynq.NewTask(TaskTypeDeliver, payload, opts...)
}

// DeliverTaskID is the asynq task id used for a change.
func DeliverTaskID(changeID string) string {
	return TaskTypeDeliver + ":" + changeID
}

// NewStatsPushTask builds the periodic statistics push. It is never retried: the next tick sends fresh numbers.
func NewStatsPushTask() *asynq.Task {
	return asynq.NewTask(TaskTypeStatsPush, nil, asynq.Queue(QueueLow), asynq.MaxRetry(0))
}
