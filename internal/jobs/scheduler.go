package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues periodic tasks.
type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	statsInterval  time.Duration
	entryID        string
	log            *slog.Logger
}

// NewScheduler builds a scheduler that enqueues the statistics push every statsInterval.
// A zero interval registers nothing.
func NewScheduler(redisOpt asynq.RedisConnOpt, statsInterval time.Duration, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "jobs"))

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			Location:        time.UTC,
			Logger:          newAsynqLogger(log),
			PostEnqueueFunc: postEnqueue(log),
		}),
		statsInterval: statsInterval,
		log:           log,
	}
}

// RegisterTasks registers the stats push once; later calls are no-ops.
func (s *scheduler) RegisterTasks() error {
	if s.statsInterval <= 0 || s.entryID != "" {
		return nil
	}

	cronspec := StatsCronspec(s.statsInterval)
	id, err := s.asynqScheduler.Register(cronspec, NewStatsPushTask())
	if err != nil {
		return fmt.Errorf("register stats push: %w", err)
	}
	s.entryID = id

	s.log.Info("stats push scheduled", slog.String("cronspec", cronspec), slog.String("entry_id", id))
	return nil
}

func (s *scheduler) Run() {
	s.log.Info("scheduler starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.Error("scheduler stopped", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.Info("scheduler shutting down")
	s.asynqScheduler.Shutdown()
}

// StatsCronspec renders the interval in asynq's @every syntax.
func StatsCronspec(interval time.Duration) string {
	return "@every " + interval.String()
}

func postEnqueue(log *slog.Logger) func(*asynq.TaskInfo, error) {
	return func(info *asynq.TaskInfo, err error) {
		switch {
		case err == nil:
			log.Debug("periodic task enqueued", slog.String("task_type", info.Type), slog.String("task_id", info.ID))
		case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
			log.Debug("periodic task skipped, previous run still queued")
		default:
			log.Warn("periodic task enqueue failed", slog.Any("error", err))
		}
	}
}
