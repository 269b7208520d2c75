package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/savos-bot/internal/domain"
	"github.com/Proton-105/savos-bot/internal/state"
)

const defaultCollectInterval = 10 * time.Second

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "website_requests_total",
			Help: "Total number of website API requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)
	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "website_request_duration_seconds",
			Help:    "Latency of website API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	outboxEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_enqueued_total",
			Help: "Changes queued for delivery to the website",
		},
		[]string{"kind"},
	)
	outboxDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dropped_total",
			Help: "Changes dropped because the delivery queue was full or closed",
		},
		[]string{"kind"},
	)
	outboxDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_delivered_total",
			Help: "Delivery attempts outcome by change kind",
		},
		[]string{"kind", "result"},
	)
	jobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_failures_total",
			Help: "Background job failures by task type, final marks an exhausted task",
		},
		[]string{"task_type", "final"},
	)
	activeUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_users",
			Help: "Current number of active users",
		},
	)
	registeredUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registered_users",
			Help: "Users with a stored phone number",
		},
	)
	rateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Rate limit checks by backend and result",
		},
		[]string{"backend", "result"},
	)
	rateLimitBackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_backend_errors_total",
			Help: "Errors returned by a rate limit backend",
		},
		[]string{"backend"},
	)
	usersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "users_by_state",
			Help: "Number of users per conversation state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks conversation transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordRemoteRequest tracks one website API call. status is the HTTP code, "error" or "open" (breaker).
func RecordRemoteRequest(endpoint, status string, duration time.Duration) {
	remoteRequestsTotal.WithLabelValues(endpoint, status).Inc()
	remoteRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordOutboxEnqueued counts a change accepted by the outbox.
func RecordOutboxEnqueued(kind string) {
	outboxEnqueuedTotal.WithLabelValues(kind).Inc()
}

// RecordOutboxDropped counts a change the outbox could not accept.
func RecordOutboxDropped(kind string) {
	outboxDroppedTotal.WithLabelValues(kind).Inc()
}

// RecordOutboxDelivery counts the final outcome of delivering a change.
func RecordOutboxDelivery(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	outboxDeliveredTotal.WithLabelValues(kind, result).Inc()
}

// RecordJobFailure counts a failed background job run.
func RecordJobFailure(taskType string, final bool) {
	jobFailuresTotal.WithLabelValues(taskType, strconv.FormatBool(final)).Inc()
}

// JobFailures exposes the job failure counter for tests.
func JobFailures() *prometheus.CounterVec {
	return jobFailuresTotal
}

// RecordRateLimitCheck counts one limiter decision.
func RecordRateLimitCheck(backend string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	rateLimitChecksTotal.WithLabelValues(backend, result).Inc()
}

// RecordRateLimitBackendError counts a failed limiter call.
func RecordRateLimitBackendError(backend string) {
	rateLimitBackendErrorsTotal.WithLabelValues(backend).Inc()
}

// SetActiveUsers updates the gauge for current active users.
func SetActiveUsers(count int) {
	activeUsers.Set(float64(count))
}

// SetUsersByState updates the gauge for the given state.
func SetUsersByState(state string, count int) {
	if state == "" {
		state = "unknown"
	}

	usersByState.WithLabelValues(state).Set(float64(count))
}

// UserLister is the read side of the user store needed for gauges.
type UserLister interface {
	List(ctx context.Context) ([]*domain.User, error)
}

// UsersCollector periodically counts stored users and emits gauge metrics.
type UsersCollector struct {
	users    UserLister
	interval time.Duration
}

// NewUsersCollector builds a collector bound to the user store.
func NewUsersCollector(users UserLister) *UsersCollector {
	return &UsersCollector{users: users, interval: defaultCollectInterval}
}

// Run polls the store every 10 seconds until ctx is cancelled.
func (c *UsersCollector) Run(ctx context.Context) {
	if c == nil || c.users == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *UsersCollector) collect(ctx context.Context) error {
	users, err := c.users.List(ctx)
	if err != nil {
		return err
	}

	stateCounts := make(map[state.State]int, len(state.All()))
	active, registered := 0, 0
	for _, u := range users {
		if u == nil {
			continue
		}
		if u.Active() {
			active++
		}
		if u.HasPhone() {
			registered++
		}
		stateCounts[u.ConversationState()]++
	}

	SetActiveUsers(active)
	registeredUsers.Set(float64(registered))

	usersByState.Reset()
	for _, tracked := range state.All() {
		SetUsersByState(string(tracked), stateCounts[tracked])
	}

	return nil
}
