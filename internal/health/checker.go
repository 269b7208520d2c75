// Package health aggregates component checks for the readiness probe.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"
)

const (
	StatusOK       = "OK"
	defaultTimeout = 3 * time.Second
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checkable.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

type registered struct {
	check    Checkable
	critical bool
}

// Report is the outcome of one Check run.
type Report struct {
	Ready      bool              `json:"ready"`
	Components map[string]string `json:"components"`
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]registered
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		log:     log,
		timeout: defaultTimeout,
		checks:  make(map[string]registered),
	}
}

// AddCheck registers a component whose failure makes the process not ready.
func (c *Checker) AddCheck(name string, check Checkable) {
	c.add(name, check, true)
}

// AddOptionalCheck registers a component that is reported but never blocks readiness.
// The website is one: the bot keeps serving users from local storage while it is down.
func (c *Checker) AddOptionalCheck(name string, check Checkable) {
	c.add(name, check, false)
}

func (c *Checker) add(name string, check Checkable, critical bool) {
	if name == "" || check == nil {
		return
	}
	c.mu.Lock()
	c.checks[name] = registered{check: check, critical: critical}
	c.mu.Unlock()
}

// Names returns the registered component names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all registered health checks concurrently, each bounded by the checker timeout.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	report := Report{Ready: true, Components: make(map[string]string, len(checks))}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, r := range checks {
		name, r := name, r
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			err := r.check.HealthCheck(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				report.Components[name] = StatusOK
				return
			}

			report.Components[name] = err.Error()
			if r.critical {
				report.Ready = false
			}
			c.log.Warn("health check failed",
				slog.String("component", name),
				slog.Bool("critical", r.critical),
				slog.Any("error", err),
			)
		}()
	}
	wg.Wait()

	return report
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker constructs a RedisChecker.
func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING command against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker reports whether the bot identity was resolved at startup.
type TelegramChecker struct {
	bot *telebot.Bot
}

// NewTelegramChecker constructs a TelegramChecker.
func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

// HealthCheck ensures the underlying bot is initialized.
func (c *TelegramChecker) HealthCheck(context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized")
	}
	return nil
}
