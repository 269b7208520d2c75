package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/savos-bot/internal/health"
)

// ErrShuttingDown is reported by the readiness probe once shutdown began.
var ErrShuttingDown = errors.New("shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness from process state and readiness from the component checks.
type Probes struct {
	log      *slog.Logger
	checker  *health.Checker
	draining atomic.Bool
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates probes backed by checker. A nil checker reports ready.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, checker: checker}
}

// Liveness reports success while the process is running.
func (p *Probes) Liveness(context.Context) error {
	return nil
}

// Readiness fails when a critical component is down or shutdown started.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrShuttingDown
	}

	report := p.Report(ctx)
	if report.Ready {
		return nil
	}

	failed := make([]string, 0, len(report.Components))
	for name, status := range report.Components {
		if status != health.StatusOK {
			failed = append(failed, fmt.Sprintf("%s: %s", name, status))
		}
	}
	sort.Strings(failed)
	return fmt.Errorf("not ready: %s", strings.Join(failed, "; "))
}

// Report returns the per-component statuses.
func (p *Probes) Report(ctx context.Context) health.Report {
	if p.checker == nil {
		return health.Report{Ready: true, Components: map[string]string{}}
	}
	report := p.checker.Check(ctx)
	if p.draining.Load() {
		report.Ready = false
	}
	return report
}

// Drain marks the process as shutting down so load balancers stop routing to it.
func (p *Probes) Drain(context.Context) error {
	if !p.draining.Swap(true) {
		p.log.Info("readiness probe switched to draining")
	}
	return nil
}
