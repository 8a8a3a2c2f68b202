// Package monitor runs payment-status reconciliation on a cron schedule.
//
// Subscriptions only move to suspended or expired when something checks
// them. The monitor sweeps every subscription periodically so that happens
// without waiting for the subscriber's next call.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/premium"
)

// DefaultSchedule runs a sweep every hour.
const DefaultSchedule = "@every 1h"

// DefaultTimeout bounds a single sweep.
const DefaultTimeout = 5 * time.Minute

// Reconciler is the part of *premium.Ledger the monitor drives.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (premium.ReconcileResult, error)
}

// Monitor schedules ReconcileAll sweeps.
type Monitor struct {
	target   Reconciler
	cron     *cron.Cron
	logger   *slog.Logger
	schedule string
	timeout  time.Duration
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSchedule sets the cron spec. Standard five-field specs and
// descriptors such as "@every 15m" are accepted.
func WithSchedule(spec string) Option {
	return func(m *Monitor) {
		if spec != "" {
			m.schedule = spec
		}
	}
}

// WithTimeout bounds each sweep.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// New creates a Monitor for target. Call Start to begin sweeping.
func New(target Reconciler, opts ...Option) *Monitor {
	m := &Monitor{
		target:   target,
		logger:   slog.Default(),
		schedule: DefaultSchedule,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(m.logger.Handler(), slog.LevelInfo))
	m.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	return m
}

// Schedule returns the configured cron spec.
func (m *Monitor) Schedule() string { return m.schedule }

// Start registers the sweep and starts the scheduler.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, m.sweep); err != nil {
		return fmt.Errorf("monitor: invalid schedule %q: %w", m.schedule, err)
	}
	m.cron.Start()
	m.logger.Info("scheduled reconciliation sweep", "schedule", m.schedule)
	return nil
}

// Stop halts the scheduler. The returned context is done once any running
// sweep has finished.
func (m *Monitor) Stop() context.Context {
	return m.cron.Stop()
}

// RunOnce performs a single sweep immediately.
func (m *Monitor) RunOnce(ctx context.Context) (premium.ReconcileResult, error) {
	start := time.Now()
	res, err := m.target.ReconcileAll(ctx)

	attrs := []any{
		"checked", res.Checked,
		"changed", res.Changed,
		"suspended", res.Suspended,
		"expired", res.Expired,
		"failed", res.Failed,
		"elapsed", time.Since(start),
	}
	if err != nil {
		m.logger.Error("reconciliation sweep failed", append(attrs, "error", err)...)
		return res, err
	}
	m.logger.Info("reconciliation sweep complete", attrs...)
	return res, nil
}

func (m *Monitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	_, _ = m.RunOnce(ctx)
}
