// Package scheduler runs the expiration scan on a fixed interval and
// republishes the compliance summary after each run.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/services/compliance"
)

// Workflow is the part of the compliance service the scheduler drives.
type Workflow interface {
	Scan(ctx context.Context, horizonDays int) (*compliance.ScanResult, error)
	Summary(ctx context.Context) (models.ComplianceSummary, error)
}

// Scheduler triggers periodic scans. A zero interval disables the loop.
type Scheduler struct {
	workflow Workflow
	interval time.Duration
	horizon  int
	log      *slog.Logger

	runs atomic.Int64
}

// New creates a scheduler. horizonDays <= 0 uses the service default.
func New(workflow Workflow, interval time.Duration, horizonDays int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		workflow: workflow,
		interval: interval,
		horizon:  horizonDays,
		log:      log.With("component", "scheduler"),
	}
}

// Runs returns how many scans have completed.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Run scans once immediately, then on every tick until ctx is done. It
// returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("scheduled scans disabled")
		<-ctx.Done()
		return nil
	}

	s.log.Info("starting scheduled scans", "interval", s.interval, "horizon_days", s.horizon)
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduled scans stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one scan and summary refresh. Failures are logged; the
// next tick tries again.
func (s *Scheduler) RunOnce(ctx context.Context) {
	res, err := s.workflow.Scan(ctx, s.horizon)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("scheduled scan failed", "error", err)
		return
	}
	s.runs.Add(1)

	if res.Failed > 0 {
		s.log.Warn("scheduled scan had failures", "failed", res.Failed)
	}

	summary, err := s.workflow.Summary(ctx)
	if err != nil {
		s.log.Error("summary refresh failed", "error", err)
		return
	}
	s.log.Debug("summary refreshed",
		"pending_discards", summary.PendingDiscards,
		"expired_alerts", summary.ExpiredAlerts,
		"expiring_alerts", summary.ExpiringAlerts)
}
