// Package scheduler drives the periodic probe cycle: one cron job per
// enabled check, a fallback sweep and an hourly job reconciliation.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/domain"
)

const (
	// Checks whose interval is not a whole number of minutes fall back
	// to this cadence; cron entries have minute granularity.
	defaultPeriodMinutes = 5

	// fallbackSweepSpec runs every check regardless of per-check jobs,
	// so a lost job never silences a check for good.
	fallbackSweepSpec = "*/30 * * * *"

	reconcileSpec = "0 * * * *"

	jobTimeout = 5 * time.Minute
)

// CheckRunner executes probe work on behalf of the scheduler.
type CheckRunner interface {
	RunCheck(ctx context.Context, checkID string) error
	RunAll(ctx context.Context) ([]domain.CheckResult, error)
}

// Scheduler owns the cron runtime and the job table. It implements
// checks.JobScheduler so check mutations keep the table in step, and
// reconciles against the repository hourly in case a mutation was lost.
type Scheduler struct {
	cron   *cron.Cron
	runner CheckRunner
	repo   checks.Repository

	mu        sync.Mutex
	jobs      map[string]cron.EntryID
	intervals map[string]int
	inFlight  map[string]bool

	sweeping atomic.Bool
}

// New creates a scheduler. Call Start to register jobs and begin the
// cron loop.
func New(runner CheckRunner, repo checks.Repository) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		runner:    runner,
		repo:      repo,
		jobs:      make(map[string]cron.EntryID),
		intervals: make(map[string]int),
		inFlight:  make(map[string]bool),
	}
}

// Start schedules every enabled check plus the fallback sweep and the
// hourly reconciliation, then starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	enabled, err := s.repo.List(ctx, checks.Filter{EnabledOnly: true})
	if err != nil {
		return fmt.Errorf("list enabled checks: %w", err)
	}
	for i := range enabled {
		s.Schedule(&enabled[i])
	}

	if _, err := s.cron.AddFunc(fallbackSweepSpec, s.fallbackSweep); err != nil {
		return fmt.Errorf("add fallback sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(reconcileSpec, s.reconcile); err != nil {
		return fmt.Errorf("add reconciliation: %w", err)
	}

	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(enabled))
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}

// Schedule registers or replaces the cron job of a check. A check
// already scheduled at the same interval is left alone.
func (s *Scheduler) Schedule(check *domain.HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[check.ID]; ok {
		if s.intervals[check.ID] == check.IntervalSeconds {
			return
		}
		s.cron.Remove(id)
	}

	spec := periodFor(check)
	checkID := check.ID
	entryID, err := s.cron.AddFunc(spec, func() {
		s.runJob(checkID)
	})
	if err != nil {
		slog.Error("failed to schedule check",
			"check_id", check.ID,
			"spec", spec,
			"error", err,
		)
		return
	}

	s.jobs[check.ID] = entryID
	s.intervals[check.ID] = check.IntervalSeconds
	slog.Info("check scheduled", "check_id", check.ID, "spec", spec)
}

// Unschedule removes the cron job of a check if one exists.
func (s *Scheduler) Unschedule(checkID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[checkID]
	if !ok {
		return
	}
	s.cron.Remove(id)
	delete(s.jobs, checkID)
	delete(s.intervals, checkID)
	slog.Info("check unscheduled", "check_id", checkID)
}

// runJob executes one scheduled probe with per-check single-flight: if
// the previous run of the same check is still going, this tick is
// skipped rather than queued.
func (s *Scheduler) runJob(checkID string) {
	if !s.tryAcquire(checkID) {
		slog.Warn("probe still running, skipping tick", "check_id", checkID)
		return
	}
	defer s.release(checkID)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.runner.RunCheck(ctx, checkID); err != nil {
		slog.Error("scheduled probe failed", "check_id", checkID, "error", err)
	}
}

// fallbackSweep probes everything. Guarded by a single flag so an
// overrunning sweep is never stacked on top of itself.
func (s *Scheduler) fallbackSweep() {
	if !s.sweeping.CompareAndSwap(false, true) {
		slog.Warn("fallback sweep still running, skipping tick")
		return
	}
	defer s.sweeping.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.runner.RunAll(ctx); err != nil {
		slog.Error("fallback sweep failed", "error", err)
	}
}

// reconcile realigns the job table with the repository: enabled checks
// get (re)scheduled, jobs for vanished or disabled checks are removed.
func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	enabled, err := s.repo.List(ctx, checks.Filter{EnabledOnly: true})
	if err != nil {
		slog.Error("reconciliation failed to list checks", "error", err)
		return
	}

	want := make(map[string]bool, len(enabled))
	for i := range enabled {
		want[enabled[i].ID] = true
		s.Schedule(&enabled[i])
	}

	s.mu.Lock()
	var stale []string
	for id := range s.jobs {
		if !want[id] {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		s.Unschedule(id)
	}

	slog.Debug("scheduler reconciled", "jobs", len(enabled), "removed", len(stale))
}

func (s *Scheduler) tryAcquire(checkID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[checkID] {
		return false
	}
	s.inFlight[checkID] = true
	return true
}

func (s *Scheduler) release(checkID string) {
	s.mu.Lock()
	delete(s.inFlight, checkID)
	s.mu.Unlock()
}

// periodFor maps a check interval to a cron spec. Intervals that are a
// whole number of minutes run at that cadence; anything else falls
// back to the default period.
func periodFor(check *domain.HealthCheck) string {
	if check.IntervalSeconds > 0 && check.IntervalSeconds%60 == 0 {
		return fmt.Sprintf("*/%d * * * *", check.IntervalSeconds/60)
	}
	slog.Warn("check interval is not a whole number of minutes, using default period",
		"check_id", check.ID,
		"interval_seconds", check.IntervalSeconds,
		"period_minutes", defaultPeriodMinutes,
	)
	return fmt.Sprintf("*/%d * * * *", defaultPeriodMinutes)
}
