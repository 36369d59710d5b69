// Package monitor runs probe sweeps: it executes probes, persists
// results, drives incident detection and hands failures to the
// notification router.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/notifications"
	"github.com/pulsewatch/pulsewatch/internal/probe"
)

// IncidentOpener records a check failure against the incident ledger.
type IncidentOpener interface {
	OpenOrAppend(ctx context.Context, check *domain.HealthCheck, details string) (*domain.Incident, error)
}

// AlertNotifier delivers one alert batch per sweep.
type AlertNotifier interface {
	NotifyUnhealthy(ctx context.Context, failures []notifications.FailedCheck) error
}

// Orchestrator coordinates one probe cycle end to end. Probing and
// persistence happen per check; notification happens once per sweep
// with all collected failures.
type Orchestrator struct {
	repo      checks.Repository
	executor  *probe.Executor
	incidents IncidentOpener
	notifier  AlertNotifier
}

// NewOrchestrator creates a new monitor orchestrator.
func NewOrchestrator(repo checks.Repository, executor *probe.Executor, incidents IncidentOpener, notifier AlertNotifier) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		executor:  executor,
		incidents: incidents,
		notifier:  notifier,
	}
}

// RunAll probes every enabled check. Failing to list the checks aborts
// the sweep; a failure of any individual check never does. Returns the
// persisted results keyed nothing special, in list order.
func (o *Orchestrator) RunAll(ctx context.Context) ([]domain.CheckResult, error) {
	start := time.Now()

	enabled, err := o.repo.List(ctx, checks.Filter{EnabledOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list enabled checks: %w", err)
	}

	results := make([]domain.CheckResult, 0, len(enabled))
	var failures []notifications.FailedCheck
	var unhealthyCount int

	for i := range enabled {
		check := enabled[i]

		result := o.runCheck(ctx, &check)
		results = append(results, result)

		if result.Status != domain.StatusUnhealthy {
			continue
		}
		unhealthyCount++

		// Every unhealthy result of this cycle goes into the alert
		// batch; the router's throttle decides whether it is sent.
		if check.NotifyOnFailure {
			failures = append(failures, notifications.FailedCheck{
				Check:  check,
				Result: result,
			})
		}
	}

	if len(failures) > 0 && o.notifier != nil {
		if err := o.notifier.NotifyUnhealthy(ctx, failures); err != nil {
			slog.Error("failed to send alert notifications", "error", err)
		}
	}

	recordSweep(len(enabled), unhealthyCount, time.Since(start))
	slog.Info("probe sweep finished",
		"checks", len(enabled),
		"unhealthy", unhealthyCount,
		"new_failures", len(failures),
		"duration", time.Since(start),
	)
	return results, nil
}

// RunCheck probes a single check on its schedule. Unlike RunOne it
// feeds the incident ledger and, for an unhealthy result of a check
// with notifications enabled, dispatches a single-failure alert batch.
func (o *Orchestrator) RunCheck(ctx context.Context, checkID string) error {
	check, err := o.repo.GetByID(ctx, checkID)
	if err != nil {
		return err
	}
	if !check.Enabled {
		return nil
	}

	result := o.runCheck(ctx, check)

	if result.Status == domain.StatusUnhealthy && check.NotifyOnFailure && o.notifier != nil {
		err := o.notifier.NotifyUnhealthy(ctx, []notifications.FailedCheck{{
			Check:  *check,
			Result: result,
		}})
		if err != nil {
			slog.Error("failed to send alert notifications",
				"check_id", check.ID,
				"error", err,
			)
		}
	}
	return nil
}

// RunOne probes a single check on demand and persists the result. The
// forced path skips incident detection and notifications; only the
// scheduled sweep drives those.
func (o *Orchestrator) RunOne(ctx context.Context, checkID string) (*domain.CheckResult, error) {
	check, err := o.repo.GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}

	probed := o.executor.Probe(ctx, check)
	result := o.saveResult(ctx, check, probed)
	return &result, nil
}

// Restart runs a check's restart command and returns the captured
// output.
func (o *Orchestrator) Restart(ctx context.Context, checkID string) (string, error) {
	check, err := o.repo.GetByID(ctx, checkID)
	if err != nil {
		return "", err
	}
	return o.executor.Restart(ctx, check)
}

// runCheck probes one check, persists the result and feeds the incident
// ledger. An unhealthy result reaches the ledger only when it is a new
// failure: fewer than two prior results, or the previous result was
// healthy. A check that was already unhealthy on the previous cycle
// leaves its open incident untouched.
func (o *Orchestrator) runCheck(ctx context.Context, check *domain.HealthCheck) domain.CheckResult {
	probed := o.executor.Probe(ctx, check)
	recordProbe(string(check.Kind), string(probed.Status))

	// Prior results are read before the new one is saved so the
	// previous outcome is still at the head.
	prior, err := o.repo.RecentResults(ctx, check.ID, 2)
	if err != nil {
		slog.Error("failed to load recent results",
			"check_id", check.ID,
			"error", err,
		)
		prior = nil
	}

	result := o.saveResult(ctx, check, probed)

	if result.Status != domain.StatusUnhealthy {
		return result
	}

	newFailure := len(prior) < 2 || prior[0].Status == domain.StatusHealthy

	if newFailure && o.incidents != nil {
		if _, err := o.incidents.OpenOrAppend(ctx, check, result.Details); err != nil {
			slog.Error("failed to record incident",
				"check_id", check.ID,
				"error", err,
			)
		}
	}

	return result
}

func (o *Orchestrator) saveResult(ctx context.Context, check *domain.HealthCheck, probed probe.Result) domain.CheckResult {
	result := domain.CheckResult{
		CheckID:        check.ID,
		Status:         probed.Status,
		Details:        probed.Details,
		CPUUsage:       probed.CPUUsage,
		MemoryUsage:    probed.MemoryUsage,
		ResponseTimeMs: probed.ResponseTimeMs,
	}

	if err := o.repo.SaveResult(ctx, &result); err != nil {
		slog.Error("failed to save check result",
			"check_id", check.ID,
			"error", err,
		)
	}
	return result
}
