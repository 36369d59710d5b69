package monitor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/monitor"
	"github.com/pulsewatch/pulsewatch/internal/notifications"
	"github.com/pulsewatch/pulsewatch/internal/probe"
	"github.com/pulsewatch/pulsewatch/internal/testutil"
)

type captureOpener struct {
	opened []string // check IDs
}

func (c *captureOpener) OpenOrAppend(_ context.Context, check *domain.HealthCheck, _ string) (*domain.Incident, error) {
	c.opened = append(c.opened, check.ID)
	return &domain.Incident{CheckID: check.ID}, nil
}

type captureNotifier struct {
	batches [][]notifications.FailedCheck
}

func (c *captureNotifier) NotifyUnhealthy(_ context.Context, failures []notifications.FailedCheck) error {
	c.batches = append(c.batches, failures)
	return nil
}

// serviceCheck builds a SERVICE check whose health is decided by a
// shell command, so probe outcomes are deterministic in tests.
func serviceCheck(name, command string) *domain.HealthCheck {
	check := testutil.CheckOfKind(domain.CheckKindService, name)
	check.Command = command
	return check
}

func newOrchestrator(repo *testutil.FakeCheckRepo) (*monitor.Orchestrator, *captureOpener, *captureNotifier) {
	opener := &captureOpener{}
	notifier := &captureNotifier{}
	return monitor.NewOrchestrator(repo, probe.NewExecutor(), opener, notifier), opener, notifier
}

func seedResult(t *testing.T, repo *testutil.FakeCheckRepo, checkID string, status domain.HealthStatus) {
	t.Helper()
	require.NoError(t, repo.SaveResult(context.Background(), &domain.CheckResult{
		CheckID: checkID,
		Status:  status,
	}))
}

func TestRunAll_NewFailureNotifies(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	healthyCheck := repo.Add(serviceCheck("fine", "true"))
	failing := repo.Add(serviceCheck("broken", "false"))

	disabled := serviceCheck("off", "false")
	disabled.Enabled = false
	repo.Add(disabled)

	orch, opener, notifier := newOrchestrator(repo)

	results, err := orch.RunAll(context.Background())
	require.NoError(t, err)

	// Disabled checks are not probed.
	assert.Len(t, results, 2)
	assert.Empty(t, repo.Results[disabled.ID])
	assert.Len(t, repo.Results[healthyCheck.ID], 1)
	assert.Len(t, repo.Results[failing.ID], 1)

	// The failure has no history, so it is new: incident plus one batch.
	assert.Equal(t, []string{failing.ID}, opener.opened)
	require.Len(t, notifier.batches, 1)
	require.Len(t, notifier.batches[0], 1)
	assert.Equal(t, failing.ID, notifier.batches[0][0].Check.ID)
}

func TestRunAll_OngoingFailureStaysInBatch(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	failing := repo.Add(serviceCheck("broken", "false"))
	seedResult(t, repo, failing.ID, domain.StatusUnhealthy)
	seedResult(t, repo, failing.ID, domain.StatusUnhealthy)

	orch, opener, notifier := newOrchestrator(repo)

	_, err := orch.RunAll(context.Background())
	require.NoError(t, err)

	// A check that was already unhealthy leaves its open incident
	// untouched, but still rides in the alert batch; whether the batch
	// is sent is the router's throttling decision.
	assert.Empty(t, opener.opened)
	require.Len(t, notifier.batches, 1)
	require.Len(t, notifier.batches[0], 1)
	assert.Equal(t, failing.ID, notifier.batches[0][0].Check.ID)
}

func TestRunAll_FailureAfterRecoveryOpensIncident(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	failing := repo.Add(serviceCheck("flaky", "false"))
	seedResult(t, repo, failing.ID, domain.StatusUnhealthy)
	seedResult(t, repo, failing.ID, domain.StatusHealthy) // newest first

	orch, opener, notifier := newOrchestrator(repo)

	_, err := orch.RunAll(context.Background())
	require.NoError(t, err)

	// The previous result was healthy, so this failure is new again.
	assert.Equal(t, []string{failing.ID}, opener.opened)
	require.Len(t, notifier.batches, 1)
}

func TestRunAll_HonorsNotifyOnFailure(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	silent := serviceCheck("silent", "false")
	silent.NotifyOnFailure = false
	repo.Add(silent)

	orch, opener, notifier := newOrchestrator(repo)

	_, err := orch.RunAll(context.Background())
	require.NoError(t, err)

	// The incident is still recorded, only the alert is suppressed.
	assert.Equal(t, []string{silent.ID}, opener.opened)
	assert.Empty(t, notifier.batches)
}

func TestRunAll_ListErrorAbortsSweep(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	repo.ListErr = assert.AnError

	orch, _, _ := newOrchestrator(repo)

	_, err := orch.RunAll(context.Background())
	assert.Error(t, err)
}

func TestRunCheck_SkipsDisabled(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	disabled := serviceCheck("off", "false")
	disabled.Enabled = false
	repo.Add(disabled)

	orch, opener, notifier := newOrchestrator(repo)

	require.NoError(t, orch.RunCheck(context.Background(), disabled.ID))
	assert.Empty(t, repo.Results[disabled.ID])
	assert.Empty(t, opener.opened)
	assert.Empty(t, notifier.batches)
}

func TestRunCheck_UnhealthyNotifies(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	failing := repo.Add(serviceCheck("broken", "false"))

	orch, opener, notifier := newOrchestrator(repo)

	require.NoError(t, orch.RunCheck(context.Background(), failing.ID))

	assert.Len(t, repo.Results[failing.ID], 1)
	assert.Equal(t, []string{failing.ID}, opener.opened)
	require.Len(t, notifier.batches, 1)
	assert.Len(t, notifier.batches[0], 1)
}

func TestRunCheck_OngoingFailureStillNotifies(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	failing := repo.Add(serviceCheck("broken", "false"))
	seedResult(t, repo, failing.ID, domain.StatusUnhealthy)
	seedResult(t, repo, failing.ID, domain.StatusUnhealthy)

	orch, opener, notifier := newOrchestrator(repo)

	require.NoError(t, orch.RunCheck(context.Background(), failing.ID))

	assert.Empty(t, opener.opened)
	require.Len(t, notifier.batches, 1)
}

func TestRunOne_PersistsWithoutIncidentOrAlert(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	failing := repo.Add(serviceCheck("broken", "false"))

	orch, opener, notifier := newOrchestrator(repo)

	result, err := orch.RunOne(context.Background(), failing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnhealthy, result.Status)

	// The on-demand path persists the result and nothing else.
	assert.Len(t, repo.Results[failing.ID], 1)
	assert.Empty(t, opener.opened)
	assert.Empty(t, notifier.batches)
}

func TestRunOne_UnknownCheck(t *testing.T) {
	orch, _, _ := newOrchestrator(testutil.NewFakeCheckRepo())

	_, err := orch.RunOne(context.Background(), "missing")
	assert.Error(t, err)
}
