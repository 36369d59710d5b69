package checks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/testutil"
)

type fakeScheduler struct {
	scheduled   []string
	unscheduled []string
}

func (f *fakeScheduler) Schedule(check *domain.HealthCheck) {
	f.scheduled = append(f.scheduled, check.ID)
}

func (f *fakeScheduler) Unschedule(checkID string) {
	f.unscheduled = append(f.unscheduled, checkID)
}

func TestCreate(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	sched := &fakeScheduler{}
	service := checks.NewService(repo, sched)

	check := testutil.CheckOfKind(domain.CheckKindAPI, "payments")
	created, err := service.Create(context.Background(), check)
	require.NoError(t, err)

	assert.Contains(t, repo.Checks, created.ID)
	assert.Equal(t, []string{created.ID}, sched.scheduled)
}

func TestCreate_DisabledIsNotScheduled(t *testing.T) {
	sched := &fakeScheduler{}
	service := checks.NewService(testutil.NewFakeCheckRepo(), sched)

	check := testutil.CheckOfKind(domain.CheckKindAPI, "payments")
	check.Enabled = false

	_, err := service.Create(context.Background(), check)
	require.NoError(t, err)
	assert.Empty(t, sched.scheduled)
}

func TestCreate_Validation(t *testing.T) {
	service := checks.NewService(testutil.NewFakeCheckRepo(), nil)

	t.Run("invalid kind", func(t *testing.T) {
		check := testutil.CheckOfKind(domain.CheckKind("CRONJOB"), "nope")
		_, err := service.Create(context.Background(), check)
		assert.ErrorContains(t, err, "invalid check kind")
	})

	t.Run("interval too short", func(t *testing.T) {
		check := testutil.CheckOfKind(domain.CheckKindAPI, "fast")
		check.IntervalSeconds = domain.MinCheckInterval - 1
		_, err := service.Create(context.Background(), check)
		assert.ErrorContains(t, err, "interval must be at least")
	})
}

func TestUpdate_KeepsSchedulerInStep(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	sched := &fakeScheduler{}
	service := checks.NewService(repo, sched)

	check := repo.Add(testutil.CheckOfKind(domain.CheckKindAPI, "payments"))

	// Disabling stops the job.
	check.Enabled = false
	_, err := service.Update(context.Background(), check)
	require.NoError(t, err)
	assert.Equal(t, []string{check.ID}, sched.unscheduled)

	// Re-enabling schedules it again.
	check.Enabled = true
	_, err = service.Update(context.Background(), check)
	require.NoError(t, err)
	assert.Equal(t, []string{check.ID}, sched.scheduled)
}

func TestUpdate_RejectsShortInterval(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	service := checks.NewService(repo, nil)

	check := repo.Add(testutil.CheckOfKind(domain.CheckKindAPI, "payments"))
	check.IntervalSeconds = 5

	_, err := service.Update(context.Background(), check)
	assert.ErrorContains(t, err, "interval must be at least")
}

func TestDelete(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	sched := &fakeScheduler{}
	service := checks.NewService(repo, sched)

	check := repo.Add(testutil.CheckOfKind(domain.CheckKindAPI, "payments"))

	require.NoError(t, service.Delete(context.Background(), check.ID))
	assert.NotContains(t, repo.Checks, check.ID)
	assert.Equal(t, []string{check.ID}, sched.unscheduled)
}

func TestDelete_NotFound(t *testing.T) {
	service := checks.NewService(testutil.NewFakeCheckRepo(), &fakeScheduler{})

	err := service.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, checks.ErrCheckNotFound)
}

func TestResults_UnknownCheck(t *testing.T) {
	service := checks.NewService(testutil.NewFakeCheckRepo(), nil)

	_, _, err := service.Results(context.Background(), "missing", 1, 20)
	assert.ErrorIs(t, err, checks.ErrCheckNotFound)
}
