package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/testutil"
)

type countingRunner struct {
	mu        sync.Mutex
	runChecks []string
	runAlls   int
	block     chan struct{} // when set, RunCheck waits on it
}

func (r *countingRunner) RunCheck(_ context.Context, checkID string) error {
	r.mu.Lock()
	r.runChecks = append(r.runChecks, checkID)
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	return nil
}

func (r *countingRunner) RunAll(context.Context) ([]domain.CheckResult, error) {
	r.mu.Lock()
	r.runAlls++
	r.mu.Unlock()
	return nil, nil
}

func TestPeriodFor(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		want     string
	}{
		{"five minutes", 300, "*/5 * * * *"},
		{"one minute", 60, "*/1 * * * *"},
		{"half hour", 1800, "*/30 * * * *"},
		{"not whole minutes falls back", 90, "*/5 * * * *"},
		{"zero falls back", 0, "*/5 * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := &domain.HealthCheck{ID: "c1", IntervalSeconds: tt.interval}
			assert.Equal(t, tt.want, periodFor(check))
		})
	}
}

func TestSchedule_AddReplaceAndSkip(t *testing.T) {
	s := New(&countingRunner{}, testutil.NewFakeCheckRepo())

	check := testutil.CheckOfKind(domain.CheckKindAPI, "payments")
	check.IntervalSeconds = 300

	s.Schedule(check)
	require.Contains(t, s.jobs, check.ID)
	first := s.jobs[check.ID]

	// Same interval: the existing entry stays.
	s.Schedule(check)
	assert.Equal(t, first, s.jobs[check.ID])

	// Changed interval: the entry is replaced.
	check.IntervalSeconds = 600
	s.Schedule(check)
	assert.NotEqual(t, first, s.jobs[check.ID])
	assert.Equal(t, 600, s.intervals[check.ID])
}

func TestUnschedule(t *testing.T) {
	s := New(&countingRunner{}, testutil.NewFakeCheckRepo())

	check := testutil.CheckOfKind(domain.CheckKindAPI, "payments")
	s.Schedule(check)
	require.Contains(t, s.jobs, check.ID)

	s.Unschedule(check.ID)
	assert.NotContains(t, s.jobs, check.ID)
	assert.NotContains(t, s.intervals, check.ID)

	// Unknown IDs are a no-op.
	s.Unschedule("missing")
}

func TestRunJob_SingleFlight(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	s := New(runner, testutil.NewFakeCheckRepo())

	done := make(chan struct{})
	go func() {
		s.runJob("c1")
		close(done)
	}()

	// Wait for the first run to be in flight.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.inFlight["c1"]
	}, time.Second, 5*time.Millisecond)

	// A second tick of the same check is skipped, another check runs.
	s.runJob("c1")
	s.runJob("c2")

	close(runner.block)
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"c1", "c2"}, runner.runChecks)
}

func TestFallbackSweep_Guarded(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, testutil.NewFakeCheckRepo())

	s.sweeping.Store(true)
	s.fallbackSweep()
	assert.Equal(t, 0, runner.runAlls)

	s.sweeping.Store(false)
	s.fallbackSweep()
	assert.Equal(t, 1, runner.runAlls)
	// The guard is released afterwards.
	assert.False(t, s.sweeping.Load())
}

func TestReconcile(t *testing.T) {
	repo := testutil.NewFakeCheckRepo()
	enabled := repo.Add(testutil.CheckOfKind(domain.CheckKindAPI, "payments"))

	s := New(&countingRunner{}, repo)

	// A job for a check that no longer exists.
	stale := testutil.CheckOfKind(domain.CheckKindAPI, "gone")
	s.Schedule(stale)

	s.reconcile()

	assert.Contains(t, s.jobs, enabled.ID)
	assert.NotContains(t, s.jobs, stale.ID)
}
