package checks

import (
	"context"
	"fmt"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// JobScheduler is the scheduling side-effect hook for check mutations.
// Implemented by the scheduler; a nil scheduler disables the hook.
type JobScheduler interface {
	Schedule(check *domain.HealthCheck)
	Unschedule(checkID string)
}

// Service implements check management. Mutations keep the scheduler's
// job table in step: enabling a check schedules it, disabling or
// deleting it stops the job.
type Service struct {
	repo  Repository
	sched JobScheduler
}

// NewService creates a new check service.
func NewService(repo Repository, sched JobScheduler) *Service {
	return &Service{repo: repo, sched: sched}
}

// Create validates and persists a new check and schedules it when enabled.
func (s *Service) Create(ctx context.Context, check *domain.HealthCheck) (*domain.HealthCheck, error) {
	if !check.Kind.IsValid() {
		return nil, fmt.Errorf("invalid check kind: %s", check.Kind)
	}
	if check.IntervalSeconds < domain.MinCheckInterval {
		return nil, fmt.Errorf("interval must be at least %d seconds", domain.MinCheckInterval)
	}

	if err := s.repo.Create(ctx, check); err != nil {
		return nil, fmt.Errorf("create check: %w", err)
	}

	if check.Enabled && s.sched != nil {
		s.sched.Schedule(check)
	}
	return check, nil
}

// Get retrieves a check by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.HealthCheck, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves checks matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.HealthCheck, error) {
	return s.repo.List(ctx, filter)
}

// Update persists changes to a check and reschedules or stops its job.
func (s *Service) Update(ctx context.Context, check *domain.HealthCheck) (*domain.HealthCheck, error) {
	if check.IntervalSeconds < domain.MinCheckInterval {
		return nil, fmt.Errorf("interval must be at least %d seconds", domain.MinCheckInterval)
	}

	if err := s.repo.Update(ctx, check); err != nil {
		return nil, fmt.Errorf("update check: %w", err)
	}

	if s.sched != nil {
		if check.Enabled {
			s.sched.Schedule(check)
		} else {
			s.sched.Unschedule(check.ID)
		}
	}
	return check, nil
}

// Delete removes a check and stops its scheduled job.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.sched != nil {
		s.sched.Unschedule(id)
	}
	return nil
}

// Results returns a page of results for a check.
func (s *Service) Results(ctx context.Context, checkID string, page, limit int) ([]domain.CheckResult, int, error) {
	if _, err := s.repo.GetByID(ctx, checkID); err != nil {
		return nil, 0, err
	}
	return s.repo.ResultsByCheck(ctx, checkID, page, limit)
}

// LatestResults returns the most recent result for every check.
func (s *Service) LatestResults(ctx context.Context) ([]domain.ResultWithCheck, error) {
	return s.repo.LatestResults(ctx)
}
