// Package checks provides health check management and result storage.
package checks

import (
	"context"
	"errors"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Repository errors.
var (
	ErrCheckNotFound  = errors.New("health check not found")
	ErrResultNotFound = errors.New("check result not found")
)

// Filter represents filter criteria for listing checks.
type Filter struct {
	EnabledOnly bool
	Kind        *domain.CheckKind
}

// Repository defines the interface for check data access.
type Repository interface {
	Create(ctx context.Context, check *domain.HealthCheck) error
	GetByID(ctx context.Context, id string) (*domain.HealthCheck, error)
	List(ctx context.Context, filter Filter) ([]domain.HealthCheck, error)
	Update(ctx context.Context, check *domain.HealthCheck) error
	Delete(ctx context.Context, id string) error

	// SaveResult appends an immutable probe result.
	SaveResult(ctx context.Context, result *domain.CheckResult) error

	// RecentResults returns the newest results for a check, most
	// recent first.
	RecentResults(ctx context.Context, checkID string, limit int) ([]domain.CheckResult, error)

	// ResultsByCheck returns a page of results plus the total count.
	ResultsByCheck(ctx context.Context, checkID string, page, limit int) ([]domain.CheckResult, int, error)

	// LatestResults returns the most recent result per check, joined
	// with check info.
	LatestResults(ctx context.Context) ([]domain.ResultWithCheck, error)
}
