// Package incidents owns the incident state machine and its audit trail.
package incidents

import (
	"context"
	"errors"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Repository errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
)

// Filter represents filter criteria for listing incidents.
type Filter struct {
	Status *domain.IncidentStatus
	Page   int
	Limit  int
}

// HistoryEntry is a per-day incident count used by the history view.
type HistoryEntry struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Repository defines the interface for incident data access.
type Repository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	List(ctx context.Context, filter Filter) ([]domain.Incident, int, error)
	Update(ctx context.Context, incident *domain.Incident) error

	// FindActiveByCheck returns the single non-resolved incident for a
	// check, or ErrIncidentNotFound.
	FindActiveByCheck(ctx context.Context, checkID string) (*domain.Incident, error)
	ListActive(ctx context.Context) ([]domain.Incident, error)

	AddEvent(ctx context.Context, event *domain.IncidentEvent) error
	GetEvents(ctx context.Context, incidentID string) ([]domain.IncidentEvent, error)

	GetMetrics(ctx context.Context) (*domain.IncidentMetrics, error)
	GetHistory(ctx context.Context, days int) ([]HistoryEntry, error)
}
