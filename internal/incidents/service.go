package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// ErrInvalidTransition is returned for status changes out of the
// resolved state. Resolved is terminal; a later failure opens a new
// incident instead.
var ErrInvalidTransition = errors.New("invalid incident status transition")

// ResolutionNotifier delivers resolution notifications. Implemented by
// the notification router; nil disables them.
type ResolutionNotifier interface {
	NotifyResolved(ctx context.Context, incident *domain.Incident) error
}

// Service implements the incident lifecycle. It is the only component
// that performs incident status transitions, and it preserves the
// invariant of at most one active incident per check.
type Service struct {
	repo     Repository
	notifier ResolutionNotifier
}

// NewService creates a new incident service.
func NewService(repo Repository, notifier ResolutionNotifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// OpenOrAppend records a failure of a check: appends a "still
// unhealthy" event to the active incident if one exists, otherwise
// opens a new incident with severity derived from the check.
func (s *Service) OpenOrAppend(ctx context.Context, check *domain.HealthCheck, details string) (*domain.Incident, error) {
	active, err := s.repo.FindActiveByCheck(ctx, check.ID)
	if err == nil {
		event := &domain.IncidentEvent{
			IncidentID: active.ID,
			Message:    fmt.Sprintf("Still unhealthy: %s", details),
		}
		if err := s.repo.AddEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("append incident event: %w", err)
		}
		return active, nil
	}
	if !errors.Is(err, ErrIncidentNotFound) {
		return nil, fmt.Errorf("find active incident: %w", err)
	}

	incident := &domain.Incident{
		CheckID:  check.ID,
		Title:    fmt.Sprintf("%s is unhealthy", check.Name),
		Status:   domain.IncidentStatusInvestigating,
		Severity: domain.SeverityForCheck(check),
		Details:  details,
	}
	if err := s.repo.Create(ctx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	event := &domain.IncidentEvent{
		IncidentID: incident.ID,
		Message:    fmt.Sprintf("Incident created: %s", details),
	}
	if err := s.repo.AddEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("append incident event: %w", err)
	}

	slog.Info("incident opened",
		"incident_id", incident.ID,
		"check_id", check.ID,
		"severity", incident.Severity,
	)
	return incident, nil
}

// UpdateInput is a partial incident update. Nil fields are left unchanged.
type UpdateInput struct {
	Status   *domain.IncidentStatus
	Severity *domain.IncidentSeverity
	Title    *string
	Details  *string
}

// Update applies allowed field changes. A transition into resolved
// stamps ResolvedAt exactly once and triggers a resolution
// notification. Every update appends a summary event of the changed
// fields.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*domain.Incident, error) {
	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	resolvedNow := false

	if input.Status != nil && *input.Status != incident.Status {
		if !input.Status.IsValid() {
			return nil, fmt.Errorf("invalid incident status: %s", *input.Status)
		}
		if !incident.Status.IsActive() {
			return nil, ErrInvalidTransition
		}
		changed = append(changed, fmt.Sprintf("status %s -> %s", incident.Status, *input.Status))
		incident.Status = *input.Status
		if *input.Status == domain.IncidentStatusResolved {
			now := time.Now()
			incident.ResolvedAt = &now
			resolvedNow = true
		}
	}
	if input.Severity != nil && *input.Severity != incident.Severity {
		if !input.Severity.IsValid() {
			return nil, fmt.Errorf("invalid incident severity: %s", *input.Severity)
		}
		changed = append(changed, fmt.Sprintf("severity %s -> %s", incident.Severity, *input.Severity))
		incident.Severity = *input.Severity
	}
	if input.Title != nil && *input.Title != incident.Title {
		changed = append(changed, "title updated")
		incident.Title = *input.Title
	}
	if input.Details != nil && *input.Details != incident.Details {
		changed = append(changed, "details updated")
		incident.Details = *input.Details
	}

	if err := s.repo.Update(ctx, incident); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	message := "Incident updated"
	if len(changed) > 0 {
		message = "Incident updated: " + strings.Join(changed, ", ")
	}
	if err := s.repo.AddEvent(ctx, &domain.IncidentEvent{
		IncidentID: incident.ID,
		Message:    message,
	}); err != nil {
		return nil, fmt.Errorf("append incident event: %w", err)
	}

	if resolvedNow && s.notifier != nil {
		if err := s.notifier.NotifyResolved(ctx, incident); err != nil {
			slog.Error("failed to send resolution notification",
				"incident_id", incident.ID,
				"error", err,
			)
		}
	}

	return incident, nil
}

// Resolve transitions an incident into the resolved state with an
// explicit event message. Resolving an already resolved incident keeps
// the original ResolvedAt and only appends the event.
func (s *Service) Resolve(ctx context.Context, id, message string) (*domain.Incident, error) {
	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if incident.Status == domain.IncidentStatusResolved {
		if err := s.appendResolveEvent(ctx, incident.ID, message); err != nil {
			return nil, err
		}
		return incident, nil
	}

	status := domain.IncidentStatusResolved
	incident, err = s.Update(ctx, id, UpdateInput{Status: &status})
	if err != nil {
		return nil, err
	}
	if err := s.appendResolveEvent(ctx, incident.ID, message); err != nil {
		return nil, err
	}
	return incident, nil
}

func (s *Service) appendResolveEvent(ctx context.Context, incidentID, message string) error {
	if message == "" {
		message = "Incident resolved"
	}
	if err := s.repo.AddEvent(ctx, &domain.IncidentEvent{
		IncidentID: incidentID,
		Message:    message,
	}); err != nil {
		return fmt.Errorf("append incident event: %w", err)
	}
	return nil
}

// Get retrieves an incident by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves incidents with pagination and optional status filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.Incident, int, error) {
	return s.repo.List(ctx, filter)
}

// Events returns the audit trail of an incident.
func (s *Service) Events(ctx context.Context, incidentID string) ([]domain.IncidentEvent, error) {
	if _, err := s.repo.GetByID(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.GetEvents(ctx, incidentID)
}

// Metrics returns aggregate incident counts.
func (s *Service) Metrics(ctx context.Context) (*domain.IncidentMetrics, error) {
	return s.repo.GetMetrics(ctx)
}

// History returns per-day incident counts for the last N days.
func (s *Service) History(ctx context.Context, days int) ([]HistoryEntry, error) {
	return s.repo.GetHistory(ctx, days)
}
