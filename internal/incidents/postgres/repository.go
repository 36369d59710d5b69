// Package postgres provides the PostgreSQL implementation of the
// incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/incidents"
)

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `id, check_id, title, status, severity, details, created_at, updated_at, resolved_at`

func scanIncident(row pgx.Row, incident *domain.Incident) error {
	return row.Scan(
		&incident.ID,
		&incident.CheckID,
		&incident.Title,
		&incident.Status,
		&incident.Severity,
		&incident.Details,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ResolvedAt,
	)
}

// Create creates a new incident.
func (r *Repository) Create(ctx context.Context, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (check_id, title, status, severity, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		incident.CheckID,
		incident.Title,
		incident.Status,
		incident.Severity,
		incident.Details,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
}

// GetByID retrieves an incident by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	var incident domain.Incident
	if err := scanIncident(r.db.QueryRow(ctx, query, id), &incident); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return &incident, nil
}

// List retrieves incidents with pagination and optional status filter.
func (r *Repository) List(ctx context.Context, filter incidents.Filter) ([]domain.Incident, int, error) {
	countQuery := `SELECT COUNT(*) FROM incidents`
	listQuery := `SELECT ` + incidentColumns + ` FROM incidents`
	args := []interface{}{}

	if filter.Status != nil {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		args = append(args, *filter.Status)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		if err := scanIncident(rows, &incident); err != nil {
			return nil, 0, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, incident)
	}
	return result, total, rows.Err()
}

// Update updates an existing incident.
func (r *Repository) Update(ctx context.Context, incident *domain.Incident) error {
	query := `
		UPDATE incidents
		SET title = $2, status = $3, severity = $4, details = $5,
			resolved_at = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		incident.ID,
		incident.Title,
		incident.Status,
		incident.Severity,
		incident.Details,
		incident.ResolvedAt,
	).Scan(&incident.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return incidents.ErrIncidentNotFound
		}
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

// FindActiveByCheck returns the non-resolved incident for a check.
func (r *Repository) FindActiveByCheck(ctx context.Context, checkID string) (*domain.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE check_id = $1 AND status != 'resolved'
		ORDER BY created_at DESC
		LIMIT 1
	`
	var incident domain.Incident
	if err := scanIncident(r.db.QueryRow(ctx, query, checkID), &incident); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("find active incident: %w", err)
	}
	return &incident, nil
}

// ListActive returns all non-resolved incidents.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE status != 'resolved'
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		if err := scanIncident(rows, &incident); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}

// AddEvent appends an incident event.
func (r *Repository) AddEvent(ctx context.Context, event *domain.IncidentEvent) error {
	query := `
		INSERT INTO incident_events (incident_id, message)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query, event.IncidentID, event.Message).
		Scan(&event.ID, &event.CreatedAt)
}

// GetEvents returns the audit trail of an incident, oldest first.
func (r *Repository) GetEvents(ctx context.Context, incidentID string) ([]domain.IncidentEvent, error) {
	query := `
		SELECT id, incident_id, message, created_at
		FROM incident_events
		WHERE incident_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("get incident events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.IncidentEvent, 0)
	for rows.Next() {
		var event domain.IncidentEvent
		if err := rows.Scan(&event.ID, &event.IncidentID, &event.Message, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetMetrics returns aggregate incident counts.
func (r *Repository) GetMetrics(ctx context.Context) (*domain.IncidentMetrics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status != 'resolved'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE severity = 'critical')
		FROM incidents
	`
	var m domain.IncidentMetrics
	if err := r.db.QueryRow(ctx, query).Scan(&m.Total, &m.Active, &m.Resolved, &m.Critical); err != nil {
		return nil, fmt.Errorf("incident metrics: %w", err)
	}
	return &m, nil
}

// GetHistory returns per-day incident counts for the last N days.
func (r *Repository) GetHistory(ctx context.Context, days int) ([]incidents.HistoryEntry, error) {
	query := `
		SELECT to_char(created_at::date, 'YYYY-MM-DD'), COUNT(*)
		FROM incidents
		WHERE created_at >= NOW() - make_interval(days => $1)
		GROUP BY created_at::date
		ORDER BY created_at::date
	`
	rows, err := r.db.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("incident history: %w", err)
	}
	defer rows.Close()

	entries := make([]incidents.HistoryEntry, 0)
	for rows.Next() {
		var entry incidents.HistoryEntry
		if err := rows.Scan(&entry.Date, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
