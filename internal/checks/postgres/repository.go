// Package postgres provides the PostgreSQL implementation of the
// checks repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Repository implements checks.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const checkColumns = `id, name, kind, enabled, interval_seconds,
	endpoint, timeout_ms, process_keyword, port,
	command, expected_output, restart_command, notify_on_failure,
	created_at, updated_at`

func scanCheck(row pgx.Row, check *domain.HealthCheck) error {
	return row.Scan(
		&check.ID,
		&check.Name,
		&check.Kind,
		&check.Enabled,
		&check.IntervalSeconds,
		&check.Endpoint,
		&check.TimeoutMs,
		&check.ProcessKeyword,
		&check.Port,
		&check.Command,
		&check.ExpectedOutput,
		&check.RestartCommand,
		&check.NotifyOnFailure,
		&check.CreatedAt,
		&check.UpdatedAt,
	)
}

// Create creates a new health check.
func (r *Repository) Create(ctx context.Context, check *domain.HealthCheck) error {
	query := `
		INSERT INTO health_checks (name, kind, enabled, interval_seconds,
			endpoint, timeout_ms, process_keyword, port,
			command, expected_output, restart_command, notify_on_failure)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		check.Name,
		check.Kind,
		check.Enabled,
		check.IntervalSeconds,
		check.Endpoint,
		check.TimeoutMs,
		check.ProcessKeyword,
		check.Port,
		check.Command,
		check.ExpectedOutput,
		check.RestartCommand,
		check.NotifyOnFailure,
	).Scan(&check.ID, &check.CreatedAt, &check.UpdatedAt)
}

// GetByID retrieves a health check by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.HealthCheck, error) {
	query := `SELECT ` + checkColumns + ` FROM health_checks WHERE id = $1`

	var check domain.HealthCheck
	if err := scanCheck(r.db.QueryRow(ctx, query, id), &check); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checks.ErrCheckNotFound
		}
		return nil, fmt.Errorf("get check: %w", err)
	}
	return &check, nil
}

// List retrieves health checks matching the filter.
func (r *Repository) List(ctx context.Context, filter checks.Filter) ([]domain.HealthCheck, error) {
	query := `SELECT ` + checkColumns + ` FROM health_checks WHERE 1=1`
	args := []interface{}{}

	if filter.EnabledOnly {
		query += ` AND enabled = true`
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.HealthCheck, 0)
	for rows.Next() {
		var check domain.HealthCheck
		if err := scanCheck(rows, &check); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		result = append(result, check)
	}
	return result, rows.Err()
}

// Update updates an existing health check.
func (r *Repository) Update(ctx context.Context, check *domain.HealthCheck) error {
	query := `
		UPDATE health_checks
		SET name = $2, kind = $3, enabled = $4, interval_seconds = $5,
			endpoint = $6, timeout_ms = $7, process_keyword = $8, port = $9,
			command = $10, expected_output = $11, restart_command = $12,
			notify_on_failure = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		check.ID,
		check.Name,
		check.Kind,
		check.Enabled,
		check.IntervalSeconds,
		check.Endpoint,
		check.TimeoutMs,
		check.ProcessKeyword,
		check.Port,
		check.Command,
		check.ExpectedOutput,
		check.RestartCommand,
		check.NotifyOnFailure,
	).Scan(&check.CreatedAt, &check.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checks.ErrCheckNotFound
		}
		return fmt.Errorf("update check: %w", err)
	}
	return nil
}

// Delete deletes a health check. Results cascade via the schema.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM health_checks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete check: %w", err)
	}
	if result.RowsAffected() == 0 {
		return checks.ErrCheckNotFound
	}
	return nil
}

// SaveResult appends a probe result.
func (r *Repository) SaveResult(ctx context.Context, result *domain.CheckResult) error {
	query := `
		INSERT INTO check_results (check_id, status, details, cpu_usage, memory_usage, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		result.CheckID,
		result.Status,
		result.Details,
		result.CPUUsage,
		result.MemoryUsage,
		result.ResponseTimeMs,
	).Scan(&result.ID, &result.CreatedAt)
}

// RecentResults returns the newest results for a check, most recent first.
func (r *Repository) RecentResults(ctx context.Context, checkID string, limit int) ([]domain.CheckResult, error) {
	query := `
		SELECT id, check_id, status, details, cpu_usage, memory_usage, response_time_ms, created_at
		FROM check_results
		WHERE check_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// ResultsByCheck returns a page of results plus the total count.
func (r *Repository) ResultsByCheck(ctx context.Context, checkID string, page, limit int) ([]domain.CheckResult, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM check_results WHERE check_id = $1`, checkID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	query := `
		SELECT id, check_id, status, details, cpu_usage, memory_usage, response_time_ms, created_at
		FROM check_results
		WHERE check_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, checkID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results, err := scanResults(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// LatestResults returns the most recent result per check.
func (r *Repository) LatestResults(ctx context.Context) ([]domain.ResultWithCheck, error) {
	query := `
		SELECT DISTINCT ON (cr.check_id)
			cr.id, cr.check_id, cr.status, cr.details, cr.cpu_usage,
			cr.memory_usage, cr.response_time_ms, cr.created_at,
			hc.name, hc.kind
		FROM check_results cr
		JOIN health_checks hc ON hc.id = cr.check_id
		ORDER BY cr.check_id, cr.created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("latest results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ResultWithCheck, 0)
	for rows.Next() {
		var rw domain.ResultWithCheck
		err := rows.Scan(
			&rw.ID,
			&rw.CheckID,
			&rw.Status,
			&rw.Details,
			&rw.CPUUsage,
			&rw.MemoryUsage,
			&rw.ResponseTimeMs,
			&rw.CreatedAt,
			&rw.CheckName,
			&rw.CheckKind,
		)
		if err != nil {
			return nil, fmt.Errorf("scan latest result: %w", err)
		}
		results = append(results, rw)
	}
	return results, rows.Err()
}

func scanResults(rows pgx.Rows) ([]domain.CheckResult, error) {
	results := make([]domain.CheckResult, 0)
	for rows.Next() {
		var result domain.CheckResult
		err := rows.Scan(
			&result.ID,
			&result.CheckID,
			&result.Status,
			&result.Details,
			&result.CPUUsage,
			&result.MemoryUsage,
			&result.ResponseTimeMs,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
