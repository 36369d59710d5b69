// Package postgres provides the PostgreSQL implementation of the
// notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/notifications"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const subscriptionColumns = `id, email, check_id, severity, active, verify_token, unsubscribe_token, created_at, updated_at`

func scanSubscription(row pgx.Row, sub *domain.Subscription) error {
	return row.Scan(
		&sub.ID,
		&sub.Email,
		&sub.CheckID,
		&sub.Severity,
		&sub.Active,
		&sub.VerifyToken,
		&sub.UnsubscribeToken,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
}

// CreateSubscription creates a new subscription.
func (r *Repository) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, email, check_id, severity, active, verify_token, unsubscribe_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.Email,
		sub.CheckID,
		sub.Severity,
		sub.Active,
		sub.VerifyToken,
		sub.UnsubscribeToken,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if isUniqueViolation(err) {
		return notifications.ErrDuplicateEmail
	}
	return err
}

// isUniqueViolation reports whether err is a unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetSubscriptionByID retrieves a subscription by ID.
func (r *Repository) GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return r.getSubscription(ctx, query, id, notifications.ErrSubscriptionNotFound)
}

// GetSubscriptionByVerifyToken retrieves a pending subscription by its
// verify token.
func (r *Repository) GetSubscriptionByVerifyToken(ctx context.Context, token string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE verify_token = $1`
	return r.getSubscription(ctx, query, token, notifications.ErrTokenNotFound)
}

// GetSubscriptionByUnsubscribeToken retrieves a subscription by its
// unsubscribe token.
func (r *Repository) GetSubscriptionByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE unsubscribe_token = $1`
	return r.getSubscription(ctx, query, token, notifications.ErrTokenNotFound)
}

func (r *Repository) getSubscription(ctx context.Context, query, arg string, notFound error) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := scanSubscription(r.db.QueryRow(ctx, query, arg), &sub); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// ListSubscriptions returns all subscriptions, newest first.
func (r *Repository) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// UpdateSubscription updates an existing subscription.
func (r *Repository) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET email = $2, check_id = $3, severity = $4, active = $5,
			verify_token = $6, unsubscribe_token = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.Email,
		sub.CheckID,
		sub.Severity,
		sub.Active,
		sub.VerifyToken,
		sub.UnsubscribeToken,
	).Scan(&sub.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notifications.ErrSubscriptionNotFound
		}
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription.
func (r *Repository) DeleteSubscription(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrSubscriptionNotFound
	}
	return nil
}

// severityRankExpr maps subscription severity to its targeting rank in
// SQL, mirroring domain.SeverityRank.
const severityRankExpr = `
	CASE severity
		WHEN 'critical' THEN 1
		WHEN 'high' THEN 2
		ELSE 3
	END
`

// SubscribersForCheck returns active subscriptions dedicated to a check
// whose severity threshold matches the event rank.
func (r *Repository) SubscribersForCheck(ctx context.Context, checkID string, eventRank int) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active AND check_id = $1 AND ` + severityRankExpr + ` <= $2
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, checkID, eventRank)
	if err != nil {
		return nil, fmt.Errorf("subscribers for check: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// GlobalSubscribers returns active global subscriptions whose severity
// threshold matches the event rank.
func (r *Repository) GlobalSubscribers(ctx context.Context, eventRank int) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active AND check_id IS NULL AND ` + severityRankExpr + ` <= $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, eventRank)
	if err != nil {
		return nil, fmt.Errorf("global subscribers: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		var sub domain.Subscription
		if err := scanSubscription(rows, &sub); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetEmailConfig returns the email channel configuration, defaulting to
// a disabled channel when none is stored yet.
func (r *Repository) GetEmailConfig(ctx context.Context) (*domain.EmailConfig, error) {
	query := `SELECT enabled, recipients, throttle_minutes, updated_at FROM email_config WHERE id = 1`

	var cfg domain.EmailConfig
	err := r.db.QueryRow(ctx, query).Scan(&cfg.Enabled, &cfg.Recipients, &cfg.ThrottleMinutes, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.EmailConfig{ThrottleMinutes: domain.DefaultThrottleMinutes}, nil
		}
		return nil, fmt.Errorf("get email config: %w", err)
	}
	return &cfg, nil
}

// UpdateEmailConfig replaces the email channel configuration.
func (r *Repository) UpdateEmailConfig(ctx context.Context, cfg *domain.EmailConfig) error {
	query := `
		INSERT INTO email_config (id, enabled, recipients, throttle_minutes)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET enabled = $1, recipients = $2, throttle_minutes = $3, updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.db.QueryRow(ctx, query, cfg.Enabled, cfg.Recipients, cfg.ThrottleMinutes).Scan(&cfg.UpdatedAt); err != nil {
		return fmt.Errorf("update email config: %w", err)
	}
	return nil
}

// GetWebhookConfig returns the webhook channel configuration,
// defaulting to a disabled channel when none is stored yet.
func (r *Repository) GetWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error) {
	query := `SELECT enabled, url, throttle_minutes, updated_at FROM webhook_config WHERE id = 1`

	var cfg domain.WebhookConfig
	err := r.db.QueryRow(ctx, query).Scan(&cfg.Enabled, &cfg.URL, &cfg.ThrottleMinutes, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.WebhookConfig{ThrottleMinutes: domain.DefaultThrottleMinutes}, nil
		}
		return nil, fmt.Errorf("get webhook config: %w", err)
	}
	return &cfg, nil
}

// UpdateWebhookConfig replaces the webhook channel configuration.
func (r *Repository) UpdateWebhookConfig(ctx context.Context, cfg *domain.WebhookConfig) error {
	query := `
		INSERT INTO webhook_config (id, enabled, url, throttle_minutes)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET enabled = $1, url = $2, throttle_minutes = $3, updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.db.QueryRow(ctx, query, cfg.Enabled, cfg.URL, cfg.ThrottleMinutes).Scan(&cfg.UpdatedAt); err != nil {
		return fmt.Errorf("update webhook config: %w", err)
	}
	return nil
}

// SaveRecord appends a delivery record.
func (r *Repository) SaveRecord(ctx context.Context, record *domain.NotificationRecord) error {
	query := `
		INSERT INTO notification_records (type, subject, content, recipients, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		record.Type,
		record.Subject,
		record.Content,
		record.Recipients,
		record.Status,
	).Scan(&record.ID, &record.CreatedAt)
}

// ListRecords returns the most recent delivery records.
func (r *Repository) ListRecords(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	query := `
		SELECT id, type, subject, content, recipients, status, created_at
		FROM notification_records
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list notification records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.NotificationRecord, 0)
	for rows.Next() {
		var record domain.NotificationRecord
		err := rows.Scan(
			&record.ID,
			&record.Type,
			&record.Subject,
			&record.Content,
			&record.Recipients,
			&record.Status,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
