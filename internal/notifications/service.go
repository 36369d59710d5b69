package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Service errors.
var (
	ErrInvalidSeverity = errors.New("invalid subscription severity")
	ErrDuplicateEmail  = errors.New("subscription already exists for this email and check")
)

// Service implements subscription management and channel configuration.
type Service struct {
	repo    Repository
	email   EmailSender
	baseURL string
}

// NewService creates a new notifications service. baseURL is used to
// build verification and unsubscribe links in outgoing mail.
func NewService(repo Repository, email EmailSender, baseURL string) *Service {
	return &Service{
		repo:    repo,
		email:   email,
		baseURL: baseURL,
	}
}

// SubscribeInput carries the fields needed to create a subscription.
type SubscribeInput struct {
	Email    string
	CheckID  *string
	Severity domain.SubscriptionSeverity
}

// Subscribe creates a pending subscription and sends the verification
// email. The subscription stays inactive until the token is confirmed.
func (s *Service) Subscribe(ctx context.Context, input SubscribeInput) (*domain.Subscription, error) {
	severity := input.Severity
	if severity == "" {
		severity = domain.SubscriptionSeverityAll
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeverity, input.Severity)
	}

	verifyToken := uuid.New().String()
	sub := &domain.Subscription{
		ID:               uuid.New().String(),
		Email:            input.Email,
		CheckID:          input.CheckID,
		Severity:         severity,
		Active:           false,
		VerifyToken:      &verifyToken,
		UnsubscribeToken: uuid.New().String(),
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if err := s.sendVerificationEmail(ctx, sub, verifyToken); err != nil {
		// The subscription exists and can still be verified later via a
		// re-subscribe, so the send failure is not fatal.
		slog.Error("failed to send verification email",
			"subscription_id", sub.ID,
			"error", err,
		)
	}

	return sub, nil
}

// Verify activates the subscription matching the verify token. The
// token is single use: verification clears it and rotates the
// unsubscribe token.
func (s *Service) Verify(ctx context.Context, token string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByVerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	sub.Active = true
	sub.VerifyToken = nil
	sub.UnsubscribeToken = uuid.New().String()

	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	slog.Info("subscription verified", "subscription_id", sub.ID, "email", sub.Email)
	return sub, nil
}

// Unsubscribe deactivates the subscription matching the unsubscribe
// token. The row is kept for the audit trail.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	sub, err := s.repo.GetSubscriptionByUnsubscribeToken(ctx, token)
	if err != nil {
		return err
	}

	sub.Active = false
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	slog.Info("subscription deactivated", "subscription_id", sub.ID, "email", sub.Email)
	return nil
}

// ListSubscriptions returns all subscriptions.
func (s *Service) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	return s.repo.ListSubscriptions(ctx)
}

// DeleteSubscription removes a subscription entirely.
func (s *Service) DeleteSubscription(ctx context.Context, id string) error {
	return s.repo.DeleteSubscription(ctx, id)
}

// EmailConfig returns the email channel configuration.
func (s *Service) EmailConfig(ctx context.Context) (*domain.EmailConfig, error) {
	return s.repo.GetEmailConfig(ctx)
}

// UpdateEmailConfig replaces the email channel configuration.
func (s *Service) UpdateEmailConfig(ctx context.Context, cfg *domain.EmailConfig) error {
	if cfg.ThrottleMinutes <= 0 {
		cfg.ThrottleMinutes = domain.DefaultThrottleMinutes
	}
	return s.repo.UpdateEmailConfig(ctx, cfg)
}

// WebhookConfig returns the webhook channel configuration.
func (s *Service) WebhookConfig(ctx context.Context) (*domain.WebhookConfig, error) {
	return s.repo.GetWebhookConfig(ctx)
}

// UpdateWebhookConfig replaces the webhook channel configuration.
func (s *Service) UpdateWebhookConfig(ctx context.Context, cfg *domain.WebhookConfig) error {
	if cfg.ThrottleMinutes <= 0 {
		cfg.ThrottleMinutes = domain.DefaultThrottleMinutes
	}
	return s.repo.UpdateWebhookConfig(ctx, cfg)
}

// Records returns the most recent delivery records.
func (s *Service) Records(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListRecords(ctx, limit)
}

func (s *Service) sendVerificationEmail(ctx context.Context, sub *domain.Subscription, token string) error {
	scope := "all checks"
	if sub.CheckID != nil {
		scope = "check " + *sub.CheckID
	}

	body := fmt.Sprintf(
		"Please confirm your alert subscription for %s.\n\n"+
			"Confirm: %s/api/v1/notifications/subscriptions/verify/%s\n\n"+
			"If you did not request this subscription you can ignore this message.",
		scope, s.baseURL, token,
	)

	return s.email.Send(ctx, []string{sub.Email}, "Confirm your alert subscription", body)
}
