// Package notifications provides subscriber targeting, throttled alert
// routing and subscription management.
package notifications

import (
	"context"
	"errors"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Repository errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrTokenNotFound        = errors.New("token not found")
)

// Repository defines the interface for notification data access.
type Repository interface {
	// Subscriptions
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error

	// Token lookups for the verify/unsubscribe flows.
	GetSubscriptionByVerifyToken(ctx context.Context, token string) (*domain.Subscription, error)
	GetSubscriptionByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscription, error)

	// Subscriber targeting. eventRank is the severity rank of the event
	// (see domain.SeverityRank); only active subscriptions whose
	// threshold rank is <= eventRank are returned.
	SubscribersForCheck(ctx context.Context, checkID string, eventRank int) ([]domain.Subscription, error)
	GlobalSubscribers(ctx context.Context, eventRank int) ([]domain.Subscription, error)

	// Channel configuration (singleton per channel).
	GetEmailConfig(ctx context.Context) (*domain.EmailConfig, error)
	UpdateEmailConfig(ctx context.Context, cfg *domain.EmailConfig) error
	GetWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error)
	UpdateWebhookConfig(ctx context.Context, cfg *domain.WebhookConfig) error

	// Delivery audit trail.
	SaveRecord(ctx context.Context, record *domain.NotificationRecord) error
	ListRecords(ctx context.Context, limit int) ([]domain.NotificationRecord, error)
}
