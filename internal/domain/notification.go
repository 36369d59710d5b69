package domain

import "time"

// NotificationType identifies the delivery channel of a record.
type NotificationType string

// Notification types.
const (
	NotificationTypeEmail   NotificationType = "email"
	NotificationTypeWebhook NotificationType = "webhook"
)

// NotificationStatus is the outcome of a delivery attempt.
type NotificationStatus string

// Notification statuses.
const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// NotificationRecord is an append-only audit entry of one delivery
// attempt to one recipient group.
type NotificationRecord struct {
	ID         string             `json:"id"`
	Type       NotificationType   `json:"type"`
	Subject    string             `json:"subject"`
	Content    string             `json:"content"`
	Recipients []string           `json:"recipients"`
	Status     NotificationStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Default minimum gap between unhealthy-triggered notifications.
const DefaultThrottleMinutes = 60

// EmailConfig is the singleton configuration of the email channel.
type EmailConfig struct {
	Enabled         bool      `json:"enabled"`
	Recipients      []string  `json:"recipients"`
	ThrottleMinutes int       `json:"throttle_minutes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WebhookConfig is the singleton configuration of the webhook channel.
type WebhookConfig struct {
	Enabled         bool      `json:"enabled"`
	URL             string    `json:"url"`
	ThrottleMinutes int       `json:"throttle_minutes"`
	UpdatedAt       time.Time `json:"updated_at"`
}
