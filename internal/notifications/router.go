package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// EmailSender delivers one message to a recipient group.
type EmailSender interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// WebhookSender posts a structured payload to a webhook URL.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload WebhookPayload) error
}

// FailedCheck pairs an unhealthy result with its check.
type FailedCheck struct {
	Check  domain.HealthCheck
	Result domain.CheckResult
}

// WebhookPayload is the JSON body posted to the webhook channel. The
// webhook is all-or-nothing per batch: one payload regardless of
// subscriber targeting.
type WebhookPayload struct {
	Event     string           `json:"event"`
	Severity  string           `json:"severity"`
	Failures  []WebhookFailure `json:"failures,omitempty"`
	Incident  *domain.Incident `json:"incident,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// WebhookFailure is one failing check inside a webhook payload.
type WebhookFailure struct {
	CheckID   string `json:"check_id"`
	CheckName string `json:"check_name"`
	Kind      string `json:"kind"`
	Details   string `json:"details"`
}

// recipientGroup is one render-once/send-once unit.
type recipientGroup struct {
	emails   []string
	failures []FailedCheck
	scope    string // "global", "check:<id>" or "fallback", for logging
}

// Router computes recipient sets per severity and subscription, and
// dispatches through the delivery channels with throttling. It is the
// only component that decides recipient sets and records delivery
// outcomes.
type Router struct {
	repo     Repository
	email    EmailSender
	webhook  WebhookSender
	renderer *Renderer

	mu          sync.Mutex
	lastAlertAt time.Time
	now         func() time.Time
}

// NewRouter creates a new notification router.
func NewRouter(repo Repository, email EmailSender, webhook WebhookSender, renderer *Renderer) *Router {
	return &Router{
		repo:     repo,
		email:    email,
		webhook:  webhook,
		renderer: renderer,
		now:      time.Now,
	}
}

// NotifyUnhealthy sends alert notifications for a batch of unhealthy
// results. Subject to the unhealthy throttle: inside the throttle
// window the whole batch is silently skipped, never partially sent.
// Delivery failures are recorded per group and do not block other
// groups.
func (r *Router) NotifyUnhealthy(ctx context.Context, failures []FailedCheck) error {
	if len(failures) == 0 {
		return nil
	}

	emailCfg, err := r.repo.GetEmailConfig(ctx)
	if err != nil {
		return fmt.Errorf("get email config: %w", err)
	}

	throttle := throttleDuration(emailCfg.ThrottleMinutes)
	if !r.shouldNotify(throttle) {
		recordAlertThrottled()
		slog.Debug("alert notification throttled",
			"failures", len(failures),
			"throttle", throttle,
		)
		return nil
	}

	severity := batchSeverity(failures)
	rank := domain.RankForIncidentSeverity(severity)

	groups, err := r.buildGroups(ctx, failures, rank)
	if err != nil {
		return err
	}

	// No subscriber matched anywhere: fall back to the static channel
	// recipients when the email channel is enabled.
	if len(groups) == 0 && emailCfg.Enabled && len(emailCfg.Recipients) > 0 {
		groups = append(groups, recipientGroup{
			emails:   emailCfg.Recipients,
			failures: failures,
			scope:    "fallback",
		})
	}

	for _, group := range groups {
		r.sendAlertToGroup(ctx, group, severity)
	}

	r.sendWebhook(ctx, WebhookPayload{
		Event:     "checks.unhealthy",
		Severity:  string(severity),
		Failures:  webhookFailures(failures),
		Timestamp: r.now(),
	})

	r.markNotified()

	slog.Info("alert notifications dispatched",
		"failures", len(failures),
		"severity", severity,
		"groups", len(groups),
	)
	return nil
}

// NotifyResolved sends a resolution notification for an incident. It
// targets the subscribers of the incident's own check and is not
// subject to the unhealthy throttle.
func (r *Router) NotifyResolved(ctx context.Context, incident *domain.Incident) error {
	rank := domain.RankForIncidentSeverity(incident.Severity)

	emails, err := r.resolvedRecipients(ctx, incident.CheckID, rank)
	if err != nil {
		return err
	}

	if len(emails) > 0 {
		subject, body, err := r.renderer.RenderResolved(incident)
		if err != nil {
			return fmt.Errorf("render resolution notification: %w", err)
		}
		r.deliverEmail(ctx, emails, subject, body)
	}

	r.sendWebhook(ctx, WebhookPayload{
		Event:     "incident.resolved",
		Severity:  string(incident.Severity),
		Incident:  incident,
		Timestamp: r.now(),
	})
	return nil
}

// shouldNotify reports whether enough time has elapsed since the last
// unhealthy-triggered notification. Always true when none was sent yet.
func (r *Router) shouldNotify(throttle time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastAlertAt.IsZero() {
		return true
	}
	return r.now().Sub(r.lastAlertAt) >= throttle
}

func (r *Router) markNotified() {
	r.mu.Lock()
	r.lastAlertAt = r.now()
	r.mu.Unlock()
}

// batchSeverity derives one severity for a whole batch: the highest
// check-derived severity wins; more than 3 failures escalate to
// critical; otherwise any failure is high.
func batchSeverity(failures []FailedCheck) domain.IncidentSeverity {
	for i := range failures {
		if domain.SeverityForCheck(&failures[i].Check) == domain.IncidentSeverityCritical {
			return domain.IncidentSeverityCritical
		}
	}
	if len(failures) > 3 {
		return domain.IncidentSeverityCritical
	}
	if len(failures) > 0 {
		return domain.IncidentSeverityHigh
	}
	return domain.IncidentSeverityLow
}

// buildGroups assembles the recipient groups: one group of global
// subscribers covering the whole batch, plus one group per failing
// check that has dedicated subscribers.
func (r *Router) buildGroups(ctx context.Context, failures []FailedCheck, rank int) ([]recipientGroup, error) {
	var groups []recipientGroup

	globals, err := r.repo.GlobalSubscribers(ctx, rank)
	if err != nil {
		return nil, fmt.Errorf("global subscribers: %w", err)
	}
	if emails := subscriberEmails(globals); len(emails) > 0 {
		groups = append(groups, recipientGroup{emails: emails, failures: failures, scope: "global"})
	}

	for _, failure := range failures {
		subs, err := r.repo.SubscribersForCheck(ctx, failure.Check.ID, rank)
		if err != nil {
			return nil, fmt.Errorf("subscribers for check %s: %w", failure.Check.ID, err)
		}
		if emails := subscriberEmails(subs); len(emails) > 0 {
			groups = append(groups, recipientGroup{
				emails:   emails,
				failures: []FailedCheck{failure},
				scope:    "check:" + failure.Check.ID,
			})
		}
	}

	return groups, nil
}

func (r *Router) resolvedRecipients(ctx context.Context, checkID string, rank int) ([]string, error) {
	dedicated, err := r.repo.SubscribersForCheck(ctx, checkID, rank)
	if err != nil {
		return nil, fmt.Errorf("subscribers for check %s: %w", checkID, err)
	}
	globals, err := r.repo.GlobalSubscribers(ctx, rank)
	if err != nil {
		return nil, fmt.Errorf("global subscribers: %w", err)
	}

	emails := subscriberEmails(append(dedicated, globals...))
	if len(emails) > 0 {
		return emails, nil
	}

	emailCfg, err := r.repo.GetEmailConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("get email config: %w", err)
	}
	if emailCfg.Enabled {
		return emailCfg.Recipients, nil
	}
	return nil, nil
}

// sendAlertToGroup renders once for the group and delivers, recording
// the attempt either way.
func (r *Router) sendAlertToGroup(ctx context.Context, group recipientGroup, severity domain.IncidentSeverity) {
	subject, body, err := r.renderer.RenderAlert(group.failures, severity)
	if err != nil {
		slog.Error("failed to render alert notification", "scope", group.scope, "error", err)
		return
	}
	r.deliverEmail(ctx, group.emails, subject, body)
}

func (r *Router) deliverEmail(ctx context.Context, recipients []string, subject, body string) {
	start := time.Now()
	err := r.email.Send(ctx, recipients, subject, body)
	recordSendDuration(string(domain.NotificationTypeEmail), time.Since(start))

	status := domain.NotificationStatusSent
	if err != nil {
		status = domain.NotificationStatusFailed
		slog.Error("failed to send email notification",
			"recipients", len(recipients),
			"error", err,
		)
	}
	recordNotificationSent(string(domain.NotificationTypeEmail), string(status))

	record := &domain.NotificationRecord{
		Type:       domain.NotificationTypeEmail,
		Subject:    subject,
		Content:    body,
		Recipients: recipients,
		Status:     status,
	}
	if err := r.repo.SaveRecord(ctx, record); err != nil {
		slog.Error("failed to save notification record", "error", err)
	}
}

func (r *Router) sendWebhook(ctx context.Context, payload WebhookPayload) {
	cfg, err := r.repo.GetWebhookConfig(ctx)
	if err != nil {
		slog.Error("failed to get webhook config", "error", err)
		return
	}
	if !cfg.Enabled || cfg.URL == "" {
		return
	}

	start := time.Now()
	err = r.webhook.Send(ctx, cfg.URL, payload)
	recordSendDuration(string(domain.NotificationTypeWebhook), time.Since(start))

	status := domain.NotificationStatusSent
	if err != nil {
		status = domain.NotificationStatusFailed
		slog.Error("failed to send webhook notification", "error", err)
	}
	recordNotificationSent(string(domain.NotificationTypeWebhook), string(status))

	record := &domain.NotificationRecord{
		Type:       domain.NotificationTypeWebhook,
		Subject:    payload.Event,
		Content:    fmt.Sprintf("%s (%s)", payload.Event, payload.Severity),
		Recipients: []string{cfg.URL},
		Status:     status,
	}
	if err := r.repo.SaveRecord(ctx, record); err != nil {
		slog.Error("failed to save notification record", "error", err)
	}
}

func webhookFailures(failures []FailedCheck) []WebhookFailure {
	out := make([]WebhookFailure, 0, len(failures))
	for _, f := range failures {
		out = append(out, WebhookFailure{
			CheckID:   f.Check.ID,
			CheckName: f.Check.Name,
			Kind:      string(f.Check.Kind),
			Details:   f.Result.Details,
		})
	}
	return out
}

// subscriberEmails extracts deduplicated emails, preserving order.
func subscriberEmails(subs []domain.Subscription) []string {
	seen := make(map[string]bool, len(subs))
	emails := make([]string, 0, len(subs))
	for _, sub := range subs {
		if !seen[sub.Email] {
			seen[sub.Email] = true
			emails = append(emails, sub.Email)
		}
	}
	return emails
}

func throttleDuration(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = domain.DefaultThrottleMinutes
	}
	return time.Duration(minutes) * time.Minute
}
