package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

type fakeEmailSender struct {
	mu    sync.Mutex
	sends []emailSend
	err   error
}

type emailSend struct {
	recipients []string
	subject    string
	body       string
}

func (f *fakeEmailSender) Send(_ context.Context, recipients []string, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, emailSend{recipients: recipients, subject: subject, body: body})
	return f.err
}

type fakeWebhookSender struct {
	mu       sync.Mutex
	payloads []WebhookPayload
	err      error
}

func (f *fakeWebhookSender) Send(_ context.Context, _ string, payload WebhookPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

// stubRepo implements the subset of Repository the router touches.
// Subscriptions are filtered with the same rank semantics as the
// PostgreSQL queries.
type stubRepo struct {
	Repository

	subs       []domain.Subscription
	emailCfg   domain.EmailConfig
	webhookCfg domain.WebhookConfig

	mu      sync.Mutex
	records []domain.NotificationRecord
}

func (s *stubRepo) GetEmailConfig(context.Context) (*domain.EmailConfig, error) {
	cfg := s.emailCfg
	return &cfg, nil
}

func (s *stubRepo) GetWebhookConfig(context.Context) (*domain.WebhookConfig, error) {
	cfg := s.webhookCfg
	return &cfg, nil
}

func (s *stubRepo) SubscribersForCheck(_ context.Context, checkID string, eventRank int) ([]domain.Subscription, error) {
	out := make([]domain.Subscription, 0)
	for _, sub := range s.subs {
		if sub.Active && sub.CheckID != nil && *sub.CheckID == checkID && domain.SeverityMatches(sub.Severity, eventRank) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubRepo) GlobalSubscribers(_ context.Context, eventRank int) ([]domain.Subscription, error) {
	out := make([]domain.Subscription, 0)
	for _, sub := range s.subs {
		if sub.Active && sub.CheckID == nil && domain.SeverityMatches(sub.Severity, eventRank) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubRepo) SaveRecord(_ context.Context, record *domain.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

func (s *stubRepo) recordsOfType(t domain.NotificationType) []domain.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.NotificationRecord, 0)
	for _, record := range s.records {
		if record.Type == t {
			out = append(out, record)
		}
	}
	return out
}

func newTestRouter(t *testing.T, repo *stubRepo) (*Router, *fakeEmailSender, *fakeWebhookSender) {
	t.Helper()
	renderer, err := NewRenderer()
	require.NoError(t, err)

	email := &fakeEmailSender{}
	webhook := &fakeWebhookSender{}
	return NewRouter(repo, email, webhook, renderer), email, webhook
}

func apiCheck(id, name string) *domain.HealthCheck {
	return &domain.HealthCheck{ID: id, Name: name, Kind: domain.CheckKindAPI, Enabled: true, NotifyOnFailure: true}
}

func failureFor(check *domain.HealthCheck, details string) FailedCheck {
	return FailedCheck{
		Check:  *check,
		Result: domain.CheckResult{CheckID: check.ID, Status: domain.StatusUnhealthy, Details: details},
	}
}

func activeSubscription(email string, checkID *string, severity domain.SubscriptionSeverity) domain.Subscription {
	return domain.Subscription{
		Email:            email,
		CheckID:          checkID,
		Severity:         severity,
		Active:           true,
		UnsubscribeToken: email + "-token",
	}
}

func TestNotifyUnhealthy_Throttle(t *testing.T) {
	repo := &stubRepo{emailCfg: domain.EmailConfig{
		Enabled:         true,
		Recipients:      []string{"ops@example.com"},
		ThrottleMinutes: 60,
	}}
	router, email, _ := newTestRouter(t, repo)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	router.now = func() time.Time { return now }

	failures := []FailedCheck{failureFor(apiCheck("c1", "payments"), "HTTP 500")}

	require.NoError(t, router.NotifyUnhealthy(context.Background(), failures))
	assert.Len(t, email.sends, 1)

	// Inside the window nothing is sent.
	now = now.Add(30 * time.Minute)
	require.NoError(t, router.NotifyUnhealthy(context.Background(), failures))
	assert.Len(t, email.sends, 1)

	// After the window the next batch goes out.
	now = now.Add(31 * time.Minute)
	require.NoError(t, router.NotifyUnhealthy(context.Background(), failures))
	assert.Len(t, email.sends, 2)
}

func TestNotifyUnhealthy_SeverityFilter(t *testing.T) {
	// A single API failure makes a high batch (rank 2): the
	// critical-threshold subscriber matches, the all-threshold one does
	// not.
	repo := &stubRepo{
		emailCfg: domain.EmailConfig{Enabled: true},
		subs: []domain.Subscription{
			activeSubscription("critical@example.com", nil, domain.SubscriptionSeverityCritical),
			activeSubscription("all@example.com", nil, domain.SubscriptionSeverityAll),
		},
	}
	router, email, _ := newTestRouter(t, repo)

	require.NoError(t, router.NotifyUnhealthy(context.Background(),
		[]FailedCheck{failureFor(apiCheck("c1", "payments"), "HTTP 500")}))

	require.Len(t, email.sends, 1)
	assert.Equal(t, []string{"critical@example.com"}, email.sends[0].recipients)
}

func TestNotifyUnhealthy_PerCheckGroups(t *testing.T) {
	checkA := apiCheck("c1", "payments")
	checkB := apiCheck("c2", "search")

	repo := &stubRepo{
		emailCfg: domain.EmailConfig{Enabled: true},
		subs: []domain.Subscription{
			activeSubscription("global@example.com", nil, domain.SubscriptionSeverityCritical),
			activeSubscription("payments@example.com", &checkA.ID, domain.SubscriptionSeverityCritical),
		},
	}
	router, email, _ := newTestRouter(t, repo)

	failures := []FailedCheck{failureFor(checkA, "HTTP 500"), failureFor(checkB, "HTTP 502")}
	require.NoError(t, router.NotifyUnhealthy(context.Background(), failures))

	// One global group covering the batch, one dedicated group for checkA.
	require.Len(t, email.sends, 2)
	assert.Equal(t, []string{"global@example.com"}, email.sends[0].recipients)
	assert.Contains(t, email.sends[0].subject, "2 checks are unhealthy")
	assert.Equal(t, []string{"payments@example.com"}, email.sends[1].recipients)
	assert.Contains(t, email.sends[1].subject, "payments is unhealthy")
}

func TestNotifyUnhealthy_FallbackRecipients(t *testing.T) {
	repo := &stubRepo{emailCfg: domain.EmailConfig{
		Enabled:    true,
		Recipients: []string{"ops@example.com", "oncall@example.com"},
	}}
	router, email, _ := newTestRouter(t, repo)

	require.NoError(t, router.NotifyUnhealthy(context.Background(),
		[]FailedCheck{failureFor(apiCheck("c1", "payments"), "HTTP 500")}))

	require.Len(t, email.sends, 1)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, email.sends[0].recipients)
}

func TestNotifyUnhealthy_NoFallbackWhenEmailDisabled(t *testing.T) {
	repo := &stubRepo{emailCfg: domain.EmailConfig{
		Enabled:    false,
		Recipients: []string{"ops@example.com"},
	}}
	router, email, _ := newTestRouter(t, repo)

	require.NoError(t, router.NotifyUnhealthy(context.Background(),
		[]FailedCheck{failureFor(apiCheck("c1", "payments"), "HTTP 500")}))

	assert.Empty(t, email.sends)
}

func TestNotifyUnhealthy_RecordsFailedSend(t *testing.T) {
	repo := &stubRepo{emailCfg: domain.EmailConfig{Enabled: true, Recipients: []string{"ops@example.com"}}}
	router, email, _ := newTestRouter(t, repo)
	email.err = errors.New("smtp unavailable")

	require.NoError(t, router.NotifyUnhealthy(context.Background(),
		[]FailedCheck{failureFor(apiCheck("c1", "payments"), "HTTP 500")}))

	records := repo.recordsOfType(domain.NotificationTypeEmail)
	require.Len(t, records, 1)
	assert.Equal(t, domain.NotificationStatusFailed, records[0].Status)
}

func TestNotifyUnhealthy_WebhookBatch(t *testing.T) {
	repo := &stubRepo{webhookCfg: domain.WebhookConfig{Enabled: true, URL: "https://hooks.example.com/x"}}
	router, _, webhook := newTestRouter(t, repo)

	server := &domain.HealthCheck{ID: "c1", Name: "db host", Kind: domain.CheckKindServer}
	failures := []FailedCheck{failureFor(server, "load high"), failureFor(apiCheck("c2", "payments"), "HTTP 500")}
	require.NoError(t, router.NotifyUnhealthy(context.Background(), failures))

	require.Len(t, webhook.payloads, 1)
	payload := webhook.payloads[0]
	assert.Equal(t, "checks.unhealthy", payload.Event)
	assert.Equal(t, "critical", payload.Severity)
	assert.Len(t, payload.Failures, 2)
}

func TestNotifyResolved_NotThrottled(t *testing.T) {
	repo := &stubRepo{
		emailCfg:   domain.EmailConfig{Enabled: true, Recipients: []string{"ops@example.com"}},
		webhookCfg: domain.WebhookConfig{Enabled: true, URL: "https://hooks.example.com/x"},
	}
	router, email, webhook := newTestRouter(t, repo)

	// Exhaust the alert throttle first.
	require.NoError(t, router.NotifyUnhealthy(context.Background(),
		[]FailedCheck{failureFor(apiCheck("c1", "payments"), "HTTP 500")}))
	require.Len(t, email.sends, 1)

	resolvedAt := time.Now()
	incident := &domain.Incident{
		ID:         "inc-1",
		CheckID:    "c1",
		Title:      "payments is unhealthy",
		Status:     domain.IncidentStatusResolved,
		Severity:   domain.IncidentSeverityHigh,
		Details:    "HTTP 500",
		CreatedAt:  resolvedAt.Add(-time.Hour),
		ResolvedAt: &resolvedAt,
	}

	require.NoError(t, router.NotifyResolved(context.Background(), incident))

	// Resolution mail went out despite the alert throttle window.
	require.Len(t, email.sends, 2)
	assert.Contains(t, email.sends[1].subject, "[Resolved] payments is unhealthy")

	require.Len(t, webhook.payloads, 2)
	assert.Equal(t, "incident.resolved", webhook.payloads[1].Event)
}

func TestBatchSeverity(t *testing.T) {
	api := apiCheck("c1", "a")
	server := &domain.HealthCheck{ID: "c2", Name: "host", Kind: domain.CheckKindServer}

	t.Run("check-derived critical wins", func(t *testing.T) {
		failures := []FailedCheck{failureFor(api, "x"), failureFor(server, "y")}
		assert.Equal(t, domain.IncidentSeverityCritical, batchSeverity(failures))
	})

	t.Run("more than three failures escalate", func(t *testing.T) {
		var failures []FailedCheck
		for range 4 {
			failures = append(failures, failureFor(api, "x"))
		}
		assert.Equal(t, domain.IncidentSeverityCritical, batchSeverity(failures))
	})

	t.Run("small batch is high", func(t *testing.T) {
		failures := []FailedCheck{failureFor(api, "x"), failureFor(api, "y")}
		assert.Equal(t, domain.IncidentSeverityHigh, batchSeverity(failures))
	})
}

func TestSubscriberEmails_Deduplicates(t *testing.T) {
	subs := []domain.Subscription{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
		{Email: "a@example.com"},
	}
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, subscriberEmails(subs))
}

func TestThrottleDuration_Default(t *testing.T) {
	assert.Equal(t, time.Duration(domain.DefaultThrottleMinutes)*time.Minute, throttleDuration(0))
	assert.Equal(t, 15*time.Minute, throttleDuration(15))
}
