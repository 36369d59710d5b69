// Package testutil provides in-memory repository fakes for unit tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/incidents"
	"github.com/pulsewatch/pulsewatch/internal/notifications"
)

// FakeCheckRepo is an in-memory checks.Repository.
type FakeCheckRepo struct {
	mu      sync.Mutex
	Checks  map[string]*domain.HealthCheck
	Results map[string][]domain.CheckResult // newest first

	ListErr error
}

// NewFakeCheckRepo creates an empty fake check repository.
func NewFakeCheckRepo() *FakeCheckRepo {
	return &FakeCheckRepo{
		Checks:  make(map[string]*domain.HealthCheck),
		Results: make(map[string][]domain.CheckResult),
	}
}

// Add stores a check directly, assigning an ID when missing.
func (f *FakeCheckRepo) Add(check *domain.HealthCheck) *domain.HealthCheck {
	f.mu.Lock()
	defer f.mu.Unlock()
	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	f.Checks[check.ID] = check
	return check
}

func (f *FakeCheckRepo) Create(_ context.Context, check *domain.HealthCheck) error {
	f.Add(check)
	check.CreatedAt = time.Now()
	check.UpdatedAt = check.CreatedAt
	return nil
}

func (f *FakeCheckRepo) GetByID(_ context.Context, id string) (*domain.HealthCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	check, ok := f.Checks[id]
	if !ok {
		return nil, checks.ErrCheckNotFound
	}
	copied := *check
	return &copied, nil
}

func (f *FakeCheckRepo) List(_ context.Context, filter checks.Filter) ([]domain.HealthCheck, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.HealthCheck, 0, len(f.Checks))
	for _, check := range f.Checks {
		if filter.EnabledOnly && !check.Enabled {
			continue
		}
		if filter.Kind != nil && check.Kind != *filter.Kind {
			continue
		}
		out = append(out, *check)
	}
	return out, nil
}

func (f *FakeCheckRepo) Update(_ context.Context, check *domain.HealthCheck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Checks[check.ID]; !ok {
		return checks.ErrCheckNotFound
	}
	check.UpdatedAt = time.Now()
	f.Checks[check.ID] = check
	return nil
}

func (f *FakeCheckRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Checks[id]; !ok {
		return checks.ErrCheckNotFound
	}
	delete(f.Checks, id)
	delete(f.Results, id)
	return nil
}

func (f *FakeCheckRepo) SaveResult(_ context.Context, result *domain.CheckResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	f.Results[result.CheckID] = append([]domain.CheckResult{*result}, f.Results[result.CheckID]...)
	return nil
}

func (f *FakeCheckRepo) RecentResults(_ context.Context, checkID string, limit int) ([]domain.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := f.Results[checkID]
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]domain.CheckResult, len(results))
	copy(out, results)
	return out, nil
}

func (f *FakeCheckRepo) ResultsByCheck(_ context.Context, checkID string, page, limit int) ([]domain.CheckResult, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := f.Results[checkID]
	total := len(results)
	start := (page - 1) * limit
	if start >= total {
		return []domain.CheckResult{}, total, nil
	}
	end := min(start+limit, total)
	out := make([]domain.CheckResult, end-start)
	copy(out, results[start:end])
	return out, total, nil
}

func (f *FakeCheckRepo) LatestResults(_ context.Context) ([]domain.ResultWithCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ResultWithCheck, 0, len(f.Checks))
	for id, check := range f.Checks {
		results := f.Results[id]
		if len(results) == 0 {
			continue
		}
		out = append(out, domain.ResultWithCheck{
			CheckResult: results[0],
			CheckName:   check.Name,
			CheckKind:   check.Kind,
		})
	}
	return out, nil
}

// FakeIncidentRepo is an in-memory incidents.Repository.
type FakeIncidentRepo struct {
	mu        sync.Mutex
	Incidents map[string]*domain.Incident
	Events    map[string][]domain.IncidentEvent
}

// NewFakeIncidentRepo creates an empty fake incident repository.
func NewFakeIncidentRepo() *FakeIncidentRepo {
	return &FakeIncidentRepo{
		Incidents: make(map[string]*domain.Incident),
		Events:    make(map[string][]domain.IncidentEvent),
	}
}

func (f *FakeIncidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}
	incident.CreatedAt = time.Now()
	incident.UpdatedAt = incident.CreatedAt
	copied := *incident
	f.Incidents[incident.ID] = &copied
	return nil
}

func (f *FakeIncidentRepo) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	incident, ok := f.Incidents[id]
	if !ok {
		return nil, incidents.ErrIncidentNotFound
	}
	copied := *incident
	return &copied, nil
}

func (f *FakeIncidentRepo) List(_ context.Context, filter incidents.Filter) ([]domain.Incident, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Incident, 0, len(f.Incidents))
	for _, incident := range f.Incidents {
		if filter.Status != nil && incident.Status != *filter.Status {
			continue
		}
		out = append(out, *incident)
	}
	return out, len(out), nil
}

func (f *FakeIncidentRepo) Update(_ context.Context, incident *domain.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Incidents[incident.ID]; !ok {
		return incidents.ErrIncidentNotFound
	}
	incident.UpdatedAt = time.Now()
	copied := *incident
	f.Incidents[incident.ID] = &copied
	return nil
}

func (f *FakeIncidentRepo) FindActiveByCheck(_ context.Context, checkID string) (*domain.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, incident := range f.Incidents {
		if incident.CheckID == checkID && incident.Status.IsActive() {
			copied := *incident
			return &copied, nil
		}
	}
	return nil, incidents.ErrIncidentNotFound
}

func (f *FakeIncidentRepo) ListActive(_ context.Context) ([]domain.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Incident, 0)
	for _, incident := range f.Incidents {
		if incident.Status.IsActive() {
			out = append(out, *incident)
		}
	}
	return out, nil
}

func (f *FakeIncidentRepo) AddEvent(_ context.Context, event *domain.IncidentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now()
	f.Events[event.IncidentID] = append(f.Events[event.IncidentID], *event)
	return nil
}

func (f *FakeIncidentRepo) GetEvents(_ context.Context, incidentID string) ([]domain.IncidentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]domain.IncidentEvent, len(f.Events[incidentID]))
	copy(events, f.Events[incidentID])
	return events, nil
}

func (f *FakeIncidentRepo) GetMetrics(_ context.Context) (*domain.IncidentMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var m domain.IncidentMetrics
	for _, incident := range f.Incidents {
		m.Total++
		if incident.Status.IsActive() {
			m.Active++
		} else {
			m.Resolved++
		}
		if incident.Severity == domain.IncidentSeverityCritical {
			m.Critical++
		}
	}
	return &m, nil
}

func (f *FakeIncidentRepo) GetHistory(_ context.Context, days int) ([]incidents.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -days)
	counts := make(map[string]int)
	for _, incident := range f.Incidents {
		if incident.CreatedAt.Before(cutoff) {
			continue
		}
		counts[incident.CreatedAt.Format("2006-01-02")]++
	}
	entries := make([]incidents.HistoryEntry, 0, len(counts))
	for date, count := range counts {
		entries = append(entries, incidents.HistoryEntry{Date: date, Count: count})
	}
	return entries, nil
}

// FakeNotificationRepo is an in-memory notifications.Repository.
type FakeNotificationRepo struct {
	mu            sync.Mutex
	Subscriptions map[string]*domain.Subscription
	EmailCfg      domain.EmailConfig
	WebhookCfg    domain.WebhookConfig
	Records       []domain.NotificationRecord
}

// NewFakeNotificationRepo creates an empty fake notification repository.
func NewFakeNotificationRepo() *FakeNotificationRepo {
	return &FakeNotificationRepo{
		Subscriptions: make(map[string]*domain.Subscription),
		EmailCfg:      domain.EmailConfig{ThrottleMinutes: domain.DefaultThrottleMinutes},
		WebhookCfg:    domain.WebhookConfig{ThrottleMinutes: domain.DefaultThrottleMinutes},
	}
}

func (f *FakeNotificationRepo) CreateSubscription(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Mirrors the unique (email, check target) constraint.
	for _, existing := range f.Subscriptions {
		if existing.Email != sub.Email {
			continue
		}
		if (existing.CheckID == nil) != (sub.CheckID == nil) {
			continue
		}
		if existing.CheckID == nil || *existing.CheckID == *sub.CheckID {
			return notifications.ErrDuplicateEmail
		}
	}
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	copied := *sub
	f.Subscriptions[sub.ID] = &copied
	return nil
}

func (f *FakeNotificationRepo) GetSubscriptionByID(_ context.Context, id string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, notifications.ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *FakeNotificationRepo) ListSubscriptions(_ context.Context) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Subscription, 0, len(f.Subscriptions))
	for _, sub := range f.Subscriptions {
		out = append(out, *sub)
	}
	return out, nil
}

func (f *FakeNotificationRepo) UpdateSubscription(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Subscriptions[sub.ID]; !ok {
		return notifications.ErrSubscriptionNotFound
	}
	sub.UpdatedAt = time.Now()
	copied := *sub
	f.Subscriptions[sub.ID] = &copied
	return nil
}

func (f *FakeNotificationRepo) DeleteSubscription(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Subscriptions[id]; !ok {
		return notifications.ErrSubscriptionNotFound
	}
	delete(f.Subscriptions, id)
	return nil
}

func (f *FakeNotificationRepo) GetSubscriptionByVerifyToken(_ context.Context, token string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.Subscriptions {
		if sub.VerifyToken != nil && *sub.VerifyToken == token {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, notifications.ErrTokenNotFound
}

func (f *FakeNotificationRepo) GetSubscriptionByUnsubscribeToken(_ context.Context, token string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.Subscriptions {
		if sub.UnsubscribeToken == token {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, notifications.ErrTokenNotFound
}

func (f *FakeNotificationRepo) SubscribersForCheck(_ context.Context, checkID string, eventRank int) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Subscription, 0)
	for _, sub := range f.Subscriptions {
		if !sub.Active || sub.CheckID == nil || *sub.CheckID != checkID {
			continue
		}
		if domain.SeverityMatches(sub.Severity, eventRank) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *FakeNotificationRepo) GlobalSubscribers(_ context.Context, eventRank int) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Subscription, 0)
	for _, sub := range f.Subscriptions {
		if !sub.Active || sub.CheckID != nil {
			continue
		}
		if domain.SeverityMatches(sub.Severity, eventRank) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *FakeNotificationRepo) GetEmailConfig(_ context.Context) (*domain.EmailConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.EmailCfg
	return &cfg, nil
}

func (f *FakeNotificationRepo) UpdateEmailConfig(_ context.Context, cfg *domain.EmailConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	f.EmailCfg = *cfg
	return nil
}

func (f *FakeNotificationRepo) GetWebhookConfig(_ context.Context) (*domain.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.WebhookCfg
	return &cfg, nil
}

func (f *FakeNotificationRepo) UpdateWebhookConfig(_ context.Context, cfg *domain.WebhookConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	f.WebhookCfg = *cfg
	return nil
}

func (f *FakeNotificationRepo) SaveRecord(_ context.Context, record *domain.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.CreatedAt = time.Now()
	f.Records = append(f.Records, *record)
	return nil
}

func (f *FakeNotificationRepo) ListRecords(_ context.Context, limit int) ([]domain.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.NotificationRecord, 0, limit)
	for i := len(f.Records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.Records[i])
	}
	return out, nil
}

// RecordsOfType filters stored records by channel.
func (f *FakeNotificationRepo) RecordsOfType(t domain.NotificationType) []domain.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.NotificationRecord, 0)
	for _, record := range f.Records {
		if record.Type == t {
			out = append(out, record)
		}
	}
	return out
}

// interface guards
var (
	_ checks.Repository        = (*FakeCheckRepo)(nil)
	_ incidents.Repository     = (*FakeIncidentRepo)(nil)
	_ notifications.Repository = (*FakeNotificationRepo)(nil)
)

// CheckOfKind builds an enabled check of the given kind for tests.
func CheckOfKind(kind domain.CheckKind, name string) *domain.HealthCheck {
	return &domain.HealthCheck{
		ID:              uuid.New().String(),
		Name:            name,
		Kind:            kind,
		Enabled:         true,
		IntervalSeconds: 60,
		NotifyOnFailure: true,
	}
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string { return &s }
