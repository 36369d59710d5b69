package notifications_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/notifications"
	"github.com/pulsewatch/pulsewatch/internal/testutil"
)

type recordingEmailSender struct {
	recipients [][]string
	subjects   []string
	bodies     []string
	err        error
}

func (s *recordingEmailSender) Send(_ context.Context, recipients []string, subject, body string) error {
	s.recipients = append(s.recipients, recipients)
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
	return s.err
}

func TestSubscribe(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	email := &recordingEmailSender{}
	service := notifications.NewService(repo, email, "https://status.example.com")

	sub, err := service.Subscribe(context.Background(), notifications.SubscribeInput{
		Email:    "dev@example.com",
		Severity: domain.SubscriptionSeverityHigh,
	})
	require.NoError(t, err)

	// Pending until the verify token is confirmed.
	assert.False(t, sub.Active)
	require.NotNil(t, sub.VerifyToken)
	assert.NotEmpty(t, sub.UnsubscribeToken)
	assert.Nil(t, sub.CheckID)

	require.Len(t, email.recipients, 1)
	assert.Equal(t, []string{"dev@example.com"}, email.recipients[0])
	assert.Contains(t, email.bodies[0], "/api/v1/notifications/subscriptions/verify/"+*sub.VerifyToken)
}

func TestSubscribe_DefaultsSeverityToAll(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	service := notifications.NewService(repo, &recordingEmailSender{}, "https://status.example.com")

	sub, err := service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionSeverityAll, sub.Severity)
}

func TestSubscribe_InvalidSeverity(t *testing.T) {
	service := notifications.NewService(testutil.NewFakeNotificationRepo(), &recordingEmailSender{}, "")

	_, err := service.Subscribe(context.Background(), notifications.SubscribeInput{
		Email:    "dev@example.com",
		Severity: domain.SubscriptionSeverity("urgent"),
	})
	assert.ErrorIs(t, err, notifications.ErrInvalidSeverity)
}

func TestSubscribe_DuplicateEmail(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	service := notifications.NewService(repo, &recordingEmailSender{}, "https://status.example.com")

	checkID := testutil.StringPtr("c1")

	_, err := service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com"})
	require.NoError(t, err)
	_, err = service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com", CheckID: checkID})
	require.NoError(t, err)

	// Same email and target, globally or per check, is rejected.
	_, err = service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com"})
	assert.ErrorIs(t, err, notifications.ErrDuplicateEmail)

	_, err = service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com", CheckID: checkID})
	assert.ErrorIs(t, err, notifications.ErrDuplicateEmail)
}

func TestSubscribe_EmailFailureIsNotFatal(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	email := &recordingEmailSender{err: errors.New("smtp down")}
	service := notifications.NewService(repo, email, "https://status.example.com")

	sub, err := service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com"})
	require.NoError(t, err)
	assert.Len(t, repo.Subscriptions, 1)
	assert.False(t, sub.Active)
}

func TestVerify(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	service := notifications.NewService(repo, &recordingEmailSender{}, "https://status.example.com")

	created, err := service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com"})
	require.NoError(t, err)
	originalUnsubscribe := created.UnsubscribeToken

	verified, err := service.Verify(context.Background(), *created.VerifyToken)
	require.NoError(t, err)

	assert.True(t, verified.Active)
	assert.Nil(t, verified.VerifyToken)
	// The unsubscribe token rotates on verification.
	assert.NotEqual(t, originalUnsubscribe, verified.UnsubscribeToken)

	// The verify token is single use.
	_, err = service.Verify(context.Background(), *created.VerifyToken)
	assert.ErrorIs(t, err, notifications.ErrTokenNotFound)
}

func TestVerify_UnknownToken(t *testing.T) {
	service := notifications.NewService(testutil.NewFakeNotificationRepo(), &recordingEmailSender{}, "")

	_, err := service.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, notifications.ErrTokenNotFound)
}

func TestUnsubscribe_DeactivatesButKeepsRow(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	service := notifications.NewService(repo, &recordingEmailSender{}, "https://status.example.com")

	created, err := service.Subscribe(context.Background(), notifications.SubscribeInput{Email: "dev@example.com"})
	require.NoError(t, err)

	verified, err := service.Verify(context.Background(), *created.VerifyToken)
	require.NoError(t, err)

	require.NoError(t, service.Unsubscribe(context.Background(), verified.UnsubscribeToken))

	stored, err := repo.GetSubscriptionByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestUpdateEmailConfig_DefaultsThrottle(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	service := notifications.NewService(repo, &recordingEmailSender{}, "")

	require.NoError(t, service.UpdateEmailConfig(context.Background(), &domain.EmailConfig{
		Enabled:    true,
		Recipients: []string{"ops@example.com"},
	}))

	cfg, err := service.EmailConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultThrottleMinutes, cfg.ThrottleMinutes)
}

func TestRecords_ClampsLimit(t *testing.T) {
	repo := testutil.NewFakeNotificationRepo()
	service := notifications.NewService(repo, &recordingEmailSender{}, "")

	for range 3 {
		require.NoError(t, repo.SaveRecord(context.Background(), &domain.NotificationRecord{
			Type:   domain.NotificationTypeEmail,
			Status: domain.NotificationStatusSent,
		}))
	}

	records, err := service.Records(context.Background(), -5)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = service.Records(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
