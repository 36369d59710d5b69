package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/notifications"
)

func TestSend_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
		wantRetryable bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "created", status: http.StatusCreated},
		{name: "rate limited", status: http.StatusTooManyRequests, wantRetryable: true},
		{name: "server error", status: http.StatusBadGateway, wantRetryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantPermanent: true},
		{name: "not found", status: http.StatusNotFound, wantPermanent: true},
		{name: "bad request", status: http.StatusBadRequest, wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			sender := NewSender(Config{})
			err := sender.Send(context.Background(), server.URL, notifications.WebhookPayload{Event: "checks.unhealthy"})

			switch {
			case tt.wantPermanent:
				var permanent *PermanentError
				require.ErrorAs(t, err, &permanent)
				assert.Equal(t, tt.status, permanent.Code)
			case tt.wantRetryable:
				var retryable *RetryableError
				require.ErrorAs(t, err, &retryable)
				assert.Equal(t, tt.status, retryable.Code)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestSend_EmptyURL(t *testing.T) {
	sender := NewSender(Config{})

	err := sender.Send(context.Background(), "", notifications.WebhookPayload{})
	var permanent *PermanentError
	assert.ErrorAs(t, err, &permanent)
}

func TestSend_ConnectionError(t *testing.T) {
	sender := NewSender(Config{})

	err := sender.Send(context.Background(), "http://127.0.0.1:1/hook", notifications.WebhookPayload{})
	var retryable *RetryableError
	assert.ErrorAs(t, err, &retryable)
}

func TestSend_RateLimiterHonorsContext(t *testing.T) {
	sender := NewSender(Config{RatePerMinute: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first token is available immediately; a cancelled context on
	// the second send fails at the limiter, before any request.
	require.NoError(t, sender.limiter.Wait(context.Background()))
	err := sender.Send(ctx, "http://127.0.0.1:1/hook", notifications.WebhookPayload{})
	assert.Error(t, err)
	assert.False(t, errors.As(err, new(*RetryableError)))
}

func TestMaskWebhookURL(t *testing.T) {
	assert.Equal(t, "https://short.example", maskWebhookURL("https://short.example"))

	long := "https://hooks.example.com/services/T000/B000/XXXXXXXXXXXXXXXXXXXXXXXX"
	masked := maskWebhookURL(long)
	assert.NotEqual(t, long, masked)
	assert.Contains(t, masked, "...")
}
