package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Default timeout for API probes when the check does not set one.
const defaultAPITimeout = 5000 * time.Millisecond

// APIProber checks an HTTP endpoint with a GET request. Healthy iff
// the response status is in [200,300). Response time is recorded even
// on failure.
type APIProber struct {
	// Client overrides the per-probe client, used in tests.
	Client *http.Client
}

// Probe implements Prober.
func (p *APIProber) Probe(ctx context.Context, check *domain.HealthCheck) Result {
	timeout := defaultAPITimeout
	if check.TimeoutMs > 0 {
		timeout = time.Duration(check.TimeoutMs) * time.Millisecond
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, check.Endpoint, nil)
	if err != nil {
		result := unhealthy(fmt.Sprintf("invalid endpoint %q: %v", check.Endpoint, err))
		result.ResponseTimeMs = millis(time.Since(start))
		return result
	}

	resp, err := client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		result := unhealthy(fmt.Sprintf("request failed: %v", err))
		result.ResponseTimeMs = millis(elapsed)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	var result Result
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result = healthy(fmt.Sprintf("HTTP %d from %s", resp.StatusCode, check.Endpoint))
	} else {
		result = unhealthy(fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, check.Endpoint))
	}
	result.ResponseTimeMs = millis(elapsed)
	return result
}
