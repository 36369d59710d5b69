package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

func TestServiceProber(t *testing.T) {
	tests := []struct {
		name          string
		command       string
		expected      string
		wantStatus    domain.HealthStatus
		wantInDetails string
	}{
		{
			name:       "clean exit without expected output",
			command:    "true",
			wantStatus: domain.StatusHealthy,
		},
		{
			name:       "expected output found",
			command:    "echo service is active",
			expected:   "active",
			wantStatus: domain.StatusHealthy,
		},
		{
			name:          "expected output missing",
			command:       "echo inactive",
			expected:      "running",
			wantStatus:    domain.StatusUnhealthy,
			wantInDetails: `expected output "running" not found`,
		},
		{
			name:          "non-zero exit",
			command:       "exit 2",
			wantStatus:    domain.StatusUnhealthy,
			wantInDetails: "command failed",
		},
		{
			name:          "stderr included on failure",
			command:       "echo broken >&2; exit 1",
			wantStatus:    domain.StatusUnhealthy,
			wantInDetails: "broken",
		},
		{
			name:          "no command configured",
			command:       "   ",
			wantStatus:    domain.StatusUnhealthy,
			wantInDetails: "no command configured",
		},
	}

	prober := &ServiceProber{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := prober.Probe(context.Background(), &domain.HealthCheck{
				Kind:           domain.CheckKindService,
				Command:        tt.command,
				ExpectedOutput: tt.expected,
			})

			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantInDetails != "" {
				assert.Contains(t, result.Details, tt.wantInDetails)
			}
		})
	}
}
