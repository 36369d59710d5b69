package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// ServiceProber runs an arbitrary command through a shell and checks
// its output. With an expected output configured, healthy iff stdout
// contains it; otherwise any clean exit is healthy.
type ServiceProber struct{}

// Probe implements Prober.
func (p *ServiceProber) Probe(ctx context.Context, check *domain.HealthCheck) Result {
	if strings.TrimSpace(check.Command) == "" {
		return unhealthy("no command configured")
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", check.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := fmt.Sprintf("command failed: %v", err)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			detail = fmt.Sprintf("%s: %s", detail, msg)
		}
		return unhealthy(detail)
	}

	output := stdout.String()
	if check.ExpectedOutput != "" && !strings.Contains(output, check.ExpectedOutput) {
		return unhealthy(fmt.Sprintf("expected output %q not found, got: %s",
			check.ExpectedOutput, strings.TrimSpace(output)))
	}

	return healthy("command succeeded")
}
