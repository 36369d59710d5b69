// Package probe implements the polymorphic check probers: one prober
// per check kind, dispatched through the Executor.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Result is a normalized probe outcome. Probers never return errors;
// every failure mode is folded into an unhealthy result with a
// human-readable details string.
type Result struct {
	Status         domain.HealthStatus
	Details        string
	CPUUsage       *float64
	MemoryUsage    *float64
	ResponseTimeMs *int64
}

func healthy(details string) Result {
	return Result{Status: domain.StatusHealthy, Details: details}
}

func unhealthy(details string) Result {
	return Result{Status: domain.StatusUnhealthy, Details: details}
}

// Prober runs one check of a single kind.
type Prober interface {
	Probe(ctx context.Context, check *domain.HealthCheck) Result
}

// Executor dispatches probes on check kind.
type Executor struct {
	probers map[domain.CheckKind]Prober
}

// NewExecutor creates an executor with all built-in probers registered.
func NewExecutor() *Executor {
	return &Executor{
		probers: map[domain.CheckKind]Prober{
			domain.CheckKindAPI:     &APIProber{},
			domain.CheckKindProcess: &ProcessProber{},
			domain.CheckKindService: &ServiceProber{},
			domain.CheckKindServer:  &ServerProber{},
		},
	}
}

// Probe runs the check with the prober matching its kind.
func (e *Executor) Probe(ctx context.Context, check *domain.HealthCheck) Result {
	prober, ok := e.probers[check.Kind]
	if !ok {
		return unhealthy(fmt.Sprintf("unknown check kind: %s", check.Kind))
	}

	start := time.Now()
	result := prober.Probe(ctx, check)

	slog.Debug("probe finished",
		"check_id", check.ID,
		"kind", check.Kind,
		"status", result.Status,
		"duration", time.Since(start),
	)

	return result
}

// Restart runs the check's restart command, best-effort. The captured
// combined output is returned alongside any execution error; the probe
// cycle itself is unaffected.
func (e *Executor) Restart(ctx context.Context, check *domain.HealthCheck) (string, error) {
	if strings.TrimSpace(check.RestartCommand) == "" {
		return "", fmt.Errorf("check %s has no restart command", check.ID)
	}

	slog.Info("running restart command", "check_id", check.ID, "check_name", check.Name)

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", check.RestartCommand)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("restart command: %w", err)
	}
	return out.String(), nil
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
