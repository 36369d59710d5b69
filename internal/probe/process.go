package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

const tcpDialTimeout = 3 * time.Second

// ProcessProber checks a local process, either by TCP connectivity on
// a port or by scanning the process table for a keyword. A missing
// keyword match is reported as healthy: absence alone is not a
// failure condition.
type ProcessProber struct{}

// Probe implements Prober.
func (p *ProcessProber) Probe(ctx context.Context, check *domain.HealthCheck) Result {
	if check.Port > 0 {
		return p.probePort(check.Port)
	}
	if strings.TrimSpace(check.ProcessKeyword) != "" {
		return p.probeKeyword(ctx, check.ProcessKeyword)
	}
	return healthy("no port or process keyword configured, nothing to check")
}

func (p *ProcessProber) probePort(port int) Result {
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, tcpDialTimeout)
	elapsed := time.Since(start)

	if err != nil {
		result := unhealthy(fmt.Sprintf("port %d unreachable: %v", port, err))
		result.ResponseTimeMs = millis(elapsed)
		return result
	}
	_ = conn.Close()

	result := healthy(fmt.Sprintf("port %d reachable", port))
	result.ResponseTimeMs = millis(elapsed)
	return result
}

func (p *ProcessProber) probeKeyword(ctx context.Context, keyword string) Result {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return unhealthy(fmt.Sprintf("list processes: %v", err))
	}

	match := findProcess(ctx, procs, keyword)
	if match == nil {
		return healthy(fmt.Sprintf("process %q not found", keyword))
	}

	result := healthy(fmt.Sprintf("process %q running (pid %d)", keyword, match.Pid))

	if cpu, err := match.CPUPercentWithContext(ctx); err == nil {
		result.CPUUsage = &cpu
	}
	if memPct, err := match.MemoryPercentWithContext(ctx); err == nil {
		memUsage := float64(memPct)
		result.MemoryUsage = &memUsage
	}

	// Uninterruptible sleep usually means the process is stuck on I/O.
	// Surfaced in details only; it does not flip the health status.
	if statuses, err := match.StatusWithContext(ctx); err == nil {
		for _, st := range statuses {
			if st == process.Blocked {
				result.Details += " (warning: process is in uninterruptible sleep)"
				break
			}
		}
	}

	return result
}

// findProcess returns the first process whose name or command line
// contains the keyword.
func findProcess(ctx context.Context, procs []*process.Process, keyword string) *process.Process {
	keyword = strings.ToLower(keyword)
	for _, proc := range procs {
		if name, err := proc.NameWithContext(ctx); err == nil &&
			strings.Contains(strings.ToLower(name), keyword) {
			return proc
		}
		if cmdline, err := proc.CmdlineWithContext(ctx); err == nil &&
			strings.Contains(strings.ToLower(cmdline), keyword) {
			return proc
		}
	}
	return nil
}
