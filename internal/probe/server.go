package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// Host resource thresholds.
const (
	loadThreshold    = 0.8
	freeMemThreshold = 0.20
)

// ServerProber checks host-level resource levels: 1-minute load
// average and free-memory ratio.
type ServerProber struct{}

// Probe implements Prober.
func (p *ServerProber) Probe(ctx context.Context, _ *domain.HealthCheck) Result {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return unhealthy(fmt.Sprintf("read load average: %v", err))
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return unhealthy(fmt.Sprintf("read memory stats: %v", err))
	}

	freeRatio := 0.0
	if vm.Total > 0 {
		freeRatio = float64(vm.Available) / float64(vm.Total)
	}

	result := evaluateServer(avg.Load1, freeRatio)
	result.CPUUsage = &avg.Load1
	result.MemoryUsage = &vm.UsedPercent
	return result
}

// evaluateServer applies the host thresholds. Unhealthy iff load1 is
// above the load threshold or the free-memory ratio is below the
// memory threshold.
func evaluateServer(load1, freeRatio float64) Result {
	var tripped []string
	if load1 > loadThreshold {
		tripped = append(tripped, fmt.Sprintf("load average %.2f above %.1f", load1, loadThreshold))
	}
	if freeRatio < freeMemThreshold {
		tripped = append(tripped, fmt.Sprintf("free memory %.0f%% below %.0f%%", freeRatio*100, freeMemThreshold*100))
	}

	details := fmt.Sprintf("load1=%.2f, free memory=%.0f%%", load1, freeRatio*100)
	if len(tripped) == 0 {
		return healthy(details)
	}
	return unhealthy(details + ": " + strings.Join(tripped, "; "))
}
