package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pulsewatch"

var (
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "probes_total",
			Help:      "Total probes executed",
		},
		[]string{"kind", "status"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a full probe sweep",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	unhealthyChecks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "unhealthy_checks",
			Help:      "Unhealthy checks observed in the last sweep",
		},
	)

	sweptChecks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "swept_checks",
			Help:      "Enabled checks covered by the last sweep",
		},
	)
)

func recordProbe(kind, status string) {
	probesTotal.WithLabelValues(kind, status).Inc()
}

func recordSweep(total, unhealthy int, duration time.Duration) {
	sweepDuration.Observe(duration.Seconds())
	sweptChecks.Set(float64(total))
	unhealthyChecks.Set(float64(unhealthy))
}
