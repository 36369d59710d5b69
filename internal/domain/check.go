package domain

import "time"

// CheckKind selects the probe strategy for a health check.
type CheckKind string

// Check kinds.
const (
	CheckKindAPI     CheckKind = "API"
	CheckKindProcess CheckKind = "PROCESS"
	CheckKindService CheckKind = "SERVICE"
	CheckKindServer  CheckKind = "SERVER"
)

// IsValid checks if the check kind is valid.
func (k CheckKind) IsValid() bool {
	switch k {
	case CheckKindAPI, CheckKindProcess, CheckKindService, CheckKindServer:
		return true
	}
	return false
}

// HealthStatus is the outcome of a single probe.
type HealthStatus string

// Health statuses.
const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Minimum allowed probe interval in seconds.
const MinCheckInterval = 10

// HealthCheck represents a configured monitored target.
// Kind-specific parameters are optional and only read by the matching prober.
type HealthCheck struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Kind            CheckKind `json:"kind"`
	Enabled         bool      `json:"enabled"`
	IntervalSeconds int       `json:"interval_seconds"`

	// API
	Endpoint  string `json:"endpoint,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`

	// PROCESS
	ProcessKeyword string `json:"process_keyword,omitempty"`
	Port           int    `json:"port,omitempty"`

	// SERVICE
	Command        string `json:"command,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`

	RestartCommand  string `json:"restart_command,omitempty"`
	NotifyOnFailure bool   `json:"notify_on_failure"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckResult is an immutable snapshot of one probe outcome. Append-only.
type CheckResult struct {
	ID             string       `json:"id"`
	CheckID        string       `json:"check_id"`
	Status         HealthStatus `json:"status"`
	Details        string       `json:"details"`
	CPUUsage       *float64     `json:"cpu_usage,omitempty"`
	MemoryUsage    *float64     `json:"memory_usage,omitempty"`
	ResponseTimeMs *int64       `json:"response_time_ms,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ResultWithCheck pairs a result with the check it belongs to,
// used by latest-results listings.
type ResultWithCheck struct {
	CheckResult
	CheckName string    `json:"check_name"`
	CheckKind CheckKind `json:"check_kind"`
}
