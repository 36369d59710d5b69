package domain

import (
	"strings"
	"time"
)

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses. Resolved is terminal: a later failure of the same
// check creates a new incident instead of reopening.
const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// IsActive reports whether the incident still counts against the
// one-active-incident-per-check invariant.
func (s IncidentStatus) IsActive() bool {
	return s != IncidentStatusResolved
}

// IncidentSeverity represents how severe an incident is.
type IncidentSeverity string

// Incident severities.
const (
	IncidentSeverityCritical IncidentSeverity = "critical"
	IncidentSeverityHigh     IncidentSeverity = "high"
	IncidentSeverityMedium   IncidentSeverity = "medium"
	IncidentSeverityLow      IncidentSeverity = "low"
)

// IsValid checks if the severity is valid.
func (s IncidentSeverity) IsValid() bool {
	switch s {
	case IncidentSeverityCritical, IncidentSeverityHigh,
		IncidentSeverityMedium, IncidentSeverityLow:
		return true
	}
	return false
}

// Incident represents a tracked period of unhealthiness for a check.
type Incident struct {
	ID         string           `json:"id"`
	CheckID    string           `json:"check_id"`
	Title      string           `json:"title"`
	Status     IncidentStatus   `json:"status"`
	Severity   IncidentSeverity `json:"severity"`
	Details    string           `json:"details"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

// IncidentEvent is one entry in an incident's append-only audit trail.
type IncidentEvent struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// IncidentMetrics holds simple aggregation counts over incidents.
type IncidentMetrics struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Resolved int `json:"resolved"`
	Critical int `json:"critical"`
}

// SeverityForCheck derives the severity of an automatically opened
// incident from the failing check. Host-level failures are always
// critical; checks guarding databases or auth are treated as critical
// regardless of kind.
func SeverityForCheck(check *HealthCheck) IncidentSeverity {
	switch check.Kind {
	case CheckKindServer:
		return IncidentSeverityCritical
	case CheckKindAPI:
		return IncidentSeverityHigh
	default:
		name := strings.ToLower(check.Name)
		if strings.Contains(name, "database") || strings.Contains(name, "auth") {
			return IncidentSeverityCritical
		}
		return IncidentSeverityHigh
	}
}
