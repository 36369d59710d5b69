package domain

import "time"

// SubscriptionSeverity is a subscriber's severity threshold.
type SubscriptionSeverity string

// Subscription severity thresholds.
const (
	SubscriptionSeverityCritical SubscriptionSeverity = "critical"
	SubscriptionSeverityHigh     SubscriptionSeverity = "high"
	SubscriptionSeverityAll      SubscriptionSeverity = "all"
)

// IsValid checks if the subscription severity is valid.
func (s SubscriptionSeverity) IsValid() bool {
	return s == SubscriptionSeverityCritical || s == SubscriptionSeverityHigh || s == SubscriptionSeverityAll
}

// SeverityRank orders severities for subscriber targeting.
// Lower is more severe: critical=1, high=2, all=3. Unknown values rank
// lowest so they never widen a recipient set by accident.
func SeverityRank(s SubscriptionSeverity) int {
	switch s {
	case SubscriptionSeverityCritical:
		return 1
	case SubscriptionSeverityHigh:
		return 2
	default:
		return 3
	}
}

// RankForIncidentSeverity maps an incident severity onto the
// subscription severity scale. Medium and low rank with "all".
func RankForIncidentSeverity(s IncidentSeverity) int {
	switch s {
	case IncidentSeverityCritical:
		return SeverityRank(SubscriptionSeverityCritical)
	case IncidentSeverityHigh:
		return SeverityRank(SubscriptionSeverityHigh)
	default:
		return SeverityRank(SubscriptionSeverityAll)
	}
}

// SeverityMatches reports whether a subscriber with the given threshold
// receives an event of the given severity rank. The comparison is
// rank(subscription) <= rank(event), kept exactly as the original
// system implements it.
func SeverityMatches(sub SubscriptionSeverity, eventRank int) bool {
	return SeverityRank(sub) <= eventRank
}

// Subscription is an email's opt-in to receive alerts, globally
// (CheckID nil) or for one specific check.
type Subscription struct {
	ID               string               `json:"id"`
	Email            string               `json:"email"`
	CheckID          *string              `json:"check_id,omitempty"`
	Severity         SubscriptionSeverity `json:"severity"`
	Active           bool                 `json:"active"`
	VerifyToken      *string              `json:"-"`
	UnsubscribeToken string               `json:"-"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// IsGlobal reports whether the subscription matches all checks.
func (s *Subscription) IsGlobal() bool {
	return s.CheckID == nil
}
