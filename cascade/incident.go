package cascade

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolwatch/target"
)

// Severity grades how bad a cascade is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// UserImpact describes what operators should expect users to experience.
type UserImpact string

const (
	ImpactCompleteOutage UserImpact = "complete_outage"
	ImpactPartialOutage  UserImpact = "partial_outage"
	ImpactDegraded       UserImpact = "degraded_experience"
	ImpactMinimal        UserImpact = "minimal"
)

// Resolution is the incident lifecycle state.
type Resolution string

const (
	ResolutionOngoing  Resolution = "ongoing"
	ResolutionResolved Resolution = "resolved"
)

// Incident is one detected cascade. At most one incident per root cause
// is open at a time; repeated failures of the same root update it in
// place rather than opening another.
type Incident struct {
	ID         uuid.UUID
	RootCause  string
	Affected   []string
	Severity   Severity
	UserImpact UserImpact
	DetectedAt time.Time
	StartedAt  time.Time
	UpdatedAt  time.Time
	Resolution Resolution
}

// Open reports whether the incident is still ongoing.
func (i Incident) Open() bool {
	return i.Resolution == ResolutionOngoing
}

// mergeAffected folds extra IDs into the unique sorted affected set.
func mergeAffected(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range extra {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// severityFor grades an incident from the root cause's class and the
// number of affected dependents. Identity and gateway failures take the
// whole console down regardless of fan-out.
func severityFor(class target.Class, affected int) Severity {
	switch class {
	case target.ClassIdentity, target.ClassGateway:
		return SeverityCritical
	}
	switch {
	case affected >= 3:
		return SeverityHigh
	case affected >= 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// impactFor maps the root cause's class and blast radius to the
// operator-facing impact statement.
func impactFor(class target.Class, affected int) UserImpact {
	switch class {
	case target.ClassIdentity, target.ClassGateway:
		return ImpactCompleteOutage
	case target.ClassCatalog:
		return ImpactPartialOutage
	}
	if affected >= 3 {
		return ImpactDegraded
	}
	return ImpactMinimal
}
