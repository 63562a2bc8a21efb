package alerts

import (
	"crowd-route-service/internal/domain"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

var messages = map[domain.Severity]string{
	domain.SeverityCritical: "CRITICAL: Extremely high crowd density",
	domain.SeverityHigh:     "HIGH: Very crowded conditions",
	domain.SeverityMedium:   "MEDIUM: Moderate crowd levels",
	domain.SeverityLow:      "LOW: Crowd building up",
}

var actions = map[domain.Severity][]string{
	domain.SeverityCritical: {
		"Emergency response team deployed",
		"Crowd control barriers installed",
		"Alternative routes activated",
		"Medical teams on standby",
	},
	domain.SeverityHigh: {
		"Additional security personnel deployed",
		"Crowd monitoring increased",
		"Public announcements initiated",
	},
	domain.SeverityMedium: {
		"Monitoring situation closely",
		"Preparing additional resources",
		"Informing nearby facilities",
	},
	domain.SeverityLow: {
		"Standard monitoring protocols",
		"Regular status updates",
	},
}

// classAdvisory returns an extra action for class-specific hazards.
func classAdvisory(class domain.LocationClass, density float64) (string, bool) {
	switch {
	case class == domain.ClassGhat && density > 0.8:
		return "Slippery conditions near water - exercise caution", true
	case class == domain.ClassTemple && density > 0.85:
		return "Queue management system activated", true
	case class == domain.ClassTransport && density > 0.7:
		return "Additional transport services deployed", true
	}
	return "", false
}

// Priority orders alerts for presentation. It never suppresses an alert.
//
//	severity_weight x (1 + min(affected/1000, 2)) x (1 + min(response/10, 1.5))
func Priority(sev domain.Severity, affected int, responseMin float64) float64 {
	a := math.Min(float64(max(affected, 0))/1000, 2)
	r := math.Min(math.Max(responseMin, 0)/10, 1.5)
	return sev.Weight() * (1 + a) * (1 + r)
}

// GenerateAlerts emits at most one alert per location, for the highest band its
// density reaches. The result is sorted by priority, highest first, then by
// location id.
func GenerateAlerts(snap *domain.CrowdSnapshot, t Thresholds, now time.Time) []domain.SafetyAlert {
	out := []domain.SafetyAlert{}
	if snap == nil {
		return out
	}

	for _, e := range snap.Entries() {
		sev, ok := t.bandsFor(e.Class).Severity(e.Density)
		if !ok {
			continue
		}

		rt := t.responseFor(e.Class)
		acts := slices.Clone(actions[sev])
		if adv, ok := classAdvisory(e.Class, e.Density); ok {
			acts = append(acts, adv)
		}

		msg := messages[sev]
		if e.Stale {
			msg += " (last known reading)"
		}

		out = append(out, domain.SafetyAlert{
			LocationID:         e.LocationID,
			Class:              domain.AlertCrowdDensity,
			Severity:           sev,
			Message:            fmt.Sprintf("%s at %s (%.0f%% of capacity)", msg, e.LocationID, e.Density*100),
			AffectedCount:      e.Count,
			ResponseTimeMin:    rt,
			Priority:           Priority(sev, e.Count, rt),
			Timestamp:          now,
			Status:             domain.StatusActive,
			RecommendedActions: acts,
		})
	}

	slices.SortStableFunc(out, func(a, b domain.SafetyAlert) int {
		if a.Priority != b.Priority {
			if a.Priority > b.Priority {
				return -1
			}
			return 1
		}
		return strings.Compare(a.LocationID, b.LocationID)
	})

	for i := range out {
		out[i].ID = fmt.Sprintf("%s-%d-%d", out[i].LocationID, i, now.Unix())
	}

	return out
}

// CountBySeverity tallies alerts by severity name.
func CountBySeverity(alerts []domain.SafetyAlert) map[string]int {
	counts := make(map[string]int, len(domain.AllSeverities))
	for _, s := range domain.AllSeverities {
		counts[s.String()] = 0
	}
	for _, a := range alerts {
		counts[a.Severity.String()]++
	}
	return counts
}
