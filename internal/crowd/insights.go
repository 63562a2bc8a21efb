package crowd

import (
	"crowd-route-service/internal/domain"
	"time"
)

// Recommendations returns visitor advice for one location: a density band
// followed by an optional time-of-day hint.
func Recommendations(e domain.LocationCrowd, hour int) []string {
	var out []string

	switch d := e.Density; {
	case d > 0.9:
		out = append(out, "Avoid this location if possible", "Use alternative routes", "Wait for crowd levels to decrease")
	case d > 0.7:
		out = append(out, "Exercise patience - expect delays", "Stay hydrated and take breaks", "Follow crowd management instructions")
	case d > 0.5:
		out = append(out, "Good time to visit", "Moderate crowd levels expected", "Plan for short waiting times")
	default:
		out = append(out, "Excellent time to visit", "Low crowd levels", "Minimal waiting expected")
	}

	switch {
	case hour >= 4 && hour <= 7:
		out = append(out, "Early morning - ideal for peaceful experience")
	case hour >= 12 && hour <= 16:
		out = append(out, "Afternoon - carry sun protection")
	case hour >= 17 && hour <= 20:
		out = append(out, "Evening - beautiful lighting but expect crowds")
	}

	return out
}

// HotspotDensity is the density above which a location is reported as a hotspot.
const HotspotDensity = 0.8

type Hotspot struct {
	LocationID string  `json:"location_id"`
	Density    float64 `json:"density"`
	Count      int     `json:"crowd_count"`
	Severity   string  `json:"severity"`
}

// Summary aggregates one snapshot.
type Summary struct {
	Version       uint64    `json:"version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Source        string    `json:"source"`
	Locations     int       `json:"total_locations"`
	TotalCount    int       `json:"total_crowd_count"`
	MeanDensity   float64   `json:"average_density"`
	TotalFlowRate float64   `json:"total_flow_rate"`
	Hotspots      []Hotspot `json:"hotspots"`
	Status        string    `json:"safety_status"`
	StaleEntries  int       `json:"stale_entries"`
}

func Summarize(s *domain.CrowdSnapshot) Summary {
	sum := Summary{
		Version:     s.Version(),
		GeneratedAt: s.GeneratedAt(),
		Source:      s.Source(),
		Locations:   s.Len(),
		Hotspots:    []Hotspot{},
	}

	var densities float64
	for _, e := range s.Entries() {
		sum.TotalCount += e.Count
		sum.TotalFlowRate += e.FlowRate
		densities += e.Density
		if e.Stale {
			sum.StaleEntries++
		}

		if e.Density > HotspotDensity {
			sev := "high"
			if e.Density > 0.95 {
				sev = "critical"
			}
			sum.Hotspots = append(sum.Hotspots, Hotspot{
				LocationID: e.LocationID,
				Density:    e.Density,
				Count:      e.Count,
				Severity:   sev,
			})
		}
	}

	if sum.Locations > 0 {
		sum.MeanDensity = densities / float64(sum.Locations)
	}

	switch {
	case sum.MeanDensity > 0.9:
		sum.Status = "critical"
	case sum.MeanDensity > 0.7:
		sum.Status = "high"
	default:
		sum.Status = "moderate"
	}

	return sum
}
