// Package routing plans crowd-aware routes over the venue graph.
//
// One canonical edge cost is parameterized by policy; the planner runs one
// shortest-path search per requested policy against a single crowd snapshot.
package routing

import (
	"crowd-route-service/internal/domain"
	"fmt"
	"math"
)

// Weights parameterizes the edge cost. All policies share one formula:
//
//	cost = distance_term + crowd_penalty + safety_penalty + accessibility_penalty + road_class_surcharge
type Weights struct {
	// SpeedsKmh is the base walking speed per road class.
	SpeedsKmh map[domain.RoadClass]float64
	// RoadMultipliers add (multiplier-1) x distance to the cost.
	RoadMultipliers map[domain.RoadClass]float64
	// Safety scales 1-min(connection, destination) safety per policy.
	Safety map[domain.Policy]float64
	// Crowd scales the crowd penalty per policy when crowds are avoided.
	Crowd map[domain.Policy]float64

	CrowdPenaltyKm              float64
	AccessiblePolicyWeight      float64
	AccessibilityRequiredWeight float64
	MinAccessibleWidthM         float64
	ReferenceSpeedKmh           float64
	MinCrowdSlowdown            float64
}

func DefaultWeights() Weights {
	return Weights{
		SpeedsKmh: map[domain.RoadClass]float64{
			domain.RoadPedestrian: 5.0,
			domain.RoadService:    4.5,
			domain.RoadMain:       4.5,
			domain.RoadEmergency:  5.0,
			domain.RoadArterial:   4.0,
			domain.RoadRestricted: 3.0,
		},
		RoadMultipliers: map[domain.RoadClass]float64{
			domain.RoadPedestrian: 1.0,
			domain.RoadService:    1.1,
			domain.RoadMain:       1.2,
			domain.RoadEmergency:  1.3,
			domain.RoadArterial:   1.4,
			domain.RoadRestricted: 2.0,
		},
		Safety: map[domain.Policy]float64{
			domain.PolicyOptimal:    1,
			domain.PolicyFastest:    0.5,
			domain.PolicySafest:     10,
			domain.PolicyAccessible: 2,
		},
		Crowd: map[domain.Policy]float64{
			domain.PolicyOptimal:    1,
			domain.PolicyFastest:    0.5,
			domain.PolicySafest:     1.5,
			domain.PolicyAccessible: 1,
		},
		CrowdPenaltyKm:              2.0,
		AccessiblePolicyWeight:      10,
		AccessibilityRequiredWeight: 2,
		MinAccessibleWidthM:         2.0,
		ReferenceSpeedKmh:           5.0,
		MinCrowdSlowdown:            0.3,
	}
}

// Validate rejects weights that could produce a negative or undefined cost.
func (w Weights) Validate() error {
	for _, rc := range domain.AllRoadClasses {
		if s := w.SpeedsKmh[rc]; !(s > 0) {
			return fmt.Errorf("weights: speed for %s must be positive, got %v", rc, s)
		}
		if m := w.RoadMultipliers[rc]; !(m >= 1) {
			return fmt.Errorf("weights: road multiplier for %s must be >= 1, got %v", rc, m)
		}
	}
	for _, p := range domain.AllPolicies {
		if v := w.Safety[p]; !(v >= 0) {
			return fmt.Errorf("weights: safety weight for %s must not be negative", p)
		}
		if v := w.Crowd[p]; !(v >= 0) {
			return fmt.Errorf("weights: crowd weight for %s must not be negative", p)
		}
	}
	if !(w.CrowdPenaltyKm >= 0) || !(w.AccessiblePolicyWeight >= 0) || !(w.AccessibilityRequiredWeight >= 0) {
		return fmt.Errorf("weights: penalties must not be negative")
	}
	if !(w.ReferenceSpeedKmh > 0) {
		return fmt.Errorf("weights: reference speed must be positive")
	}
	if !(w.MinCrowdSlowdown > 0) || w.MinCrowdSlowdown > 1 {
		return fmt.Errorf("weights: minimum crowd slowdown must be in (0,1]")
	}
	return nil
}

func (w Weights) accessibilityWeight(profile domain.PreferenceProfile, policy domain.Policy) float64 {
	switch {
	case policy == domain.PolicyAccessible:
		return w.AccessiblePolicyWeight
	case profile.AccessibilityRequired:
		return w.AccessibilityRequiredWeight
	}
	return 0
}

// Blocked reports whether conn is unusable for the request, with the reason.
// Narrow connections are excluded whenever accessibility is mandatory.
func (w Weights) Blocked(conn domain.Connection, profile domain.PreferenceProfile, policy domain.Policy) (string, bool) {
	mandatory := profile.AccessibilityRequired || policy == domain.PolicyAccessible
	if mandatory && conn.WidthM < w.MinAccessibleWidthM {
		return fmt.Sprintf("connection %s-%s width %.1fm below accessible minimum %.1fm",
			conn.A, conn.B, conn.WidthM, w.MinAccessibleWidthM), true
	}
	return "", false
}

// CrowdSlowdown is the speed factor for a destination at the given density.
func (w Weights) CrowdSlowdown(density float64) float64 {
	return math.Max(w.MinCrowdSlowdown, 1-0.7*clampUnit(density))
}

// EffectiveSpeed is the traversal speed in km/h:
// road-class speed x transport mode x crowd slowdown x weather.
func (w Weights) EffectiveSpeed(conn domain.Connection, density, weather float64, mode domain.TransportMode) float64 {
	base, ok := w.SpeedsKmh[conn.RoadClass]
	if !ok || !(base > 0) {
		base = w.ReferenceSpeedKmh
	}
	return base * mode.SpeedScale() * w.CrowdSlowdown(density) * weatherOrOne(weather)
}

// EdgeCost scores traversing conn into to. The result is never negative and is
// +Inf for blocked connections.
func (w Weights) EdgeCost(
	conn domain.Connection,
	to domain.Location,
	density, weather float64,
	profile domain.PreferenceProfile,
	policy domain.Policy,
) float64 {
	if _, blocked := w.Blocked(conn, profile, policy); blocked {
		return math.Inf(1)
	}

	dist := conn.DistanceKm

	distanceTerm := dist
	if policy == domain.PolicyFastest {
		hours := dist / w.EffectiveSpeed(conn, density, weather, profile.TransportMode)
		distanceTerm = hours * w.ReferenceSpeedKmh
	}

	var crowd float64
	if profile.AvoidCrowds {
		crowd = w.CrowdPenaltyKm * w.Crowd[policy] * clampUnit(density)
	}

	safety := w.Safety[policy] * (1 - math.Min(conn.SafetyScore, to.SafetyScore))
	access := w.accessibilityWeight(profile, policy) * (1 - math.Min(conn.AccessibilityScore, to.AccessibilityScore))

	mult, ok := w.RoadMultipliers[conn.RoadClass]
	if !ok {
		mult = 1
	}
	road := (mult - 1) * dist

	cost := distanceTerm + crowd + safety + access + road
	if math.IsNaN(cost) || cost < 0 {
		return 0
	}
	return cost
}

var defaultWeights = DefaultWeights()

// EdgeCost scores conn with the default weights.
func EdgeCost(
	conn domain.Connection,
	to domain.Location,
	density, weather float64,
	profile domain.PreferenceProfile,
	policy domain.Policy,
) float64 {
	return defaultWeights.EdgeCost(conn, to, density, weather, profile, policy)
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func weatherOrOne(f float64) float64 {
	if !(f > 0) || f > 1 {
		return 1
	}
	return f
}
