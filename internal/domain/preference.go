package domain

import "fmt"

// Policy is a named route preference strategy.
type Policy string

const (
	PolicyOptimal    Policy = "optimal"
	PolicyFastest    Policy = "fastest"
	PolicySafest     Policy = "safest"
	PolicyAccessible Policy = "accessible"
)

// AllPolicies is the canonical policy order.
var AllPolicies = []Policy{PolicyOptimal, PolicyFastest, PolicySafest, PolicyAccessible}

func ParsePolicy(s string) (Policy, error) {
	for _, p := range AllPolicies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("parse policy: unknown policy %q", s)
}

// TransportMode scales pedestrian speeds.
type TransportMode string

const (
	ModeWalking    TransportMode = "walking"
	ModeWheelchair TransportMode = "wheelchair"
	ModeERickshaw  TransportMode = "e_rickshaw"
)

func ParseTransportMode(s string) (TransportMode, error) {
	switch TransportMode(s) {
	case "":
		return ModeWalking, nil
	case ModeWalking, ModeWheelchair, ModeERickshaw:
		return TransportMode(s), nil
	}
	return "", fmt.Errorf("parse transport mode: unknown mode %q", s)
}

// SpeedScale is the multiplier applied to road-class walking speeds.
func (m TransportMode) SpeedScale() float64 {
	switch m {
	case ModeWheelchair:
		return 0.8
	case ModeERickshaw:
		return 2.5
	default:
		return 1.0
	}
}

// PreferenceProfile is supplied per request and never persisted.
type PreferenceProfile struct {
	Policy                Policy
	AvoidCrowds           bool
	AccessibilityRequired bool
	TransportMode         TransportMode
}

// DefaultPolicies returns optimal, fastest, safest, plus accessible when required.
func (p PreferenceProfile) DefaultPolicies() []Policy {
	policies := []Policy{PolicyOptimal, PolicyFastest, PolicySafest}
	if p.AccessibilityRequired || p.Policy == PolicyAccessible {
		policies = append(policies, PolicyAccessible)
	}
	return policies
}
