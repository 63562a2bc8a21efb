package domain

import "fmt"

// LocationClass is the category of a place inside the venue.
type LocationClass string

const (
	ClassGhat      LocationClass = "ghat"
	ClassTemple    LocationClass = "temple"
	ClassTransport LocationClass = "transport"
	ClassFood      LocationClass = "food"
	ClassMedical   LocationClass = "medical"
	ClassParking   LocationClass = "parking"
	ClassRest      LocationClass = "rest"
	ClassInfo      LocationClass = "info"
	ClassSecurity  LocationClass = "security"
	ClassVIP       LocationClass = "vip"
	ClassGeneral   LocationClass = "general"
)

// AllClasses lists every location class in a stable order.
var AllClasses = []LocationClass{
	ClassGhat, ClassTemple, ClassTransport, ClassFood, ClassMedical, ClassParking,
	ClassRest, ClassInfo, ClassSecurity, ClassVIP, ClassGeneral,
}

func ParseLocationClass(s string) (LocationClass, error) {
	for _, c := range AllClasses {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("parse location class: unknown class %q", s)
}

// Location is a point of interest in the venue.
// Locations are immutable after the registry is loaded; the registry owns them.
type Location struct {
	ID                 string
	Name               string
	Coordinates        Coordinates
	Class              LocationClass
	Capacity           int
	AccessibilityScore float64
	SafetyScore        float64

	// Optional importer attributes.
	Amenities         []string
	EmergencyServices bool
	BaseCrowd         int
	BaseFlowRate      float64
}

// EffectiveBaseCrowd returns the base crowd used by the synthetic generator.
func (l Location) EffectiveBaseCrowd() int {
	if l.BaseCrowd > 0 {
		return l.BaseCrowd
	}
	return l.Capacity / 2
}

// EffectiveBaseFlowRate returns the base flow in people per minute.
func (l Location) EffectiveBaseFlowRate() float64 {
	if l.BaseFlowRate > 0 {
		return l.BaseFlowRate
	}
	return float64(l.Capacity) / 30
}
