package domain

import (
	"fmt"
	"time"
)

// Severity is strictly ordered: low < medium < high < critical.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var AllSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Weight is the severity factor of the priority formula.
func (s Severity) Weight() float64 { return float64(s) }

func ParseSeverity(v string) (Severity, error) {
	for _, s := range AllSeverities {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("parse severity: unknown severity %q", v)
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type AlertClass string

const (
	AlertCrowdDensity AlertClass = "crowd_density"
	AlertFire         AlertClass = "fire"
	AlertStampede     AlertClass = "stampede"
	AlertWeather      AlertClass = "weather"
)

type AlertStatus string

const (
	StatusActive    AlertStatus = "active"
	StatusResolving AlertStatus = "resolving"
	StatusResolved  AlertStatus = "resolved"
)

// SafetyAlert is derived from a crowd snapshot by the alert generator.
// ID is unique within one generation pass.
type SafetyAlert struct {
	ID                 string
	LocationID         string
	Class              AlertClass
	Severity           Severity
	Message            string
	AffectedCount      int
	ResponseTimeMin    float64
	Priority           float64
	Timestamp          time.Time
	Status             AlertStatus
	RecommendedActions []string
}
