// Package alerts derives prioritized safety alerts from a crowd snapshot.
package alerts

import (
	"crowd-route-service/internal/domain"
	"fmt"
)

// Bands holds the density cut points for one location class.
// A location at or above a cut point reaches that severity.
type Bands struct {
	Low      float64 `yaml:"low" json:"low"`
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Validate requires strictly increasing cut points inside (0,1].
func (b Bands) Validate() error {
	cuts := []float64{b.Low, b.Medium, b.High, b.Critical}
	prev := 0.0
	for i, c := range cuts {
		if !(c > prev) || c > 1 {
			return fmt.Errorf("threshold bands %v: cut point %d (%v) must be in (%v,1]", cuts, i+1, c, prev)
		}
		prev = c
	}
	return nil
}

// Severity returns the highest band reached by density.
func (b Bands) Severity(density float64) (domain.Severity, bool) {
	switch {
	case density >= b.Critical:
		return domain.SeverityCritical, true
	case density >= b.High:
		return domain.SeverityHigh, true
	case density >= b.Medium:
		return domain.SeverityMedium, true
	case density >= b.Low:
		return domain.SeverityLow, true
	}
	return 0, false
}

// Thresholds is the per-class band table. Classes without an entry use Fallback.
type Thresholds struct {
	ByClass  map[domain.LocationClass]Bands
	Fallback Bands
	// ResponseMin is the estimated response time in minutes per class.
	ResponseMin        map[domain.LocationClass]float64
	DefaultResponseMin float64
}

func DefaultThresholds() Thresholds {
	ghat := Bands{Low: 0.6, Medium: 0.75, High: 0.85, Critical: 0.95}

	return Thresholds{
		ByClass: map[domain.LocationClass]Bands{
			domain.ClassGhat:      ghat,
			domain.ClassTemple:    {Low: 0.7, Medium: 0.8, High: 0.9, Critical: 0.98},
			domain.ClassTransport: {Low: 0.5, Medium: 0.7, High: 0.85, Critical: 0.95},
			domain.ClassParking:   {Low: 0.6, Medium: 0.75, High: 0.9, Critical: 0.98},
			domain.ClassFood:      {Low: 0.65, Medium: 0.8, High: 0.9, Critical: 0.95},
			domain.ClassMedical:   {Low: 0.3, Medium: 0.5, High: 0.7, Critical: 0.85},
		},
		Fallback: ghat,
		ResponseMin: map[domain.LocationClass]float64{
			domain.ClassMedical:   2,
			domain.ClassSecurity:  3,
			domain.ClassTransport: 4,
			domain.ClassGhat:      5,
			domain.ClassTemple:    5,
		},
		DefaultResponseMin: 6,
	}
}

// Uniform returns thresholds that apply the same bands to every class.
func Uniform(b Bands) Thresholds {
	t := DefaultThresholds()
	t.ByClass = nil
	t.Fallback = b
	return t
}

func (t Thresholds) Validate() error {
	if err := t.Fallback.Validate(); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	for class, b := range t.ByClass {
		if _, err := domain.ParseLocationClass(string(class)); err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("class %s: %w", class, err)
		}
	}
	for class, m := range t.ResponseMin {
		if !(m >= 0) {
			return fmt.Errorf("class %s: response time must not be negative", class)
		}
	}
	return nil
}

func (t Thresholds) bandsFor(class domain.LocationClass) Bands {
	if b, ok := t.ByClass[class]; ok {
		return b
	}
	return t.Fallback
}

func (t Thresholds) responseFor(class domain.LocationClass) float64 {
	if m, ok := t.ResponseMin[class]; ok {
		return m
	}
	return t.DefaultResponseMin
}
