package config

import (
	"crowd-route-service/internal/alerts"
	"crowd-route-service/internal/crowd"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/routing"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tables are the tuning tables of the core. Every field starts from its
// documented default; a YAML file overrides individual entries.
type Tables struct {
	Thresholds  alerts.Thresholds
	Multipliers crowd.Table
	Weights     routing.Weights
}

func DefaultTables() Tables {
	return Tables{
		Thresholds:  alerts.DefaultThresholds(),
		Multipliers: crowd.DefaultTable(),
		Weights:     routing.DefaultWeights(),
	}
}

type hourBand struct {
	From  int     `yaml:"from"`
	To    int     `yaml:"to"`
	Value float64 `yaml:"value"`
}

type multiplierRow struct {
	Default float64    `yaml:"default"`
	Bands   []hourBand `yaml:"bands"`
}

type weightsFile struct {
	SpeedsKmh           map[string]float64 `yaml:"speeds_kmh"`
	RoadMultipliers     map[string]float64 `yaml:"road_multipliers"`
	Safety              map[string]float64 `yaml:"safety"`
	Crowd               map[string]float64 `yaml:"crowd"`
	CrowdPenaltyKm      *float64           `yaml:"crowd_penalty_km"`
	MinAccessibleWidthM *float64           `yaml:"min_accessible_width_m"`
}

type tablesFile struct {
	Thresholds      map[string]alerts.Bands  `yaml:"thresholds"`
	ResponseMinutes map[string]float64       `yaml:"response_minutes"`
	Multipliers     map[string]multiplierRow `yaml:"multipliers"`
	Weights         *weightsFile             `yaml:"weights"`
}

// LoadTables applies the overrides in path on top of DefaultTables.
// An empty path returns the defaults.
func LoadTables(path string) (Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("load tables: read %q: %w", path, err)
	}

	var f tablesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Tables{}, fmt.Errorf("load tables: parse %q: %w", path, err)
	}

	if err := f.apply(&t); err != nil {
		return Tables{}, fmt.Errorf("load tables: %q: %w", path, err)
	}
	return t, nil
}

func (f tablesFile) apply(t *Tables) error {
	for name, b := range f.Thresholds {
		class, err := domain.ParseLocationClass(name)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		t.Thresholds.ByClass[class] = b
	}
	for name, m := range f.ResponseMinutes {
		class, err := domain.ParseLocationClass(name)
		if err != nil {
			return fmt.Errorf("response_minutes: %w", err)
		}
		t.Thresholds.ResponseMin[class] = m
	}
	if err := t.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	rows := crowd.Table{}
	for name, r := range f.Multipliers {
		class, err := domain.ParseLocationClass(name)
		if err != nil {
			return fmt.Errorf("multipliers: %w", err)
		}
		row, err := r.build()
		if err != nil {
			return fmt.Errorf("multipliers: %s: %w", class, err)
		}
		rows[class] = row
	}
	t.Multipliers = t.Multipliers.Merge(rows)
	if err := t.Multipliers.Validate(); err != nil {
		return err
	}

	if f.Weights != nil {
		if err := f.Weights.apply(&t.Weights); err != nil {
			return fmt.Errorf("weights: %w", err)
		}
	}
	return t.Weights.Validate()
}

func (r multiplierRow) build() (crowd.HourRow, error) {
	var row crowd.HourRow
	for h := range row {
		row[h] = r.Default
	}
	for _, b := range r.Bands {
		if b.From < 0 || b.To > 23 || b.From > b.To {
			return row, fmt.Errorf("band %d-%d outside 0-23", b.From, b.To)
		}
		for h := b.From; h <= b.To; h++ {
			row[h] = b.Value
		}
	}
	return row, nil
}

func (w weightsFile) apply(dst *routing.Weights) error {
	for name, v := range w.SpeedsKmh {
		rc, err := domain.ParseRoadClass(name)
		if err != nil {
			return err
		}
		dst.SpeedsKmh[rc] = v
	}
	for name, v := range w.RoadMultipliers {
		rc, err := domain.ParseRoadClass(name)
		if err != nil {
			return err
		}
		dst.RoadMultipliers[rc] = v
	}
	for name, v := range w.Safety {
		p, err := domain.ParsePolicy(name)
		if err != nil {
			return err
		}
		dst.Safety[p] = v
	}
	for name, v := range w.Crowd {
		p, err := domain.ParsePolicy(name)
		if err != nil {
			return err
		}
		dst.Crowd[p] = v
	}
	if w.CrowdPenaltyKm != nil {
		dst.CrowdPenaltyKm = *w.CrowdPenaltyKm
	}
	if w.MinAccessibleWidthM != nil {
		dst.MinAccessibleWidthM = *w.MinAccessibleWidthM
	}
	return nil
}
