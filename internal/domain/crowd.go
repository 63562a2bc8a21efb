package domain

import (
	"math"
	"slices"
	"time"
)

// MovementMix is the share of people in each movement state at a location.
// Published mixes always sum to 1.0.
type MovementMix struct {
	Stationary float64 `json:"stationary"`
	SlowMoving float64 `json:"slow_moving"`
	FastMoving float64 `json:"fast_moving"`
	Entering   float64 `json:"entering"`
	Exiting    float64 `json:"exiting"`
}

// DefaultMovementMix is used when a live feed reports counts without a movement breakdown.
var DefaultMovementMix = MovementMix{
	Stationary: 0.4,
	SlowMoving: 0.3,
	FastMoving: 0.15,
	Entering:   0.075,
	Exiting:    0.075,
}

func (m MovementMix) Sum() float64 {
	return m.Stationary + m.SlowMoving + m.FastMoving + m.Entering + m.Exiting
}

// Normalize rescales the mix so the fractions sum to 1.0.
// Negative fractions are treated as zero; an all-zero mix becomes DefaultMovementMix.
func (m MovementMix) Normalize() MovementMix {
	clip := func(v float64) float64 {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}

	m = MovementMix{
		Stationary: clip(m.Stationary),
		SlowMoving: clip(m.SlowMoving),
		FastMoving: clip(m.FastMoving),
		Entering:   clip(m.Entering),
		Exiting:    clip(m.Exiting),
	}

	total := m.Sum()
	if total <= 0 {
		return DefaultMovementMix
	}

	return MovementMix{
		Stationary: m.Stationary / total,
		SlowMoving: m.SlowMoving / total,
		FastMoving: m.FastMoving / total,
		Entering:   m.Entering / total,
		Exiting:    m.Exiting / total,
	}
}

// LocationCrowd holds the crowd metrics for one location inside a snapshot.
type LocationCrowd struct {
	LocationID    string
	Class         LocationClass
	Capacity      int
	Count         int
	Density       float64
	FlowRate      float64
	Movement      MovementMix
	PredictedPeak *time.Time
	ObservedAt    time.Time
	// Stale marks values carried over from an earlier snapshot after a failed update.
	Stale bool
}

// Overcapacity reports whether the count exceeds the location capacity.
func (c LocationCrowd) Overcapacity() bool { return c.Capacity > 0 && c.Count > c.Capacity }

// Density returns count/capacity clamped to [0,1].
func Density(count, capacity int) float64 {
	if capacity <= 0 || count <= 0 {
		return 0
	}
	d := float64(count) / float64(capacity)
	if d > 1 {
		return 1
	}
	return d
}

// PartialCrowdUpdateFailure records a location whose refresh failed.
// The location keeps its previously published values.
type PartialCrowdUpdateFailure struct {
	LocationID string    `json:"location_id"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// CrowdSnapshot is an immutable, versioned capture of per-location crowd metrics.
// Readers may hold a snapshot for as long as they need; refreshes publish a new one.
type CrowdSnapshot struct {
	version       uint64
	generatedAt   time.Time
	source        string
	weatherFactor float64
	entries       map[string]LocationCrowd
	ids           []string
	diagnostics   []PartialCrowdUpdateFailure
}

// NewCrowdSnapshot copies entries and diagnostics into a new immutable snapshot.
func NewCrowdSnapshot(
	version uint64,
	generatedAt time.Time,
	source string,
	weatherFactor float64,
	entries map[string]LocationCrowd,
	diagnostics []PartialCrowdUpdateFailure,
) *CrowdSnapshot {
	own := make(map[string]LocationCrowd, len(entries))
	ids := make([]string, 0, len(entries))
	for id, e := range entries {
		own[id] = e
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return &CrowdSnapshot{
		version:       version,
		generatedAt:   generatedAt,
		source:        source,
		weatherFactor: weatherFactor,
		entries:       own,
		ids:           ids,
		diagnostics:   slices.Clone(diagnostics),
	}
}

func (s *CrowdSnapshot) Version() uint64        { return s.version }
func (s *CrowdSnapshot) GeneratedAt() time.Time { return s.generatedAt }
func (s *CrowdSnapshot) Source() string         { return s.source }
func (s *CrowdSnapshot) WeatherFactor() float64 { return s.weatherFactor }
func (s *CrowdSnapshot) Len() int               { return len(s.entries) }

// Get returns the crowd entry for a location.
func (s *CrowdSnapshot) Get(id string) (LocationCrowd, bool) {
	if s == nil {
		return LocationCrowd{}, false
	}
	e, ok := s.entries[id]
	return e, ok
}

// DensityOf returns the density of a location, or 0 when it is not in the snapshot.
func (s *CrowdSnapshot) DensityOf(id string) float64 {
	e, _ := s.Get(id)
	return e.Density
}

// IDs returns the location ids in ascending order.
func (s *CrowdSnapshot) IDs() []string { return slices.Clone(s.ids) }

// Entries returns all entries ordered by location id.
func (s *CrowdSnapshot) Entries() []LocationCrowd {
	out := make([]LocationCrowd, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.entries[id])
	}
	return out
}

func (s *CrowdSnapshot) Diagnostics() []PartialCrowdUpdateFailure {
	return slices.Clone(s.diagnostics)
}
