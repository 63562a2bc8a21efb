package signals

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/ports"
	"fmt"
	"time"
)

// StaticReading is a fixed reading for one location.
type StaticReading struct {
	LocationID string  `json:"location_id"`
	Count      int     `json:"count"`
	FlowRate   float64 `json:"flow_rate"`
}

// StaticSource replays fixed readings. Locations without one fail, which the
// crowd model records as a partial update failure.
type StaticSource struct {
	m map[string]ports.Observation
}

var _ ports.SignalSource = (*StaticSource)(nil)

func NewStaticSource(readings []StaticReading) *StaticSource {
	m := make(map[string]ports.Observation, len(readings))
	for _, r := range readings {
		m[r.LocationID] = ports.Observation{Count: r.Count, FlowRate: r.FlowRate}
	}
	return &StaticSource{m: m}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Observe(ctx context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
	o, ok := s.m[loc.ID]
	if !ok {
		return ports.Observation{}, fmt.Errorf("static observe %s: %w", loc.ID, ErrNoReading)
	}
	return o, nil
}
