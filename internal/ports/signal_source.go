package ports

import (
	"context"
	"crowd-route-service/internal/domain"
	"time"
)

// Observation is a crowd reading for one location.
type Observation struct {
	Count    int
	FlowRate float64
	// Movement is optional; nil means the source has no movement breakdown.
	Movement *domain.MovementMix
}

// Contract for the crowd signal feeding the crowd state model.
// Implementations are chosen at construction time (live feed or synthetic).
type SignalSource interface {
	// Name identifies the source in logs and snapshots.
	Name() string
	// Return the current reading for a location.
	Observe(ctx context.Context, loc domain.Location, at time.Time) (Observation, error)
}
