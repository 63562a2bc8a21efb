package ports

import (
	"context"
	"crowd-route-service/internal/domain"
)

// Port: a boundary for importing the static venue topology.
type TopologyLoader interface {
	// Return every location and connection. Malformed input must fail the whole load.
	LoadTopology(ctx context.Context) ([]domain.Location, []domain.Connection, error)
}
