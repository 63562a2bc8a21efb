// Package topology holds the location registry and the undirected connectivity graph.
//
// A Graph is built once from importer output and never mutated; a re-import builds a
// new Graph that callers swap in atomically.
package topology

import (
	"crowd-route-service/internal/domain"
	"fmt"
	"math"
	"slices"
)

// Neighbor is an adjacent location together with the connection leading to it.
type Neighbor struct {
	Location   domain.Location
	Connection domain.Connection
}

// Graph is an immutable registry of locations plus their connections.
// It is safe for concurrent reads.
type Graph struct {
	locations   map[string]domain.Location
	ids         []string
	adjacency   map[string][]Neighbor
	connections []domain.Connection
}

// Build validates the importer output and returns the graph.
// Every problem found is reported in a single *domain.GraphBuildError.
func Build(locations []domain.Location, connections []domain.Connection, opts ...BuildOption) (*Graph, error) {
	cfg := defaultBuildOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	var problems []string
	g := &Graph{
		locations: make(map[string]domain.Location, len(locations)),
		adjacency: make(map[string][]Neighbor, len(locations)),
	}

	for i, loc := range locations {
		if p := validateLocation(loc); p != "" {
			problems = append(problems, fmt.Sprintf("location #%d %q: %s", i+1, loc.ID, p))
			continue
		}
		if _, dup := g.locations[loc.ID]; dup {
			problems = append(problems, fmt.Sprintf("location %q: duplicate id", loc.ID))
			continue
		}
		g.locations[loc.ID] = loc
		g.ids = append(g.ids, loc.ID)
	}
	slices.Sort(g.ids)

	seen := make(map[string]struct{}, len(connections))
	for i, c := range connections {
		if p := g.validateConnection(c); p != "" {
			problems = append(problems, fmt.Sprintf("connection #%d %s-%s: %s", i+1, c.A, c.B, p))
			continue
		}
		if _, dup := seen[c.Key()]; dup {
			problems = append(problems, fmt.Sprintf("connection %s-%s: duplicate pair", c.A, c.B))
			continue
		}
		seen[c.Key()] = struct{}{}

		g.connections = append(g.connections, c)
		g.adjacency[c.A] = append(g.adjacency[c.A], Neighbor{Location: g.locations[c.B], Connection: c})
		g.adjacency[c.B] = append(g.adjacency[c.B], Neighbor{Location: g.locations[c.A], Connection: c})
	}

	// Neighbor order is part of the determinism contract of the planner.
	for id := range g.adjacency {
		slices.SortFunc(g.adjacency[id], func(a, b Neighbor) int {
			if a.Location.ID < b.Location.ID {
				return -1
			}
			if a.Location.ID > b.Location.ID {
				return 1
			}
			return 0
		})
	}

	if len(problems) == 0 {
		problems = append(problems, g.checkReachability(cfg.rules)...)
	}

	if len(problems) > 0 {
		return nil, &domain.GraphBuildError{Problems: problems}
	}

	return g, nil
}

func validateLocation(loc domain.Location) string {
	switch {
	case loc.ID == "":
		return "id must not be empty"
	case loc.Capacity <= 0:
		return fmt.Sprintf("capacity must be positive, got %d", loc.Capacity)
	case !inUnit(loc.SafetyScore):
		return fmt.Sprintf("safety score %v outside [0,1]", loc.SafetyScore)
	case !inUnit(loc.AccessibilityScore):
		return fmt.Sprintf("accessibility score %v outside [0,1]", loc.AccessibilityScore)
	}

	if _, err := domain.ParseLocationClass(string(loc.Class)); err != nil {
		return err.Error()
	}
	return ""
}

func (g *Graph) validateConnection(c domain.Connection) string {
	if _, ok := g.locations[c.A]; !ok {
		return fmt.Sprintf("unknown location %q", c.A)
	}
	if _, ok := g.locations[c.B]; !ok {
		return fmt.Sprintf("unknown location %q", c.B)
	}

	switch {
	case c.A == c.B:
		return "self loop"
	case !(c.DistanceKm > 0) || math.IsInf(c.DistanceKm, 0):
		return fmt.Sprintf("distance must be positive, got %v", c.DistanceKm)
	case c.WidthM < 0:
		return fmt.Sprintf("width must not be negative, got %v", c.WidthM)
	case !inUnit(c.SafetyScore):
		return fmt.Sprintf("safety score %v outside [0,1]", c.SafetyScore)
	case !inUnit(c.AccessibilityScore):
		return fmt.Sprintf("accessibility score %v outside [0,1]", c.AccessibilityScore)
	}

	if _, err := domain.ParseRoadClass(string(c.RoadClass)); err != nil {
		return err.Error()
	}
	return ""
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// Location returns the location registered under id.
func (g *Graph) Location(id string) (domain.Location, error) {
	loc, ok := g.locations[id]
	if !ok {
		return domain.Location{}, fmt.Errorf("get location %q: %w", id, domain.ErrLocationNotFound)
	}
	return loc, nil
}

// Has reports whether id is registered.
func (g *Graph) Has(id string) bool {
	_, ok := g.locations[id]
	return ok
}

// Neighbors returns the adjacent locations of id ordered by neighbor id.
// The returned slice must not be modified.
func (g *Graph) Neighbors(id string) ([]Neighbor, error) {
	if !g.Has(id) {
		return nil, fmt.Errorf("neighbors of %q: %w", id, domain.ErrLocationNotFound)
	}
	return g.adjacency[id], nil
}

// Locations returns every location ordered by id.
func (g *Graph) Locations() []domain.Location {
	out := make([]domain.Location, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.locations[id])
	}
	return out
}

// IDs returns every location id in ascending order.
func (g *Graph) IDs() []string { return slices.Clone(g.ids) }

// Connections returns the connections in import order.
func (g *Graph) Connections() []domain.Connection { return slices.Clone(g.connections) }

func (g *Graph) Len() int { return len(g.ids) }

// Nearest returns the location closest to the given coordinates.
func (g *Graph) Nearest(at domain.Coordinates) (domain.Location, float64, error) {
	var (
		best  domain.Location
		found bool
	)
	minKm := math.Inf(1)

	for _, id := range g.ids {
		loc := g.locations[id]
		d := domain.HaversineKm(at, loc.Coordinates)
		if d < minKm {
			minKm = d
			best = loc
			found = true
		}
	}

	if !found {
		return domain.Location{}, 0, fmt.Errorf("nearest location: %w", domain.ErrLocationNotFound)
	}
	return best, minKm, nil
}
