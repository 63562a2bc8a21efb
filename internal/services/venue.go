package services

import (
	"context"
	"crowd-route-service/internal/alerts"
	"crowd-route-service/internal/crowd"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/ports"
	"crowd-route-service/internal/routing"
	"crowd-route-service/internal/topology"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// VenueService is the boundary the HTTP adapter and CLI talk to. It pairs the
// current graph with the current crowd snapshot for every request.
type VenueService struct {
	loader     ports.TopologyLoader
	model      *crowd.Model
	planner    *routing.Planner
	thresholds alerts.Thresholds
	metrics    *obs.Metrics
	buildOpts  []topology.BuildOption
	now        func() time.Time

	graph atomic.Pointer[topology.Graph]
}

type VenueDeps struct {
	Loader     ports.TopologyLoader
	Model      *crowd.Model
	Planner    *routing.Planner
	Thresholds alerts.Thresholds
	Metrics    *obs.Metrics
	BuildOpts  []topology.BuildOption
	Now        func() time.Time
}

// LoadGraph imports and validates the topology. Any problem is fatal for startup.
func LoadGraph(ctx context.Context, loader ports.TopologyLoader, opts ...topology.BuildOption) (*topology.Graph, error) {
	locs, conns, err := loader.LoadTopology(ctx)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	g, err := topology.Build(locs, conns, opts...)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return g, nil
}

func NewVenueService(g *topology.Graph, deps VenueDeps) (*VenueService, error) {
	if g == nil {
		return nil, errors.New("new venue service: graph is nil")
	}
	if deps.Model == nil || deps.Planner == nil {
		return nil, errors.New("new venue service: model and planner are required")
	}

	s := &VenueService{
		loader:     deps.Loader,
		model:      deps.Model,
		planner:    deps.Planner,
		thresholds: deps.Thresholds,
		metrics:    deps.Metrics,
		buildOpts:  deps.BuildOpts,
		now:        deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.graph.Store(g)
	s.model.SetTopology(g)

	return s, nil
}

func (s *VenueService) Graph() *topology.Graph { return s.graph.Load() }

func (s *VenueService) Locations() []domain.Location { return s.graph.Load().Locations() }

// customPrefix marks endpoints given as raw coordinates: custom_<lat>_<lng>.
const customPrefix = "custom_"

// resolveEndpoint maps a coordinate endpoint to the nearest registered location.
func resolveEndpoint(g *topology.Graph, id string) (string, error) {
	if !strings.HasPrefix(id, customPrefix) || g.Has(id) {
		return id, nil
	}

	parts := strings.Split(strings.TrimPrefix(id, customPrefix), "_")
	if len(parts) != 2 {
		return "", fmt.Errorf("resolve %q: %w: want custom_<lat>_<lng>", id, domain.ErrInvalidRequest)
	}
	lat, errLat := strconv.ParseFloat(parts[0], 64)
	lng, errLng := strconv.ParseFloat(parts[1], 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", fmt.Errorf("resolve %q: %w: invalid coordinates", id, domain.ErrInvalidRequest)
	}

	loc, _, err := g.Nearest(domain.Coordinates{Lat: lat, Lng: lng})
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", id, err)
	}
	return loc.ID, nil
}

// PlanRoutes plans against one graph and one snapshot captured at call time.
func (s *VenueService) PlanRoutes(ctx context.Context, req routing.PlanRequest) (*routing.PlanResult, error) {
	g := s.graph.Load()
	snap := s.model.Snapshot()

	var err error
	if req.Start, err = resolveEndpoint(g, req.Start); err != nil {
		return nil, err
	}
	if req.End, err = resolveEndpoint(g, req.End); err != nil {
		return nil, err
	}

	return s.planner.Plan(ctx, g, snap, req)
}

func (s *VenueService) Snapshot() *domain.CrowdSnapshot { return s.model.Snapshot() }

// RefreshCrowdState triggers a new generation, debounced by the model.
func (s *VenueService) RefreshCrowdState(ctx context.Context) (*domain.CrowdSnapshot, error) {
	snap, err := s.model.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	s.recordAlerts(alerts.GenerateAlerts(snap, s.thresholds, s.now()))
	return snap, nil
}

// CurrentAlerts derives alerts from the current snapshot.
func (s *VenueService) CurrentAlerts() []domain.SafetyAlert {
	out := alerts.GenerateAlerts(s.model.Snapshot(), s.thresholds, s.now())
	s.recordAlerts(out)
	return out
}

// RecordAlerts updates the active-alert gauge for the current snapshot.
func (s *VenueService) RecordAlerts() {
	s.recordAlerts(alerts.GenerateAlerts(s.model.Snapshot(), s.thresholds, s.now()))
}

func (s *VenueService) recordAlerts(out []domain.SafetyAlert) {
	s.metrics.AlertsActive(alerts.CountBySeverity(out))
}

func (s *VenueService) Summary() crowd.Summary { return crowd.Summarize(s.model.Snapshot()) }

type LocationDetail struct {
	Location        domain.Location
	Crowd           domain.LocationCrowd
	HasCrowd        bool
	Recommendations []string
	Alerts          []domain.SafetyAlert
}

func (s *VenueService) LocationDetail(id string) (LocationDetail, error) {
	loc, err := s.graph.Load().Location(id)
	if err != nil {
		return LocationDetail{}, err
	}

	snap := s.model.Snapshot()
	entry, ok := snap.Get(id)
	d := LocationDetail{Location: loc, Crowd: entry, HasCrowd: ok}
	if ok {
		d.Recommendations = crowd.Recommendations(entry, s.now().Hour())
	}

	for _, a := range alerts.GenerateAlerts(snap, s.thresholds, s.now()) {
		if a.LocationID == id {
			d.Alerts = append(d.Alerts, a)
		}
	}
	return d, nil
}

// ReloadTopology re-imports the topology and swaps it in. On any failure the
// current graph keeps serving.
func (s *VenueService) ReloadTopology(ctx context.Context) (g *topology.Graph, err error) {
	defer obs.Time(ctx, "topology.reload")(&err)

	if s.loader == nil {
		return nil, errors.New("reload topology: no loader configured")
	}

	g, err = LoadGraph(ctx, s.loader, s.buildOpts...)
	if err != nil {
		return nil, fmt.Errorf("reload topology: %w", err)
	}

	s.graph.Store(g)
	s.model.SetTopology(g)
	log.Printf("topology reloaded locations=%d connections=%d", g.Len(), len(g.Connections()))

	return g, nil
}
