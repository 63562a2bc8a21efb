package routing

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/topology"
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	StepsPerKm    = 1300
	CaloriesPerKm = 50
)

type PlanRequest struct {
	Start   string
	End     string
	Profile domain.PreferenceProfile
	// Policies defaults to Profile.DefaultPolicies when empty.
	Policies []domain.Policy
}

// PlanResult carries either ranked routes or a NoRoute explanation, never both.
type PlanResult struct {
	SnapshotVersion uint64
	Routes          []domain.Route
	NoRoute         *domain.NoRouteFound
}

type Planner struct {
	weights Weights
	metrics *obs.Metrics
}

func NewPlanner(w Weights, metrics *obs.Metrics) (*Planner, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("new planner: %w", err)
	}
	return &Planner{weights: w, metrics: metrics}, nil
}

func (p *Planner) Weights() Weights { return p.weights }

// policyOutcome is the per-policy result collected after the parallel searches.
type policyOutcome struct {
	route   *domain.Route
	failure string
	blocked []domain.ExcludedNode
}

// Plan computes one route per requested policy against a single snapshot.
// Unknown endpoints and invalid policies fail the request; a policy without a
// path is dropped, and NoRoute is set only when every policy failed.
func (p *Planner) Plan(ctx context.Context, g *topology.Graph, snap *domain.CrowdSnapshot, req PlanRequest) (res *PlanResult, err error) {
	defer obs.Time(ctx, "routing.plan")(&err)

	res, err = p.plan(ctx, g, snap, req)

	switch {
	case err != nil:
		p.metrics.PlanOutcome("error")
	case res.NoRoute != nil:
		p.metrics.PlanOutcome("no_route")
	default:
		p.metrics.PlanOutcome("routes")
	}
	return res, err
}

func (p *Planner) plan(ctx context.Context, g *topology.Graph, snap *domain.CrowdSnapshot, req PlanRequest) (*PlanResult, error) {
	if g == nil {
		return nil, fmt.Errorf("plan routes: no topology loaded")
	}
	if snap == nil {
		snap = domain.NewCrowdSnapshot(0, time.Time{}, "none", 1, nil, nil)
	}

	start, err := g.Location(req.Start)
	if err != nil {
		return nil, fmt.Errorf("plan routes: start: %w", err)
	}
	end, err := g.Location(req.End)
	if err != nil {
		return nil, fmt.Errorf("plan routes: end: %w", err)
	}

	policies, err := requestedPolicies(req)
	if err != nil {
		return nil, err
	}

	out := &PlanResult{SnapshotVersion: snap.Version()}

	if start.ID == end.ID {
		for _, pol := range policies {
			out.Routes = append(out.Routes, p.singleNodeRoute(start, snap, pol))
		}
		rankRoutes(out.Routes)
		return out, nil
	}

	outcomes := make([]policyOutcome, len(policies))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, pol := range policies {
		eg.Go(func() error {
			began := time.Now()
			defer func() { p.metrics.PolicySearched(string(pol), time.Since(began)) }()

			o, err := p.planPolicy(egCtx, g, snap, start, end, req.Profile, pol)
			if err != nil {
				return fmt.Errorf("plan routes: policy %s: %w", pol, err)
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	failures := make(map[domain.Policy]string)
	var excluded []domain.ExcludedNode

	for i, o := range outcomes {
		if o.route != nil {
			out.Routes = append(out.Routes, *o.route)
			continue
		}
		failures[policies[i]] = o.failure
		excluded = append(excluded, o.blocked...)
	}

	if len(out.Routes) == 0 {
		out.NoRoute = &domain.NoRouteFound{
			Start:             start.ID,
			End:               end.ID,
			AttemptedPolicies: policies,
			PolicyFailures:    failures,
			ExcludedNodes:     excluded,
		}
		return out, nil
	}

	rankRoutes(out.Routes)
	return out, nil
}

func requestedPolicies(req PlanRequest) ([]domain.Policy, error) {
	if req.Profile.Policy != "" {
		if _, err := domain.ParsePolicy(string(req.Profile.Policy)); err != nil {
			return nil, fmt.Errorf("plan routes: %w: %v", domain.ErrInvalidRequest, err)
		}
	}

	requested := req.Policies
	if len(requested) == 0 {
		requested = req.Profile.DefaultPolicies()
	}

	out := make([]domain.Policy, 0, len(requested))
	for _, pol := range requested {
		if _, err := domain.ParsePolicy(string(pol)); err != nil {
			return nil, fmt.Errorf("plan routes: %w: %v", domain.ErrInvalidRequest, err)
		}
		if !slices.Contains(out, pol) {
			out = append(out, pol)
		}
	}
	return out, nil
}

// planPolicy searches one policy view. Views share the graph and differ only
// in the cost closure.
func (p *Planner) planPolicy(
	ctx context.Context,
	g *topology.Graph,
	snap *domain.CrowdSnapshot,
	start, end domain.Location,
	profile domain.PreferenceProfile,
	pol domain.Policy,
) (policyOutcome, error) {
	weather := snap.WeatherFactor()

	cost := func(n topology.Neighbor) (float64, string) {
		if reason, blocked := p.weights.Blocked(n.Connection, profile, pol); blocked {
			return math.Inf(1), reason
		}
		return p.weights.EdgeCost(n.Connection, n.Location, snap.DensityOf(n.Location.ID), weather, profile, pol), ""
	}

	sr, err := search(ctx, g, start.ID, end.ID, cost)
	if err != nil {
		return policyOutcome{}, err
	}

	if !sr.found {
		var excluded []domain.ExcludedNode
		ids := make([]string, 0, len(sr.blocked))
		for id := range sr.blocked {
			if !sr.settled[id] {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		for _, id := range ids {
			excluded = append(excluded, domain.ExcludedNode{LocationID: id, Policy: pol, Reason: sr.blocked[id]})
		}

		return policyOutcome{
			failure: fmt.Sprintf("no usable path from %s to %s", start.ID, end.ID),
			blocked: excluded,
		}, nil
	}

	route, err := p.assemble(g, snap, sr.path, profile, pol)
	if err != nil {
		return policyOutcome{}, err
	}
	return policyOutcome{route: &route}, nil
}

// assemble evaluates every segment against the same snapshot used for the search.
func (p *Planner) assemble(
	g *topology.Graph,
	snap *domain.CrowdSnapshot,
	path []string,
	profile domain.PreferenceProfile,
	pol domain.Policy,
) (domain.Route, error) {
	weather := snap.WeatherFactor()
	route := domain.Route{Policy: pol}

	var safety, access, crowd float64

	for i := 0; i+1 < len(path); i++ {
		conn, to, err := connectionBetween(g, path[i], path[i+1])
		if err != nil {
			return domain.Route{}, err
		}

		density := snap.DensityOf(to.ID)
		speed := p.weights.EffectiveSpeed(conn, density, weather, profile.TransportMode)

		seg := domain.RouteSegment{
			From:                path[i],
			To:                  to.ID,
			DistanceKm:          conn.DistanceKm,
			DurationMin:         conn.DistanceKm / speed * 60,
			CrowdFactor:         density,
			SafetyFactor:        math.Min(conn.SafetyScore, to.SafetyScore),
			AccessibilityFactor: math.Min(conn.AccessibilityScore, to.AccessibilityScore),
			RoadClass:           conn.RoadClass,
			WidthM:              conn.WidthM,
			Cost:                p.weights.EdgeCost(conn, to, density, weather, profile, pol),
		}

		route.Segments = append(route.Segments, seg)
		route.TotalDistanceKm += seg.DistanceKm
		route.TotalDurationMin += seg.DurationMin
		route.TotalCost += seg.Cost
		safety += seg.SafetyFactor
		access += seg.AccessibilityFactor
		crowd += seg.CrowdFactor
	}

	n := float64(len(route.Segments))
	route.SafetyScore = safety / n
	route.AccessibilityScore = access / n
	route.CrowdLevel = crowd / n

	wps, err := waypoints(g, path)
	if err != nil {
		return domain.Route{}, err
	}
	route.Waypoints = wps
	addHealthExtras(&route)

	return route, nil
}

func (p *Planner) singleNodeRoute(loc domain.Location, snap *domain.CrowdSnapshot, pol domain.Policy) domain.Route {
	return domain.Route{
		Policy: pol,
		Waypoints: []domain.Waypoint{{
			Rank:        1,
			LocationID:  loc.ID,
			Name:        loc.Name,
			Class:       loc.Class,
			Coordinates: loc.Coordinates,
		}},
		SafetyScore:        loc.SafetyScore,
		AccessibilityScore: loc.AccessibilityScore,
		CrowdLevel:         snap.DensityOf(loc.ID),
	}
}

func connectionBetween(g *topology.Graph, from, to string) (domain.Connection, domain.Location, error) {
	ns, err := g.Neighbors(from)
	if err != nil {
		return domain.Connection{}, domain.Location{}, err
	}
	for _, n := range ns {
		if n.Location.ID == to {
			return n.Connection, n.Location, nil
		}
	}
	return domain.Connection{}, domain.Location{}, fmt.Errorf("assemble route: no connection %s-%s", from, to)
}

func waypoints(g *topology.Graph, path []string) ([]domain.Waypoint, error) {
	out := make([]domain.Waypoint, 0, len(path))
	for i, id := range path {
		loc, err := g.Location(id)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Waypoint{
			Rank:        i + 1,
			LocationID:  loc.ID,
			Name:        loc.Name,
			Class:       loc.Class,
			Coordinates: loc.Coordinates,
		})
	}
	return out, nil
}

func addHealthExtras(r *domain.Route) {
	r.Steps = int(math.Round(r.TotalDistanceKm * StepsPerKm))
	r.Calories = int(math.Round(r.TotalDistanceKm * CaloriesPerKm))
}
