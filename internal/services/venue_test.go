package services

import (
	"context"
	"crowd-route-service/internal/adapters/signals"
	"crowd-route-service/internal/alerts"
	"crowd-route-service/internal/crowd"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/ports"
	"crowd-route-service/internal/routing"
	"crowd-route-service/internal/topology"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	locs  []domain.Location
	conns []domain.Connection
	err   error
}

func (l *stubLoader) LoadTopology(context.Context) ([]domain.Location, []domain.Connection, error) {
	return l.locs, l.conns, l.err
}

// ghatSource reports a reading for the ghat only.
type ghatSource struct {
	count atomic.Int64
}

func (s *ghatSource) Name() string { return "ghat-only" }

func (s *ghatSource) Observe(_ context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
	if loc.ID != "ghat" {
		return ports.Observation{}, errors.New("no detector")
	}
	return ports.Observation{Count: int(s.count.Load())}, nil
}

func venueFixture() *stubLoader {
	mk := func(id string, class domain.LocationClass, lat, lng float64) domain.Location {
		return domain.Location{
			ID: id, Name: id, Class: class, Capacity: 1000,
			SafetyScore: 0.9, AccessibilityScore: 0.9,
			Coordinates: domain.Coordinates{Lat: lat, Lng: lng},
		}
	}
	edge := func(a, b string, km float64) domain.Connection {
		return domain.Connection{A: a, B: b, DistanceKm: km, RoadClass: domain.RoadPedestrian, WidthM: 4, SafetyScore: 0.9, AccessibilityScore: 0.9}
	}
	return &stubLoader{
		locs: []domain.Location{
			mk("ghat", domain.ClassGhat, 23.1765, 75.7885),
			mk("temple", domain.ClassTemple, 23.1828, 75.7681),
			mk("med", domain.ClassMedical, 23.1756, 75.7834),
		},
		conns: []domain.Connection{edge("ghat", "temple", 1.8), edge("med", "ghat", 0.4)},
	}
}

func newVenue(t *testing.T, loader *stubLoader, readings []signals.StaticReading) *VenueService {
	t.Helper()
	ctx := context.Background()

	g, err := LoadGraph(ctx, loader)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC) }
	model := crowd.NewModel(g, signals.NewStaticSource(readings), crowd.WithClock(now))
	require.NoError(t, model.Init(ctx))

	planner, err := routing.NewPlanner(routing.DefaultWeights(), nil)
	require.NoError(t, err)

	svc, err := NewVenueService(g, VenueDeps{
		Loader:     loader,
		Model:      model,
		Planner:    planner,
		Thresholds: alerts.DefaultThresholds(),
		Now:        now,
	})
	require.NoError(t, err)
	return svc
}

func TestVenueService_PlanRoutes(t *testing.T) {
	svc := newVenue(t, venueFixture(), nil)

	res, err := svc.PlanRoutes(context.Background(), routing.PlanRequest{Start: "med", End: "temple"})
	require.NoError(t, err)
	require.Nil(t, res.NoRoute)
	assert.Equal(t, []string{"med", "ghat", "temple"}, res.Routes[0].Path())

	_, err = svc.PlanRoutes(context.Background(), routing.PlanRequest{Start: "med", End: "nowhere"})
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestVenueService_CustomCoordinateStart(t *testing.T) {
	svc := newVenue(t, venueFixture(), nil)

	res, err := svc.PlanRoutes(context.Background(), routing.PlanRequest{Start: "custom_23.1829_75.7680", End: "ghat"})
	require.NoError(t, err)
	assert.Equal(t, "temple", res.Routes[0].Path()[0])

	_, err = svc.PlanRoutes(context.Background(), routing.PlanRequest{Start: "custom_north", End: "ghat"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestVenueService_AlertsAndDetail(t *testing.T) {
	svc := newVenue(t, venueFixture(), []signals.StaticReading{
		{LocationID: "ghat", Count: 970, FlowRate: 40},
		{LocationID: "temple", Count: 100},
	})

	got := svc.CurrentAlerts()
	require.Len(t, got, 1)
	assert.Equal(t, "ghat", got[0].LocationID)
	assert.Equal(t, domain.SeverityCritical, got[0].Severity)

	// med has no reading: it is published as a stale zero entry with a diagnostic.
	snap := svc.Snapshot()
	require.Len(t, snap.Diagnostics(), 1)
	assert.Equal(t, "med", snap.Diagnostics()[0].LocationID)

	d, err := svc.LocationDetail("ghat")
	require.NoError(t, err)
	assert.True(t, d.HasCrowd)
	assert.Equal(t, 0.97, d.Crowd.Density)
	assert.Len(t, d.Alerts, 1)
	assert.Contains(t, d.Recommendations, "Early morning - ideal for peaceful experience")

	_, err = svc.LocationDetail("nope")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)

	sum := svc.Summary()
	assert.Equal(t, 3, sum.Locations)
	assert.Equal(t, 1, sum.StaleEntries)
}

func TestVenueService_ReloadTopology(t *testing.T) {
	loader := venueFixture()
	svc := newVenue(t, loader, nil)
	before := svc.Graph()

	loader.err = errors.New("importer offline")
	_, err := svc.ReloadTopology(context.Background())
	require.Error(t, err)
	assert.Same(t, before, svc.Graph())

	loader.err = nil
	loader.conns = loader.conns[:1]
	_, err = svc.ReloadTopology(context.Background())
	var gbe *domain.GraphBuildError
	require.ErrorAs(t, err, &gbe)
	assert.Same(t, before, svc.Graph())

	loader.locs = append(loader.locs, domain.Location{ID: "info", Class: domain.ClassInfo, Capacity: 50, SafetyScore: 1, AccessibilityScore: 1})
	loader.conns = append(venueFixture().conns, domain.Connection{A: "info", B: "ghat", DistanceKm: 0.2, RoadClass: domain.RoadPedestrian, WidthM: 3, SafetyScore: 1, AccessibilityScore: 1})
	g, err := svc.ReloadTopology(context.Background())
	require.NoError(t, err)
	assert.Same(t, g, svc.Graph())
	assert.Len(t, svc.Locations(), 4)

	snap, err := svc.RefreshCrowdState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())
}

func TestNewVenueService_RequiresDeps(t *testing.T) {
	g, err := topology.Build(nil, nil)
	require.NoError(t, err)
	_, err = NewVenueService(g, VenueDeps{})
	assert.Error(t, err)
}

func TestVenueService_RecordAlertsUpdatesGauge(t *testing.T) {
	ctx := context.Background()
	loader := venueFixture()
	g, err := LoadGraph(ctx, loader)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	src := &ghatSource{}
	src.count.Store(970)

	model := crowd.NewModel(g, src)
	require.NoError(t, model.Init(ctx))
	planner, err := routing.NewPlanner(routing.DefaultWeights(), nil)
	require.NoError(t, err)

	svc, err := NewVenueService(g, VenueDeps{Model: model, Planner: planner, Thresholds: alerts.DefaultThresholds(), Metrics: metrics})
	require.NoError(t, err)

	gauge := func(critical int) string {
		return `
# HELP venue_alerts_active Active safety alerts by severity
# TYPE venue_alerts_active gauge
venue_alerts_active{severity="critical"} ` + strconv.Itoa(critical) + `
venue_alerts_active{severity="high"} 0
venue_alerts_active{severity="low"} 0
venue_alerts_active{severity="medium"} 0
`
	}

	svc.RecordAlerts()
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(gauge(1)), "venue_alerts_active"))

	src.count.Store(10)
	_, err = svc.RefreshCrowdState(ctx)
	require.NoError(t, err)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(gauge(0)), "venue_alerts_active"))
}
