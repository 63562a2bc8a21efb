package api

import (
	"bytes"
	"context"
	"crowd-route-service/internal/adapters/signals"
	"crowd-route-service/internal/alerts"
	"crowd-route-service/internal/api/dto"
	"crowd-route-service/internal/crowd"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/routing"
	"crowd-route-service/internal/services"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureLoader struct {
	locs  []domain.Location
	conns []domain.Connection
	err   error
}

func (l *fixtureLoader) LoadTopology(context.Context) ([]domain.Location, []domain.Connection, error) {
	return l.locs, l.conns, l.err
}

func newFixtureLoader() *fixtureLoader {
	loc := func(id string, class domain.LocationClass, safety float64) domain.Location {
		return domain.Location{ID: id, Name: strings.ToUpper(id), Class: class, Capacity: 100, SafetyScore: safety, AccessibilityScore: 0.9}
	}
	conn := func(a, b string, km, width float64) domain.Connection {
		return domain.Connection{A: a, B: b, DistanceKm: km, RoadClass: domain.RoadPedestrian, WidthM: width, SafetyScore: 0.9, AccessibilityScore: 0.9}
	}
	return &fixtureLoader{
		locs: []domain.Location{
			loc("gate", domain.ClassTransport, 0.9),
			loc("ghat", domain.ClassGhat, 0.9),
			loc("lane", domain.ClassGeneral, 0.9),
			loc("med", domain.ClassMedical, 1),
		},
		conns: []domain.Connection{
			conn("gate", "lane", 0.5, 1.2),
			conn("lane", "ghat", 0.5, 1.2),
			conn("med", "gate", 0.2, 5),
			conn("med", "ghat", 0.2, 5),
		},
	}
}

type testServer struct {
	handler http.Handler
	loader  *fixtureLoader
	svc     *services.VenueService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	loader := newFixtureLoader()

	g, err := services.LoadGraph(ctx, loader)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	now := func() time.Time { return time.Date(2026, 4, 10, 13, 0, 0, 0, time.UTC) }

	source := signals.NewStaticSource([]signals.StaticReading{
		{LocationID: "gate", Count: 20},
		{LocationID: "ghat", Count: 99, FlowRate: 12},
		{LocationID: "lane", Count: 10},
		{LocationID: "med", Count: 5},
	})
	model := crowd.NewModel(g, source, crowd.WithClock(now), crowd.WithMetrics(metrics))
	require.NoError(t, model.Init(ctx))

	planner, err := routing.NewPlanner(routing.DefaultWeights(), metrics)
	require.NoError(t, err)

	svc, err := services.NewVenueService(g, services.VenueDeps{
		Loader:     loader,
		Model:      model,
		Planner:    planner,
		Thresholds: alerts.DefaultThresholds(),
		Metrics:    metrics,
		Now:        now,
	})
	require.NoError(t, err)

	return &testServer{handler: NewRouter(svc, reg), loader: loader, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestErrorBodyCarriesRequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/crowd/nowhere", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "trace-42", body["request_id"])
	assert.Contains(t, body["error"], "location not found")
}

func TestLocationNamesAreNotHTMLEscaped(t *testing.T) {
	s := newTestServer(t)
	s.loader.locs[0].Name = "Gate & Steps"
	_, err := s.svc.ReloadTopology(context.Background())
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Gate & Steps"`)
}

func TestPlanRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/routes", `{"start":"gate","end":"ghat","policies":["optimal","safest"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[dto.PlanResponse](t, rec)
	assert.Equal(t, uint64(1), res.SnapshotVersion)
	assert.Nil(t, res.NoRoute)
	require.Len(t, res.Routes, 2)
	assert.Equal(t, "optimal", res.Routes[0].Policy)
	for _, r := range res.Routes {
		assert.Equal(t, "gate", r.Path[0])
		assert.Equal(t, "ghat", r.Path[len(r.Path)-1])
		assert.Len(t, r.Segments, len(r.Path)-1)
	}
}

func TestPlanRoutes_NoRouteIsSuccessShaped(t *testing.T) {
	s := newTestServer(t)

	// The only accessible way into lane is through 1.2m connections.
	rec := s.do(t, http.MethodPost, "/routes", `{"start":"gate","end":"lane","accessibility_required":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[dto.PlanResponse](t, rec)
	assert.Empty(t, res.Routes)
	require.NotNil(t, res.NoRoute)
	assert.Equal(t, []string{"optimal", "fastest", "safest", "accessible"}, res.NoRoute.AttemptedPolicies)
	assert.Len(t, res.NoRoute.PolicyFailures, 4)
}

func TestPlanRoutes_BadRequests(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, `{"start":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"start":"gate","end":"ghat","truck":1}`, http.StatusBadRequest},
		{"two objects", http.MethodPost, `{"start":"gate","end":"ghat"}{}`, http.StatusBadRequest},
		{"missing end", http.MethodPost, `{"start":"gate"}`, http.StatusBadRequest},
		{"unknown policy", http.MethodPost, `{"start":"gate","end":"ghat","policies":["scenic"]}`, http.StatusBadRequest},
		{"unknown mode", http.MethodPost, `{"start":"gate","end":"ghat","transport_mode":"bike"}`, http.StatusBadRequest},
		{"unknown location", http.MethodPost, `{"start":"gate","end":"atlantis"}`, http.StatusNotFound},
		{"bad coordinates", http.MethodPost, `{"start":"custom_x_y","end":"ghat"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, "/routes", tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCrowdEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/crowd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[dto.SnapshotResponse](t, rec)
	assert.Equal(t, "static", snap.Source)
	require.Len(t, snap.Locations, 4)
	assert.Equal(t, "gate", snap.Locations[0].LocationID)

	rec = s.do(t, http.MethodGet, "/crowd/ghat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[dto.CrowdDetailResponse](t, rec)
	require.NotNil(t, detail.Crowd)
	assert.InDelta(t, 0.99, detail.Crowd.Density, 1e-9)
	assert.Contains(t, detail.Recommendations, "Avoid this location if possible")
	require.Len(t, detail.Alerts, 1)
	assert.Equal(t, "critical", detail.Alerts[0].Severity)

	rec = s.do(t, http.MethodGet, "/crowd/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/crowd/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[crowd.Summary](t, rec)
	assert.Equal(t, 4, sum.Locations)
	require.Len(t, sum.Hotspots, 1)
	assert.Equal(t, "ghat", sum.Hotspots[0].LocationID)

	rec = s.do(t, http.MethodPost, "/crowd/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(2), decode[dto.SnapshotResponse](t, rec).Version)

	rec = s.do(t, http.MethodGet, "/crowd/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAlertsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[dto.ListAlertResponse](t, rec)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "ghat", res.Alerts[0].LocationID)
	assert.Equal(t, 1, res.Counts["critical"])
	assert.Equal(t, 0, res.Counts["low"])

	rec = s.do(t, http.MethodGet, "/alerts?severity=critical", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.ListAlertResponse](t, rec).Alerts, 1)

	rec = s.do(t, http.MethodGet, "/alerts?severity=extreme", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTopologyReload(t *testing.T) {
	s := newTestServer(t)

	s.loader.err = errors.New("database unavailable")
	rec := s.do(t, http.MethodPost, "/topology/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")

	s.loader.err = nil
	s.loader.conns = append(s.loader.conns, domain.Connection{A: "gate", B: "gate", DistanceKm: 1, RoadClass: domain.RoadPedestrian})
	rec = s.do(t, http.MethodPost, "/topology/reload", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	s.loader.conns = newFixtureLoader().conns
	rec = s.do(t, http.MethodPost, "/topology/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locations":4,"connections":4}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.ListLocationResponse](t, rec).Locations, 4)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/routes", `{"start":"gate","end":"ghat"}`)

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "crowd_refresh_total")
	assert.Contains(t, body, "planner_requests_total")
}
