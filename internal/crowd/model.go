package crowd

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/ports"
	"crowd-route-service/internal/topology"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// MinWeatherFactor keeps the effective speed strictly positive.
	MinWeatherFactor = 0.1

	defaultWorkers        = 8
	defaultRefreshTimeout = 30 * time.Second
)

var ErrNoTopology = errors.New("crowd model has no topology")

// Model owns the current crowd snapshot.
//
// Readers call Snapshot and keep the returned pointer for as long as they need it;
// a refresh builds a complete new snapshot and publishes it with one atomic store.
// Refreshes never run concurrently: overlapping requests share one in-flight run.
type Model struct {
	source    ports.SignalSource
	weather   ports.WeatherProvider
	predictor ports.PeakPredictor
	metrics   *obs.Metrics
	now       func() time.Time
	debounce  time.Duration
	timeout   time.Duration
	workers   int

	graph   atomic.Pointer[topology.Graph]
	current atomic.Pointer[domain.CrowdSnapshot]

	mu    sync.Mutex
	group singleflight.Group
}

type Option func(*Model)

func WithWeather(w ports.WeatherProvider) Option { return func(m *Model) { m.weather = w } }

func WithPredictor(p ports.PeakPredictor) Option { return func(m *Model) { m.predictor = p } }

func WithMetrics(mt *obs.Metrics) Option { return func(m *Model) { m.metrics = mt } }

func WithClock(now func() time.Time) Option { return func(m *Model) { m.now = now } }

// WithDebounce makes Refresh return the current snapshot when it is younger than d.
func WithDebounce(d time.Duration) Option { return func(m *Model) { m.debounce = d } }

// WithRefreshTimeout bounds one refresh run. The run is shared by every caller
// that joins it, so it does not follow any single caller's cancellation.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithWorkers bounds the number of concurrent Observe calls during a refresh.
func WithWorkers(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewModel creates a model over graph. A nil source selects the synthetic
// generator; the selected source is always logged.
func NewModel(graph *topology.Graph, source ports.SignalSource, opts ...Option) *Model {
	m := &Model{
		now:     time.Now,
		timeout: defaultRefreshTimeout,
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(m)
	}

	if source == nil {
		source = NewSyntheticSource(nil, uint64(m.now().UnixNano()))
		log.Printf("crowd source=%s reason=%q", source.Name(), "no live feed configured")
	} else {
		log.Printf("crowd source=%s", source.Name())
	}
	m.source = source

	if m.predictor == nil {
		m.predictor = NewTablePredictor(nil)
	}
	if graph != nil {
		m.graph.Store(graph)
	}

	return m
}

func (m *Model) SourceName() string { return m.source.Name() }

// SetTopology replaces the location set used by subsequent refreshes.
func (m *Model) SetTopology(g *topology.Graph) { m.graph.Store(g) }

// Snapshot returns the current snapshot. Before the first refresh it is an empty
// snapshot with version 0.
func (m *Model) Snapshot() *domain.CrowdSnapshot {
	if s := m.current.Load(); s != nil {
		return s
	}
	return domain.NewCrowdSnapshot(0, time.Time{}, m.source.Name(), 1, nil, nil)
}

// Init publishes the first snapshot, ignoring the debounce window.
func (m *Model) Init(ctx context.Context) error {
	_, err := m.run(ctx, true)
	return err
}

// Refresh generates and publishes a new snapshot. Calls inside the debounce
// window return the current snapshot unchanged. A caller whose ctx ends stops
// waiting; the shared run keeps going for the callers that joined it.
func (m *Model) Refresh(ctx context.Context) (*domain.CrowdSnapshot, error) {
	return m.run(ctx, false)
}

func (m *Model) run(ctx context.Context, force bool) (*domain.CrowdSnapshot, error) {
	key := "refresh"
	if force {
		key = "init"
	}

	ch := m.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.refresh(runCtx, force)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("crowd refresh: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.CrowdSnapshot), nil
	}
}

type observed struct {
	entry domain.LocationCrowd
	err   error
}

func (m *Model) refresh(ctx context.Context, force bool) (snap *domain.CrowdSnapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	prev := m.current.Load()

	if !force && prev != nil && m.debounce > 0 && now.Sub(prev.GeneratedAt()) < m.debounce {
		return prev, nil
	}

	defer obs.Time(ctx, "crowd.refresh")(&err)

	g := m.graph.Load()
	if g == nil {
		m.metrics.Refreshed("error", 0, 0)
		return nil, fmt.Errorf("crowd refresh: %w", ErrNoTopology)
	}

	// External calls finish before the snapshot is built; planning never waits on them.
	weather := m.weatherFactor(ctx, prev)

	locations := g.Locations()
	results := make([]observed, len(locations))

	sem := make(chan struct{}, m.workers)
	var wg sync.WaitGroup

	for i, loc := range locations {
		wg.Add(1)
		go func(i int, loc domain.Location) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			entry, err := m.observe(ctx, loc, now)
			results[i] = observed{entry: entry, err: err}
		}(i, loc)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		m.metrics.Refreshed("error", 0, 0)
		return nil, fmt.Errorf("crowd refresh: %w", err)
	}

	entries := make(map[string]domain.LocationCrowd, len(locations))
	var diags []domain.PartialCrowdUpdateFailure

	for i, loc := range locations {
		res := results[i]
		if res.err == nil {
			entries[loc.ID] = res.entry
			continue
		}

		log.Printf("crowd refresh partial failure location=%s err=%v", loc.ID, res.err)
		diags = append(diags, domain.PartialCrowdUpdateFailure{
			LocationID: loc.ID,
			Reason:     res.err.Error(),
			At:         now,
		})
		entries[loc.ID] = carryOver(prev, loc, now)
	}

	var version uint64 = 1
	if prev != nil {
		version = prev.Version() + 1
	}

	snap = domain.NewCrowdSnapshot(version, now, m.source.Name(), weather, entries, diags)
	m.current.Store(snap)

	result := "ok"
	if len(diags) > 0 {
		result = "partial"
	}
	m.metrics.Refreshed(result, version, len(diags))

	return snap, nil
}

// observe reads one location. A panicking source fails only that location.
func (m *Model) observe(ctx context.Context, loc domain.Location, at time.Time) (entry domain.LocationCrowd, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observe %s: source panic: %v", loc.ID, r)
		}
	}()

	o, err := m.source.Observe(ctx, loc, at)
	if err != nil {
		return domain.LocationCrowd{}, fmt.Errorf("observe %s: %w", loc.ID, err)
	}
	if o.Count < 0 || !(o.FlowRate >= 0) || math.IsInf(o.FlowRate, 0) {
		return domain.LocationCrowd{}, fmt.Errorf("observe %s: invalid reading count=%d flow=%v", loc.ID, o.Count, o.FlowRate)
	}

	mix := domain.DefaultMovementMix
	if o.Movement != nil {
		mix = o.Movement.Normalize()
	}

	entry = domain.LocationCrowd{
		LocationID: loc.ID,
		Class:      loc.Class,
		Capacity:   loc.Capacity,
		Count:      o.Count,
		Density:    domain.Density(o.Count, loc.Capacity),
		FlowRate:   o.FlowRate,
		Movement:   mix,
		ObservedAt: at,
	}
	if peak, ok := m.predictor.NextPeak(loc, at); ok {
		entry.PredictedPeak = &peak
	}

	return entry, nil
}

// carryOver keeps the last published values for a failed location.
func carryOver(prev *domain.CrowdSnapshot, loc domain.Location, now time.Time) domain.LocationCrowd {
	if old, ok := prev.Get(loc.ID); ok {
		old.Stale = true
		return old
	}
	return domain.LocationCrowd{
		LocationID: loc.ID,
		Class:      loc.Class,
		Capacity:   loc.Capacity,
		Movement:   domain.DefaultMovementMix,
		ObservedAt: now,
		Stale:      true,
	}
}

func (m *Model) weatherFactor(ctx context.Context, prev *domain.CrowdSnapshot) float64 {
	fallback := 1.0
	if prev != nil && prev.Version() > 0 {
		fallback = prev.WeatherFactor()
	}
	if m.weather == nil {
		return fallback
	}

	f, err := m.weather.WeatherFactor(ctx)
	if err != nil {
		log.Printf("crowd refresh weather unavailable err=%v factor=%.2f", err, fallback)
		return fallback
	}
	return ClampWeather(f)
}

// ClampWeather maps a provider value into [MinWeatherFactor, 1].
func ClampWeather(f float64) float64 {
	switch {
	case math.IsNaN(f), f > 1:
		return 1
	case f < MinWeatherFactor:
		return MinWeatherFactor
	}
	return f
}
