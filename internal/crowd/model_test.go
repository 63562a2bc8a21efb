package crowd

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/ports"
	"crowd-route-service/internal/topology"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcSource struct {
	fn func(ctx context.Context, loc domain.Location, at time.Time) (ports.Observation, error)
}

func (f funcSource) Name() string { return "test" }

func (f funcSource) Observe(ctx context.Context, loc domain.Location, at time.Time) (ports.Observation, error) {
	return f.fn(ctx, loc, at)
}

type fixedWeather struct {
	f   float64
	err error
}

func (w fixedWeather) WeatherFactor(context.Context) (float64, error) { return w.f, w.err }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testGraph(t *testing.T) *topology.Graph {
	t.Helper()
	mk := func(id string, class domain.LocationClass, capacity int) domain.Location {
		return domain.Location{ID: id, Class: class, Capacity: capacity, SafetyScore: 0.8, AccessibilityScore: 0.8}
	}
	edge := func(a, b string) domain.Connection {
		return domain.Connection{A: a, B: b, DistanceKm: 1, RoadClass: domain.RoadPedestrian, WidthM: 3, SafetyScore: 0.8, AccessibilityScore: 0.8}
	}

	g, err := topology.Build(
		[]domain.Location{
			mk("ghat", domain.ClassGhat, 5000),
			mk("temple", domain.ClassTemple, 8000),
			mk("food", domain.ClassFood, 800),
			mk("med", domain.ClassMedical, 100),
		},
		[]domain.Connection{edge("ghat", "temple"), edge("temple", "food"), edge("food", "med")},
	)
	require.NoError(t, err)
	return g
}

func TestModel_SyntheticSnapshotInvariants(t *testing.T) {
	c := &clock{now: time.Date(2026, 4, 10, 5, 0, 0, 0, time.UTC)}
	m := NewModel(testGraph(t), NewSyntheticSource(nil, 42), WithClock(c.Now))
	require.NoError(t, m.Init(context.Background()))

	for i := 0; i < 50; i++ {
		snap, err := m.Refresh(context.Background())
		require.NoError(t, err)

		for _, e := range snap.Entries() {
			assert.InDelta(t, 1.0, e.Movement.Sum(), 1e-6, "movement mix of %s", e.LocationID)
			assert.GreaterOrEqual(t, e.Density, 0.0)
			assert.LessOrEqual(t, e.Density, 1.0)
			assert.GreaterOrEqual(t, e.FlowRate, 0.0)
		}
		c.Advance(time.Hour)
	}
}

func TestModel_RenormalizesSourceMovement(t *testing.T) {
	src := funcSource{fn: func(_ context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
		return ports.Observation{
			Count:    loc.Capacity * 2,
			FlowRate: 10,
			Movement: &domain.MovementMix{Stationary: 3, SlowMoving: 1, FastMoving: 1, Entering: 0.5, Exiting: 0.5},
		}, nil
	}}

	m := NewModel(testGraph(t), src)
	require.NoError(t, m.Init(context.Background()))

	e, ok := m.Snapshot().Get("ghat")
	require.True(t, ok)
	assert.InDelta(t, 1.0, e.Movement.Sum(), 1e-6)
	assert.InDelta(t, 0.5, e.Movement.Stationary, 1e-9)
	assert.Equal(t, 1.0, e.Density)
	assert.True(t, e.Overcapacity())
}

func TestModel_PartialFailureKeepsLastValues(t *testing.T) {
	var fail atomic.Bool
	src := funcSource{fn: func(_ context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
		if fail.Load() {
			switch loc.ID {
			case "temple":
				return ports.Observation{}, errors.New("feed timeout")
			case "food":
				panic("bad reading")
			}
		}
		return ports.Observation{Count: loc.Capacity / 4, FlowRate: 5}, nil
	}}

	m := NewModel(testGraph(t), src)
	require.NoError(t, m.Init(context.Background()))
	first := m.Snapshot()

	fail.Store(true)
	snap, err := m.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Version()+1, snap.Version())
	assert.Equal(t, 4, snap.Len())

	diags := snap.Diagnostics()
	require.Len(t, diags, 2)
	ids := []string{diags[0].LocationID, diags[1].LocationID}
	assert.ElementsMatch(t, []string{"temple", "food"}, ids)

	for _, id := range []string{"temple", "food"} {
		got, _ := snap.Get(id)
		old, _ := first.Get(id)
		assert.True(t, got.Stale)
		assert.Equal(t, old.Count, got.Count)
		assert.Equal(t, old.Density, got.Density)
	}

	ok, _ := snap.Get("ghat")
	assert.False(t, ok.Stale)

	// The earlier snapshot is untouched.
	old, _ := first.Get("temple")
	assert.False(t, old.Stale)
}

func TestModel_FailureWithoutHistoryPublishesZeroEntry(t *testing.T) {
	src := funcSource{fn: func(_ context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
		if loc.ID == "med" {
			return ports.Observation{}, errors.New("offline")
		}
		return ports.Observation{Count: 1}, nil
	}}

	m := NewModel(testGraph(t), src)
	require.NoError(t, m.Init(context.Background()))

	e, ok := m.Snapshot().Get("med")
	require.True(t, ok)
	assert.True(t, e.Stale)
	assert.Zero(t, e.Count)
	assert.InDelta(t, 1.0, e.Movement.Sum(), 1e-6)
}

func TestModel_Debounce(t *testing.T) {
	var calls atomic.Int32
	src := funcSource{fn: func(_ context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
		calls.Add(1)
		return ports.Observation{Count: 1}, nil
	}}
	c := &clock{now: time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)}

	m := NewModel(testGraph(t), src, WithClock(c.Now), WithDebounce(10*time.Second))
	require.NoError(t, m.Init(context.Background()))
	require.EqualValues(t, 4, calls.Load())

	c.Advance(5 * time.Second)
	snap, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Version())
	assert.EqualValues(t, 4, calls.Load())

	c.Advance(6 * time.Second)
	snap, err = m.Refresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Version())
	assert.EqualValues(t, 8, calls.Load())
}

func TestModel_CoalescesConcurrentRefreshes(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	src := funcSource{fn: func(_ context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
		calls.Add(1)
		<-release
		return ports.Observation{Count: 1}, nil
	}}

	m := NewModel(testGraph(t), src)

	var wg sync.WaitGroup
	versions := make([]uint64, 5)
	for i := range versions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := m.Refresh(context.Background())
			if err == nil {
				versions[i] = snap.Version()
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// Callers that joined the in-flight run share its snapshot; a late caller may
	// start one more run, never more.
	assert.LessOrEqual(t, calls.Load(), int32(8))
	for _, v := range versions {
		assert.Contains(t, []uint64{1, 2}, v)
	}
}

func TestModel_CancelledCallerDoesNotFailJoinedRefresh(t *testing.T) {
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	src := funcSource{fn: func(ctx context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
		started <- struct{}{}
		select {
		case <-release:
			return ports.Observation{Count: 3}, nil
		case <-ctx.Done():
			return ports.Observation{}, ctx.Err()
		}
	}}
	m := NewModel(testGraph(t), src)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Refresh(firstCtx)
		firstErr <- err
	}()
	<-started

	type result struct {
		snap *domain.CrowdSnapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := m.Refresh(context.Background())
		second <- result{snap, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	r := <-second
	require.NoError(t, r.err)
	assert.EqualValues(t, 1, r.snap.Version())
	assert.Empty(t, r.snap.Diagnostics())
	assert.Equal(t, 3, r.snap.Entries()[0].Count)
}

func TestModel_RefreshTimeoutBoundsSharedRun(t *testing.T) {
	src := funcSource{fn: func(ctx context.Context, _ domain.Location, _ time.Time) (ports.Observation, error) {
		<-ctx.Done()
		return ports.Observation{}, ctx.Err()
	}}
	m := NewModel(testGraph(t), src, WithRefreshTimeout(20*time.Millisecond))

	_, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 0, m.Snapshot().Version())
}

func TestModel_ReadersNeverSeeTornSnapshot(t *testing.T) {
	m := NewModel(testGraph(t), NewSyntheticSource(nil, 7))
	require.NoError(t, m.Init(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			_, _ = m.Refresh(context.Background())
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for ctx.Err() == nil {
				snap := m.Snapshot()
				if snap.Version() < last {
					t.Errorf("version went backwards: %d after %d", snap.Version(), last)
					return
				}
				last = snap.Version()
				if snap.Len() != 4 {
					t.Errorf("snapshot has %d entries, want 4", snap.Len())
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestModel_NoTopology(t *testing.T) {
	m := NewModel(nil, NewSyntheticSource(nil, 1))
	_, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoTopology)
	assert.EqualValues(t, 0, m.Snapshot().Version())
}

func TestModel_WeatherFactor(t *testing.T) {
	m := NewModel(testGraph(t), NewSyntheticSource(nil, 1), WithWeather(fixedWeather{f: 0.7}))
	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, 0.7, m.Snapshot().WeatherFactor())

	m = NewModel(testGraph(t), NewSyntheticSource(nil, 1), WithWeather(fixedWeather{err: errors.New("down")}))
	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, 1.0, m.Snapshot().WeatherFactor())

	assert.Equal(t, MinWeatherFactor, ClampWeather(0))
	assert.Equal(t, 1.0, ClampWeather(math.NaN()))
	assert.Equal(t, 1.0, ClampWeather(3))
}

func TestModel_PredictedPeak(t *testing.T) {
	c := &clock{now: time.Date(2026, 4, 10, 1, 0, 0, 0, time.UTC)}
	m := NewModel(testGraph(t), NewSyntheticSource(nil, 1), WithClock(c.Now))
	require.NoError(t, m.Init(context.Background()))

	e, _ := m.Snapshot().Get("ghat")
	require.NotNil(t, e.PredictedPeak)
	assert.Equal(t, 4, e.PredictedPeak.Hour())

	med, _ := m.Snapshot().Get("med")
	assert.Nil(t, med.PredictedPeak)
}
