package crowd

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/ports"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	m := NewModel(testGraph(t), nil)
	_, err := NewScheduler(m, "every now and then", time.Second)
	assert.Error(t, err)
}

func TestScheduler_TickRefreshesAndNotifies(t *testing.T) {
	src := funcSource{fn: func(context.Context, domain.Location, time.Time) (ports.Observation, error) {
		return ports.Observation{Count: 10}, nil
	}}
	m := NewModel(testGraph(t), src)

	s, err := NewScheduler(m, "@every 30s", time.Second)
	require.NoError(t, err)

	var notified int
	s.OnRefresh(func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		notified++
	})

	s.tick()
	s.tick()

	assert.Equal(t, uint64(2), m.Snapshot().Version())
	assert.Equal(t, 2, notified)
}

func TestScheduler_FailedRefreshSkipsCallbacks(t *testing.T) {
	m := NewModel(nil, funcSource{fn: func(context.Context, domain.Location, time.Time) (ports.Observation, error) {
		return ports.Observation{}, errors.New("unused")
	}})

	s, err := NewScheduler(m, "@every 30s", 0)
	require.NoError(t, err)

	called := false
	s.OnRefresh(func(context.Context) { called = true })
	s.tick()

	assert.False(t, called)
	assert.Equal(t, uint64(0), m.Snapshot().Version())
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler(NewModel(testGraph(t), nil), "@every 1h", time.Second)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
