package crowd

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/ports"
	"math/rand/v2"
	"sync"
	"time"
)

// SyntheticSource derives crowd readings from base crowd figures and the
// multiplier table. Only the movement mix is random.
type SyntheticSource struct {
	table Table

	mu  sync.Mutex
	rng *rand.Rand
}

var _ ports.SignalSource = (*SyntheticSource)(nil)

func NewSyntheticSource(table Table, seed uint64) *SyntheticSource {
	if table == nil {
		table = DefaultTable()
	}
	return &SyntheticSource{
		table: table,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) Observe(ctx context.Context, loc domain.Location, at time.Time) (ports.Observation, error) {
	if err := ctx.Err(); err != nil {
		return ports.Observation{}, err
	}

	mult := s.table.Multiplier(loc.Class, at.Hour())
	mix := s.sampleMovement()

	return ports.Observation{
		Count:    int(float64(loc.EffectiveBaseCrowd()) * mult),
		FlowRate: loc.EffectiveBaseFlowRate() * mult,
		Movement: &mix,
	}, nil
}

// sampleMovement draws each fraction independently, so the raw mix rarely sums
// to 1. The model renormalizes before publishing.
func (s *SyntheticSource) sampleMovement() domain.MovementMix {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := func(lo, hi float64) float64 { return lo + s.rng.Float64()*(hi-lo) }

	return domain.MovementMix{
		Stationary: u(0.3, 0.6),
		SlowMoving: u(0.2, 0.4),
		FastMoving: u(0.1, 0.3),
		Entering:   u(0.05, 0.15),
		Exiting:    u(0.05, 0.15),
	}
}
