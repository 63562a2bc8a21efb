package crowd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers Model refreshes on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	model   *Model
	timeout time.Duration
	after   []func(context.Context)
}

// NewScheduler accepts standard cron specs and descriptors such as "@every 30s".
// Each run is bounded by timeout.
func NewScheduler(model *Model, spec string, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		model:   model,
		timeout: timeout,
	}

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("crowd scheduler: schedule %q: %w", spec, err)
	}
	return s, nil
}

// OnRefresh registers fn to run after every successful scheduled refresh.
func (s *Scheduler) OnRefresh(fn func(context.Context)) { s.after = append(s.after, fn) }

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap, err := s.model.Refresh(ctx)
	if err != nil {
		log.Printf("crowd scheduler: refresh failed err=%v", err)
		return
	}
	log.Printf("crowd scheduler: snapshot version=%d locations=%d", snap.Version(), snap.Len())

	for _, fn := range s.after {
		fn(ctx)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running refresh to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
