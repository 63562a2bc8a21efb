// Package signals holds the live crowd signal sources.
package signals

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/ports"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNoReading      = errors.New("no crowd reading")
	ErrInvalidReading = errors.New("invalid crowd reading")
)

// RedisSource reads the latest detector output per location from a hash at
// crowd:obs:<location id> with fields count, flow_rate, observed_at (unix
// seconds) and optional movement fractions.
type RedisSource struct {
	rdb    redis.UniversalClient
	prefix string
	maxAge time.Duration
}

var _ ports.SignalSource = (*RedisSource)(nil)

// NewRedisSource rejects readings older than maxAge; zero disables the check.
func NewRedisSource(rdb redis.UniversalClient, maxAge time.Duration) *RedisSource {
	return &RedisSource{rdb: rdb, prefix: "crowd:obs:", maxAge: maxAge}
}

func (s *RedisSource) Name() string { return "redis" }

func (s *RedisSource) key(id string) string { return s.prefix + id }

func (s *RedisSource) Observe(ctx context.Context, loc domain.Location, at time.Time) (ports.Observation, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(loc.ID)).Result()
	if err != nil {
		return ports.Observation{}, fmt.Errorf("redis observe %s: %w", loc.ID, err)
	}
	if len(fields) == 0 {
		return ports.Observation{}, fmt.Errorf("redis observe %s: %w", loc.ID, ErrNoReading)
	}

	p := fieldParser{fields: fields}
	obs := ports.Observation{
		Count:    p.count("count"),
		FlowRate: p.float("flow_rate", false),
	}

	if _, ok := fields["stationary"]; ok {
		obs.Movement = &domain.MovementMix{
			Stationary: p.float("stationary", true),
			SlowMoving: p.float("slow_moving", false),
			FastMoving: p.float("fast_moving", false),
			Entering:   p.float("entering", false),
			Exiting:    p.float("exiting", false),
		}
	}

	observedAt := p.float("observed_at", false)
	if p.err != nil {
		return ports.Observation{}, fmt.Errorf("redis observe %s: %w", loc.ID, p.err)
	}

	if s.maxAge > 0 && observedAt > 0 {
		age := at.Sub(time.Unix(int64(observedAt), 0))
		if age > s.maxAge {
			return ports.Observation{}, fmt.Errorf("redis observe %s: reading is %s old: %w", loc.ID, age.Round(time.Second), ErrNoReading)
		}
	}

	return obs, nil
}

// Publish stores a reading in the layout Observe expects.
func (s *RedisSource) Publish(ctx context.Context, id string, o ports.Observation, at time.Time) error {
	values := map[string]any{
		"count":       o.Count,
		"flow_rate":   o.FlowRate,
		"observed_at": at.Unix(),
	}
	if m := o.Movement; m != nil {
		values["stationary"] = m.Stationary
		values["slow_moving"] = m.SlowMoving
		values["fast_moving"] = m.FastMoving
		values["entering"] = m.Entering
		values["exiting"] = m.Exiting
	}

	if err := s.rdb.HSet(ctx, s.key(id), values).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", id, err)
	}
	return nil
}

type fieldParser struct {
	fields map[string]string
	err    error
}

// maxCount bounds a people count well inside int on every platform.
const maxCount = 1 << 31

// count parses a required whole, non-negative, finite people count.
func (p *fieldParser) count(name string) int {
	v := p.float(name, true)
	if p.err != nil {
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v >= maxCount || v != math.Trunc(v) {
		p.err = fmt.Errorf("field %q: %v is not a whole count in [0, %d): %w", name, v, int64(maxCount), ErrInvalidReading)
		return 0
	}
	return int(v)
}

func (p *fieldParser) float(name string, required bool) float64 {
	if p.err != nil {
		return 0
	}
	raw, ok := p.fields[name]
	if !ok {
		if required {
			p.err = fmt.Errorf("missing field %q", name)
		}
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.err = fmt.Errorf("field %q: %w", name, err)
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.err = fmt.Errorf("field %q: %q is not finite: %w", name, raw, ErrInvalidReading)
		return 0
	}
	return v
}
