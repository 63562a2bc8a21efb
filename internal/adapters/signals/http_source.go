package signals

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/httpx"
	"crowd-route-service/internal/ports"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// HTTPSource polls a detector feed at <base>/locations/<id>/crowd.
type HTTPSource struct {
	base   string
	client *httpx.Client
}

var _ ports.SignalSource = (*HTTPSource)(nil)

type feedReading struct {
	Count    *int                `json:"count"`
	FlowRate float64             `json:"flow_rate"`
	Movement *domain.MovementMix `json:"movement,omitempty"`
}

func NewHTTPSource(base string, client *httpx.Client) *HTTPSource {
	return &HTTPSource{base: strings.TrimRight(base, "/"), client: client}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Observe(ctx context.Context, loc domain.Location, _ time.Time) (ports.Observation, error) {
	endpoint := fmt.Sprintf("%s/locations/%s/crowd", s.base, url.PathEscape(loc.ID))

	var r feedReading
	if err := s.client.GetJSON(ctx, endpoint, &r); err != nil {
		return ports.Observation{}, fmt.Errorf("http observe %s: %w", loc.ID, err)
	}
	if r.Count == nil {
		return ports.Observation{}, fmt.Errorf("http observe %s: %w", loc.ID, ErrNoReading)
	}

	return ports.Observation{Count: *r.Count, FlowRate: r.FlowRate, Movement: r.Movement}, nil
}
