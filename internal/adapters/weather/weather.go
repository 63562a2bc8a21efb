// Package weather provides WeatherProvider implementations.
package weather

import (
	"context"
	"crowd-route-service/internal/platform/httpx"
	"crowd-route-service/internal/ports"
	"errors"
	"fmt"
)

// Static returns a fixed factor.
type Static struct{ Factor float64 }

var _ ports.WeatherProvider = Static{}

func (s Static) WeatherFactor(context.Context) (float64, error) { return s.Factor, nil }

// HTTP reads {"factor": <0..1>} or, failing that, a condition name from a
// forecast endpoint.
type HTTP struct {
	url    string
	client *httpx.Client
}

var _ ports.WeatherProvider = (*HTTP)(nil)

func NewHTTP(url string, client *httpx.Client) *HTTP {
	return &HTTP{url: url, client: client}
}

type forecast struct {
	Factor    *float64 `json:"factor"`
	Condition string   `json:"condition"`
}

// conditionFactors maps reported conditions to walking-speed factors.
var conditionFactors = map[string]float64{
	"clear":        1.0,
	"sunny":        1.0,
	"cloudy":       1.0,
	"hot":          0.9,
	"light_rain":   0.85,
	"rain":         0.7,
	"heavy_rain":   0.5,
	"fog":          0.8,
	"thunderstorm": 0.4,
}

var ErrUnknownCondition = errors.New("unknown weather condition")

func (h *HTTP) WeatherFactor(ctx context.Context) (float64, error) {
	var f forecast
	if err := h.client.GetJSON(ctx, h.url, &f); err != nil {
		return 0, fmt.Errorf("weather factor: %w", err)
	}

	if f.Factor != nil {
		return *f.Factor, nil
	}
	if v, ok := conditionFactors[f.Condition]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("weather factor: %w: %q", ErrUnknownCondition, f.Condition)
}
