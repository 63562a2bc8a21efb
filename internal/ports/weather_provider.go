package ports

import "context"

// Contract for the weather adapter.
type WeatherProvider interface {
	// Return a speed factor in (0,1]; 1 means weather has no effect on walking speed.
	WeatherFactor(ctx context.Context) (float64, error)
}
