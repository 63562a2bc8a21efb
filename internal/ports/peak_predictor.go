package ports

import (
	"crowd-route-service/internal/domain"
	"time"
)

// Contract for predicting the next crowd peak at a location.
// The default implementation is table driven; learned predictors can replace it.
type PeakPredictor interface {
	NextPeak(loc domain.Location, now time.Time) (time.Time, bool)
}
