package dto

import (
	"crowd-route-service/internal/domain"
	"time"
)

type LocationResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Class              string    `json:"class"`
	Coordinates        []float64 `json:"coordinates"`
	Capacity           int       `json:"capacity"`
	AccessibilityScore float64   `json:"accessibility_score"`
	SafetyScore        float64   `json:"safety_score"`
	Amenities          []string  `json:"amenities,omitempty"`
	EmergencyServices  bool      `json:"emergency_services"`
}

type ListLocationResponse struct {
	Locations []LocationResponse `json:"locations"`
}

type LocationCrowdResponse struct {
	LocationID    string             `json:"location_id"`
	Class         string             `json:"class"`
	Capacity      int                `json:"capacity"`
	Count         int                `json:"count"`
	Density       float64            `json:"density"`
	FlowRate      float64            `json:"flow_rate"`
	Movement      domain.MovementMix `json:"movement"`
	PredictedPeak *time.Time         `json:"predicted_peak,omitempty"`
	ObservedAt    time.Time          `json:"observed_at"`
	Stale         bool               `json:"stale"`
	Overcapacity  bool               `json:"overcapacity"`
}

type SnapshotResponse struct {
	Version       uint64                             `json:"version"`
	GeneratedAt   time.Time                          `json:"generated_at"`
	Source        string                             `json:"source"`
	WeatherFactor float64                            `json:"weather_factor"`
	Locations     []LocationCrowdResponse            `json:"locations"`
	Diagnostics   []domain.PartialCrowdUpdateFailure `json:"diagnostics"`
}

type CrowdDetailResponse struct {
	Location        LocationResponse       `json:"location"`
	Crowd           *LocationCrowdResponse `json:"crowd"`
	Recommendations []string               `json:"recommendations"`
	Alerts          []AlertResponse        `json:"alerts"`
}

func FromLocation(l domain.Location) LocationResponse {
	return LocationResponse{
		ID:                 l.ID,
		Name:               l.Name,
		Class:              string(l.Class),
		Coordinates:        l.Coordinates.CoordsToList(),
		Capacity:           l.Capacity,
		AccessibilityScore: l.AccessibilityScore,
		SafetyScore:        l.SafetyScore,
		Amenities:          l.Amenities,
		EmergencyServices:  l.EmergencyServices,
	}
}

func FromLocationCrowd(c domain.LocationCrowd) LocationCrowdResponse {
	return LocationCrowdResponse{
		LocationID:    c.LocationID,
		Class:         string(c.Class),
		Capacity:      c.Capacity,
		Count:         c.Count,
		Density:       c.Density,
		FlowRate:      c.FlowRate,
		Movement:      c.Movement,
		PredictedPeak: c.PredictedPeak,
		ObservedAt:    c.ObservedAt,
		Stale:         c.Stale,
		Overcapacity:  c.Overcapacity(),
	}
}

func FromSnapshot(s *domain.CrowdSnapshot) SnapshotResponse {
	out := SnapshotResponse{
		Version:       s.Version(),
		GeneratedAt:   s.GeneratedAt(),
		Source:        s.Source(),
		WeatherFactor: s.WeatherFactor(),
		Locations:     make([]LocationCrowdResponse, 0, s.Len()),
		Diagnostics:   s.Diagnostics(),
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []domain.PartialCrowdUpdateFailure{}
	}
	for _, e := range s.Entries() {
		out.Locations = append(out.Locations, FromLocationCrowd(e))
	}
	return out
}
