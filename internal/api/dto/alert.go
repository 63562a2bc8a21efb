package dto

import (
	"crowd-route-service/internal/domain"
	"time"
)

type AlertResponse struct {
	ID                 string    `json:"id"`
	LocationID         string    `json:"location_id"`
	Class              string    `json:"class"`
	Severity           string    `json:"severity"`
	Message            string    `json:"message"`
	AffectedCount      int       `json:"affected_count"`
	ResponseTimeMin    float64   `json:"response_time_min"`
	Priority           float64   `json:"priority"`
	Timestamp          time.Time `json:"timestamp"`
	Status             string    `json:"status"`
	RecommendedActions []string  `json:"recommended_actions"`
}

type ListAlertResponse struct {
	SnapshotVersion uint64          `json:"snapshot_version"`
	Counts          map[string]int  `json:"counts"`
	Alerts          []AlertResponse `json:"alerts"`
}

func FromAlert(a domain.SafetyAlert) AlertResponse {
	return AlertResponse{
		ID:                 a.ID,
		LocationID:         a.LocationID,
		Class:              string(a.Class),
		Severity:           a.Severity.String(),
		Message:            a.Message,
		AffectedCount:      a.AffectedCount,
		ResponseTimeMin:    a.ResponseTimeMin,
		Priority:           a.Priority,
		Timestamp:          a.Timestamp,
		Status:             string(a.Status),
		RecommendedActions: a.RecommendedActions,
	}
}

func FromAlerts(as []domain.SafetyAlert) []AlertResponse {
	out := make([]AlertResponse, 0, len(as))
	for _, a := range as {
		out = append(out, FromAlert(a))
	}
	return out
}
