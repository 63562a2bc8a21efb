package dto

import (
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/routing"
)

type RouteRequest struct {
	Start                 string   `json:"start"`
	End                   string   `json:"end"`
	Policy                string   `json:"policy"`
	Policies              []string `json:"policies"`
	AvoidCrowds           *bool    `json:"avoid_crowds"`
	AccessibilityRequired bool     `json:"accessibility_required"`
	TransportMode         string   `json:"transport_mode"`
}

type WaypointResponse struct {
	Rank        int       `json:"rank"`
	LocationID  string    `json:"location_id"`
	Name        string    `json:"name"`
	Class       string    `json:"class"`
	Coordinates []float64 `json:"coordinates"`
}

type SegmentResponse struct {
	From                string  `json:"from"`
	To                  string  `json:"to"`
	DistanceKm          float64 `json:"distance_km"`
	DurationMin         float64 `json:"duration_min"`
	CrowdFactor         float64 `json:"crowd_factor"`
	SafetyFactor        float64 `json:"safety_factor"`
	AccessibilityFactor float64 `json:"accessibility_factor"`
	RoadClass           string  `json:"road_class"`
	WidthM              float64 `json:"width_m"`
	Cost                float64 `json:"cost"`
}

type RouteResponse struct {
	Policy             string             `json:"policy"`
	Path               []string           `json:"path"`
	Waypoints          []WaypointResponse `json:"waypoints"`
	Segments           []SegmentResponse  `json:"segments"`
	TotalDistanceKm    float64            `json:"total_distance_km"`
	TotalDurationMin   float64            `json:"total_duration_min"`
	TotalCost          float64            `json:"total_cost"`
	SafetyScore        float64            `json:"safety_score"`
	AccessibilityScore float64            `json:"accessibility_score"`
	CrowdLevel         float64            `json:"crowd_level"`
	Steps              int                `json:"steps"`
	Calories           int                `json:"calories"`
}

type ExcludedNodeResponse struct {
	LocationID string `json:"location_id"`
	Policy     string `json:"policy"`
	Reason     string `json:"reason"`
}

type NoRouteResponse struct {
	Start             string                 `json:"start"`
	End               string                 `json:"end"`
	AttemptedPolicies []string               `json:"attempted_policies"`
	PolicyFailures    map[string]string      `json:"policy_failures"`
	ExcludedNodes     []ExcludedNodeResponse `json:"excluded_nodes"`
}

type PlanResponse struct {
	SnapshotVersion uint64           `json:"snapshot_version"`
	Routes          []RouteResponse  `json:"routes"`
	NoRoute         *NoRouteResponse `json:"no_route,omitempty"`
}

func FromRoute(r domain.Route) RouteResponse {
	out := RouteResponse{
		Policy:             string(r.Policy),
		Path:               r.Path(),
		Waypoints:          make([]WaypointResponse, 0, len(r.Waypoints)),
		Segments:           make([]SegmentResponse, 0, len(r.Segments)),
		TotalDistanceKm:    r.TotalDistanceKm,
		TotalDurationMin:   r.TotalDurationMin,
		TotalCost:          r.TotalCost,
		SafetyScore:        r.SafetyScore,
		AccessibilityScore: r.AccessibilityScore,
		CrowdLevel:         r.CrowdLevel,
		Steps:              r.Steps,
		Calories:           r.Calories,
	}
	for _, w := range r.Waypoints {
		out.Waypoints = append(out.Waypoints, WaypointResponse{
			Rank:        w.Rank,
			LocationID:  w.LocationID,
			Name:        w.Name,
			Class:       string(w.Class),
			Coordinates: w.Coordinates.CoordsToList(),
		})
	}
	for _, s := range r.Segments {
		out.Segments = append(out.Segments, SegmentResponse{
			From:                s.From,
			To:                  s.To,
			DistanceKm:          s.DistanceKm,
			DurationMin:         s.DurationMin,
			CrowdFactor:         s.CrowdFactor,
			SafetyFactor:        s.SafetyFactor,
			AccessibilityFactor: s.AccessibilityFactor,
			RoadClass:           string(s.RoadClass),
			WidthM:              s.WidthM,
			Cost:                s.Cost,
		})
	}
	return out
}

func FromPlanResult(res *routing.PlanResult) PlanResponse {
	out := PlanResponse{
		SnapshotVersion: res.SnapshotVersion,
		Routes:          make([]RouteResponse, 0, len(res.Routes)),
	}
	for _, r := range res.Routes {
		out.Routes = append(out.Routes, FromRoute(r))
	}

	if nr := res.NoRoute; nr != nil {
		resp := &NoRouteResponse{
			Start:          nr.Start,
			End:            nr.End,
			PolicyFailures: make(map[string]string, len(nr.PolicyFailures)),
			ExcludedNodes:  make([]ExcludedNodeResponse, 0, len(nr.ExcludedNodes)),
		}
		for _, p := range nr.AttemptedPolicies {
			resp.AttemptedPolicies = append(resp.AttemptedPolicies, string(p))
		}
		for p, reason := range nr.PolicyFailures {
			resp.PolicyFailures[string(p)] = reason
		}
		for _, ex := range nr.ExcludedNodes {
			resp.ExcludedNodes = append(resp.ExcludedNodes, ExcludedNodeResponse{
				LocationID: ex.LocationID,
				Policy:     string(ex.Policy),
				Reason:     ex.Reason,
			})
		}
		out.NoRoute = resp
	}
	return out
}
