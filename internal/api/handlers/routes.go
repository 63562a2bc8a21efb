package handlers

import (
	"crowd-route-service/internal/api/dto"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/routing"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

type RouteHandler struct {
	Venue Venue
}

// Plan computes one route per requested policy against the current crowd snapshot.
// A request with no usable path still returns 200 with a no_route body.
func (h *RouteHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}

	var req dto.RouteRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	planReq, msg := toPlanRequest(req)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	res, err := h.Venue.PlanRoutes(r.Context(), planReq)
	if err != nil {
		writeServiceError(w, r, "plan routes", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FromPlanResult(res))
}

func toPlanRequest(req dto.RouteRequest) (routing.PlanRequest, string) {
	start := strings.TrimSpace(req.Start)
	end := strings.TrimSpace(req.End)
	if start == "" || end == "" {
		return routing.PlanRequest{}, "start and end are required"
	}

	profile := domain.PreferenceProfile{
		AvoidCrowds:           true,
		AccessibilityRequired: req.AccessibilityRequired,
	}
	if req.AvoidCrowds != nil {
		profile.AvoidCrowds = *req.AvoidCrowds
	}

	if req.Policy != "" {
		p, err := domain.ParsePolicy(req.Policy)
		if err != nil {
			return routing.PlanRequest{}, err.Error()
		}
		profile.Policy = p
	}

	mode, err := domain.ParseTransportMode(req.TransportMode)
	if err != nil {
		return routing.PlanRequest{}, err.Error()
	}
	profile.TransportMode = mode

	var policies []domain.Policy
	for _, raw := range req.Policies {
		p, err := domain.ParsePolicy(raw)
		if err != nil {
			return routing.PlanRequest{}, err.Error()
		}
		policies = append(policies, p)
	}

	return routing.PlanRequest{Start: start, End: end, Profile: profile, Policies: policies}, ""
}
