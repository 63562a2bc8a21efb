package handlers

import (
	"crowd-route-service/internal/alerts"
	"crowd-route-service/internal/api/dto"
	"crowd-route-service/internal/domain"
	"net/http"
)

type CrowdHandler struct {
	Venue Venue
}

// Snapshot returns every location's crowd entry from the current snapshot.
func (h *CrowdHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromSnapshot(h.Venue.Snapshot()))
}

func (h *CrowdHandler) Location(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	d, err := h.Venue.LocationDetail(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "crowd location", err)
		return
	}

	res := dto.CrowdDetailResponse{
		Location:        dto.FromLocation(d.Location),
		Recommendations: d.Recommendations,
		Alerts:          dto.FromAlerts(d.Alerts),
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	if d.HasCrowd {
		c := dto.FromLocationCrowd(d.Crowd)
		res.Crowd = &c
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Refresh forces a crowd refresh; calls inside the debounce window return the current snapshot.
func (h *CrowdHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}

	snap, err := h.Venue.RefreshCrowdState(r.Context())
	if err != nil {
		writeServiceError(w, r, "crowd refresh", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FromSnapshot(snap))
}

func (h *CrowdHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, h.Venue.Summary())
}

func (h *CrowdHandler) Locations(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	locs := h.Venue.Locations()
	res := dto.ListLocationResponse{Locations: make([]dto.LocationResponse, 0, len(locs))}
	for _, l := range locs {
		res.Locations = append(res.Locations, dto.FromLocation(l))
	}

	writeJSON(w, r, http.StatusOK, res)
}

type AlertHandler struct {
	Venue Venue
}

// List returns alerts for the current snapshot, highest priority first.
// An optional severity query parameter keeps alerts at or above that level.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	var minSev domain.Severity
	if v := r.URL.Query().Get("severity"); v != "" {
		s, err := domain.ParseSeverity(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		minSev = s
	}

	all := h.Venue.CurrentAlerts()
	var kept []domain.SafetyAlert
	for _, a := range all {
		if a.Severity >= minSev {
			kept = append(kept, a)
		}
	}

	res := dto.ListAlertResponse{
		SnapshotVersion: h.Venue.Snapshot().Version(),
		Counts:          alerts.CountBySeverity(all),
		Alerts:          dto.FromAlerts(kept),
	}
	writeJSON(w, r, http.StatusOK, res)
}

type TopologyHandler struct {
	Venue Venue
}

type reloadResponse struct {
	Locations   int `json:"locations"`
	Connections int `json:"connections"`
}

// Reload re-imports the topology. A failed import leaves the served graph untouched.
func (h *TopologyHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}

	g, err := h.Venue.ReloadTopology(r.Context())
	if err != nil {
		writeServiceError(w, r, "topology reload", err)
		return
	}

	writeJSON(w, r, http.StatusOK, reloadResponse{Locations: g.Len(), Connections: len(g.Connections())})
}
