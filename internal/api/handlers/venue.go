package handlers

import (
	"context"
	"crowd-route-service/internal/crowd"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/routing"
	"crowd-route-service/internal/services"
	"crowd-route-service/internal/topology"
	"errors"
	"log"
	"net/http"
)

// Venue is the service surface the handlers depend on.
type Venue interface {
	Locations() []domain.Location
	PlanRoutes(ctx context.Context, req routing.PlanRequest) (*routing.PlanResult, error)
	Snapshot() *domain.CrowdSnapshot
	RefreshCrowdState(ctx context.Context) (*domain.CrowdSnapshot, error)
	CurrentAlerts() []domain.SafetyAlert
	Summary() crowd.Summary
	LocationDetail(id string) (services.LocationDetail, error)
	ReloadTopology(ctx context.Context) (*topology.Graph, error)
}

var _ Venue = (*services.VenueService)(nil)

// writeServiceError maps domain errors to statuses. Unknown errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var gbe *domain.GraphBuildError

	switch {
	case errors.Is(err, domain.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &gbe):
		writeError(w, r, http.StatusUnprocessableEntity, gbe.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Printf("%s aborted: %v", op, err)
		writeError(w, r, http.StatusServiceUnavailable, "request aborted")
	default:
		log.Printf("%s failed: %v", op, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func allowOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
