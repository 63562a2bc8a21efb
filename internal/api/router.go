package api

import (
	"crowd-route-service/internal/api/handlers"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
// A nil gatherer leaves /metrics unregistered.
func NewRouter(venue handlers.Venue, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	routeHandler := &handlers.RouteHandler{Venue: venue}
	crowdHandler := &handlers.CrowdHandler{Venue: venue}
	alertHandler := &handlers.AlertHandler{Venue: venue}
	topoHandler := &handlers.TopologyHandler{Venue: venue}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/locations", crowdHandler.Locations)
	mux.HandleFunc("/routes", routeHandler.Plan)
	mux.HandleFunc("/crowd", crowdHandler.Snapshot)
	mux.HandleFunc("/crowd/summary", crowdHandler.Summary)
	mux.HandleFunc("/crowd/refresh", crowdHandler.Refresh)
	mux.HandleFunc("/crowd/{id}", crowdHandler.Location)
	mux.HandleFunc("/alerts", alertHandler.List)
	mux.HandleFunc("/topology/reload", topoHandler.Reload)

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return loggingMiddleware(requestIDMiddleware(mux))
}
