package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	plannerRequests      *prometheus.CounterVec
	plannerDuration      *prometheus.HistogramVec
	crowdRefresh         *prometheus.CounterVec
	crowdPartialFailures prometheus.Counter
	snapshotVersion      prometheus.Gauge
	alertsActive         *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		plannerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "venue_planner_requests_total",
			Help: "Route plan requests by outcome",
		}, []string{"outcome"}),

		plannerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "venue_planner_duration_seconds",
			Help:    "Time spent searching one policy",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"policy"}),

		crowdRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Name: "venue_crowd_refresh_total",
			Help: "Crowd refreshes by result",
		}, []string{"result"}),

		crowdPartialFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "venue_crowd_partial_failures_total",
			Help: "Locations that kept stale values after a failed refresh",
		}),

		snapshotVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "venue_crowd_snapshot_version",
			Help: "Version of the currently published crowd snapshot",
		}),

		alertsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "venue_alerts_active",
			Help: "Active safety alerts by severity",
		}, []string{"severity"}),
	}
}

func (m *Metrics) PlanOutcome(outcome string) {
	if m == nil {
		return
	}
	m.plannerRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PolicySearched(policy string, d time.Duration) {
	if m == nil {
		return
	}
	m.plannerDuration.WithLabelValues(policy).Observe(d.Seconds())
}

// Refreshed records one refresh attempt and, on success, the published version.
func (m *Metrics) Refreshed(result string, version uint64, partialFailures int) {
	if m == nil {
		return
	}
	m.crowdRefresh.WithLabelValues(result).Inc()
	if result == "ok" || result == "partial" {
		m.snapshotVersion.Set(float64(version))
	}
	if partialFailures > 0 {
		m.crowdPartialFailures.Add(float64(partialFailures))
	}
}

// AlertsActive replaces the per-severity gauge values.
func (m *Metrics) AlertsActive(bySeverity map[string]int) {
	if m == nil {
		return
	}
	m.alertsActive.Reset()
	for sev, n := range bySeverity {
		m.alertsActive.WithLabelValues(sev).Set(float64(n))
	}
}
