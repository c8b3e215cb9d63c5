// Package metrics exposes Prometheus collectors for the gamification engine
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	events             *prometheus.CounterVec
	pointsAwarded      *prometheus.CounterVec
	badgesAwarded      *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	evaluationDeferred prometheus.Counter
	rescanRuns         *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	wsConnections      prometheus.Gauge
}

// New creates collectors registered on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tila",
			Name:      "gamification_events_total",
			Help:      "Stat-mutating events processed, by kind and difficulty.",
		}, []string{"kind", "difficulty"}),
		pointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tila",
			Name:      "points_awarded_total",
			Help:      "Points credited to users, by source.",
		}, []string{"source"}),
		badgesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tila",
			Name:      "badges_awarded_total",
			Help:      "Badges awarded, by badge id.",
		}, []string{"badge"}),
		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tila",
			Name:      "badge_evaluation_duration_seconds",
			Help:      "Time spent evaluating the badge catalog for one user.",
			Buckets:   prometheus.DefBuckets,
		}),
		evaluationDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tila",
			Name:      "badge_evaluations_deferred_total",
			Help:      "Evaluations that failed after their event committed.",
		}),
		rescanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tila",
			Name:      "rescan_runs_total",
			Help:      "Retroactive rescans, by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tila",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tila",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tila",
			Name:      "websocket_connections",
			Help:      "Open badge notification connections.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.pointsAwarded,
		m.badgesAwarded,
		m.evaluationDuration,
		m.evaluationDeferred,
		m.rescanRuns,
		m.httpRequests,
		m.httpDuration,
		m.wsConnections,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Event(kind, difficulty string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, difficulty).Inc()
}

func (m *Metrics) Points(source string, points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.WithLabelValues(source).Add(float64(points))
}

func (m *Metrics) BadgeAwarded(badgeID string) {
	if m == nil {
		return
	}
	m.badgesAwarded.WithLabelValues(badgeID).Inc()
}

func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.evaluationDuration.Observe(d.Seconds())
}

// EvaluationDeferred counts an evaluation left for the next trigger or rescan
func (m *Metrics) EvaluationDeferred() {
	if m == nil {
		return
	}
	m.evaluationDeferred.Inc()
}

func (m *Metrics) Rescan(outcome string) {
	if m == nil {
		return
	}
	m.rescanRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) WSConnections(n int) {
	if m == nil {
		return
	}
	m.wsConnections.Set(float64(n))
}
