// Package metrics exposes Prometheus collectors for analysis runs and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/almuhajirin/hafalan-hub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

const namespace = "hafalan"

// Config holds metrics configuration.
type Config struct {
	// SlowRequestThreshold marks a request as slow.
	SlowRequestThreshold time.Duration

	// OnSlowRequest is called when a request exceeds the threshold.
	OnSlowRequest func(route string, took time.Duration)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{SlowRequestThreshold: 2 * time.Second}
}

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	config   Config
	registry *prometheus.Registry

	analysisRuns     *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	analysisStudents prometheus.Histogram
	screenedBefore   prometheus.Counter
	screenedDropped  prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
	slowRequests *prometheus.CounterVec
}

var _ query.Recorder = (*Metrics)(nil)

// New creates and registers all collectors.
func New(cfg Config) *Metrics {
	if cfg.SlowRequestThreshold <= 0 {
		cfg.SlowRequestThreshold = DefaultConfig().SlowRequestThreshold
	}
	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),

		analysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time to build a tier report.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
		analysisStudents: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_students",
			Help:      "Students per successful report.",
			Buckets:   prometheus.LinearBuckets(5, 5, 10),
		}),
		screenedBefore: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_screened_total",
			Help:      "Daily records read for analysis.",
		}),
		screenedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Daily records dropped for missing required fields.",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests being served.",
		}),
		slowRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_slow_requests_total",
			Help:      "HTTP requests slower than the configured threshold.",
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.analysisRuns, m.analysisDuration, m.analysisStudents,
		m.screenedBefore, m.screenedDropped,
		m.httpRequests, m.httpDuration, m.httpInFlight, m.slowRequests,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAnalysis records one analysis run.
func (m *Metrics) ObserveAnalysis(outcome query.Outcome, took time.Duration, students int) {
	m.analysisRuns.WithLabelValues(string(outcome)).Inc()
	m.analysisDuration.WithLabelValues(string(outcome)).Observe(took.Seconds())
	if outcome == query.OutcomeOK {
		m.analysisStudents.Observe(float64(students))
	}
}

// ObserveScreening records screening counts of one run.
func (m *Metrics) ObserveScreening(before, after int) {
	m.screenedBefore.Add(float64(before))
	if dropped := before - after; dropped > 0 {
		m.screenedDropped.Add(float64(dropped))
	}
}

// TrackInFlight increments the in-flight gauge and returns its release.
func (m *Metrics) TrackInFlight() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
	if took >= m.config.SlowRequestThreshold {
		m.slowRequests.WithLabelValues(route).Inc()
		if m.config.OnSlowRequest != nil {
			m.config.OnSlowRequest(route, took)
		}
	}
}
