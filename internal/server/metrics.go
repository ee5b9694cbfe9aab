package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	selections   *prometheus.CounterVec
	sessions     prometheus.Gauge
	reloads      prometheus.Counter
	cleared      *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orgpulse",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "orgpulse",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"method", "route"},
		),
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orgpulse",
				Subsystem: "drilldown",
				Name:      "selections_total",
				Help:      "Selection requests by tier and outcome.",
			},
			[]string{"tier", "result"},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orgpulse",
				Subsystem: "drilldown",
				Name:      "sessions",
				Help:      "Number of live drill-down sessions.",
			},
		),
		reloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "orgpulse",
				Subsystem: "registry",
				Name:      "reloads_total",
				Help:      "Registry snapshots swapped into the server.",
			},
		),
		cleared: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orgpulse",
				Subsystem: "registry",
				Name:      "cleared_selections_total",
				Help:      "Selection fields cleared while reconciling sessions after a reload.",
			},
			[]string{"field"},
		),
	}
	m.Registry.MustRegister(m.httpRequests, m.httpDuration, m.selections, m.sessions, m.reloads, m.cleared)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Instrument records request counts and latency per route template.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
