// Package metrics exposes Prometheus instrumentation for the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds all Prometheus collectors for VeraScore.
type Registry struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Background job metrics
	JobRuns *prometheus.CounterVec
}

// NewRegistry creates a registry with all VeraScore metrics registered.
// A dedicated prometheus.Registry keeps repeated construction (tests) from
// colliding on the global default registerer.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verascore_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verascore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by method and route",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method", "route"},
		),

		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verascore_job_runs_total",
				Help: "Total number of scheduled job executions by job and result",
			},
			[]string{"job", "result"},
		),
	}

	r.registry.MustRegister(
		r.HTTPRequests,
		r.HTTPDuration,
		r.JobRuns,
	)

	return r
}

// RecordJobRun records one execution of a scheduled job.
func (r *Registry) RecordJobRun(job, result string) {
	r.JobRuns.WithLabelValues(job, result).Inc()
}

// Middleware instruments every request with count and duration. Routes are
// labelled with the chi route pattern, not the raw path, so ticker and ID
// segments do not explode cardinality.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := chi.RouteContext(req.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		r.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(ww.Status())).Inc()
		r.HTTPDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the HTTP handler serving the /metrics scrape endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry for tests.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}
