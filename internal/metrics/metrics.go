// Package metrics defines the Prometheus collectors used by the server,
// the renderer and the backend client, and exposes a scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for plagiview.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RendersTotal         *prometheus.CounterVec
	RenderCache          *prometheus.CounterVec
	RenderRuns           *prometheus.HistogramVec
	BackendRequestsTotal *prometheus.CounterVec
	BackendLatency       *prometheus.HistogramVec
	InboxFilesTotal      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg uses a
// fresh private registry, which keeps tests from colliding on the default one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiview_renders_total",
				Help: "Views rendered by kind (report, comparison).",
			},
			[]string{"kind"},
		),
		RenderCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiview_render_cache_total",
				Help: "View cache lookups by kind and result (hit, miss).",
			},
			[]string{"kind", "result"},
		),
		RenderRuns: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plagiview_render_runs",
				Help:    "Number of highlighted runs produced per rendered pane.",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"kind"},
		),
		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiview_backend_requests_total",
				Help: "Requests made to the analysis backend by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		),
		BackendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plagiview_backend_latency_seconds",
				Help:    "Analysis backend latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		InboxFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiview_inbox_files_total",
				Help: "Inbox payload files processed by result (rendered, removed, error).",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RendersTotal,
		m.RenderCache,
		m.RenderRuns,
		m.BackendRequestsTotal,
		m.BackendLatency,
		m.InboxFilesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
