package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "formsync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "formsync",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for form synchronization.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	syncTotal       *prometheus.CounterVec
	syncChanges     prometheus.Histogram
	submitTotal     *prometheus.CounterVec
	watchers        prometheus.Gauge
}

// globalMetrics is the singleton metrics instance.
// Created on first call to Metrics().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

// initMetrics initializes the Prometheus metrics.
func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests processed",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		syncTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sync_total",
			Help:        "Total number of snapshot reconciliations by form and result",
			ConstLabels: config.ConstLabels,
		}, []string{"form", "result"}),

		syncChanges: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sync_changes",
			Help:        "Changed paths per reconciliation that produced a diff",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100},
		}),

		submitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "submit_total",
			Help:        "Total number of upstream submissions by encoding and status",
			ConstLabels: config.ConstLabels,
		}, []string{"encoding", "status"}),

		watchers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watchers",
			Help:        "Number of connected watch clients",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Metrics creates middleware that collects Prometheus metrics for every
// request passing through it.
//
// Metrics collected:
//   - formsync_http_requests_total: Counter of requests by method, route, and status
//   - formsync_http_request_duration_seconds: Histogram of request duration by route
//   - formsync_sync_total: Counter of reconciliations (via RecordSync)
//   - formsync_sync_changes: Histogram of changed paths per diff (via RecordSync)
//   - formsync_submit_total: Counter of upstream submissions (via RecordSubmit)
//   - formsync_watchers: Gauge of connected watch clients (via IncWatchers/DecWatchers)
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Metrics(
//	    middleware.WithNamespace("myapp"),
//	))
//
//	// Expose metrics endpoint
//	r.Handle("/metrics", promhttp.Handler())
func Metrics(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Initialize metrics once
	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			// Time the request
			start := time.Now()
			next.ServeHTTP(ww, r)
			duration := time.Since(start).Seconds()

			route := routePattern(r.Context(), r.URL.Path)
			m.requestDuration.WithLabelValues(route).Observe(duration)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		})
	}
}

// routePattern prefers the matched chi route pattern over the raw URL path,
// which keeps the route label's cardinality bounded. The pattern is read
// after the handler ran: chi fills the route context during routing, and the
// context value is a pointer, so the pre-routing reference sees the match.
func routePattern(ctx context.Context, fallback string) string {
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if fallback == "" {
		return "/"
	}
	return fallback
}

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// RecordSync records one reconciliation pass for a form. paths is the number
// of changed paths and is only observed when the pass produced a diff.
func RecordSync(form string, changed bool, paths int) {
	if globalMetrics == nil {
		return
	}
	result := "unchanged"
	if changed {
		result = "changed"
		globalMetrics.syncChanges.Observe(float64(paths))
	}
	globalMetrics.syncTotal.WithLabelValues(form, result).Inc()
}

// RecordSubmit records one upstream submission attempt.
func RecordSubmit(encoding string, ok bool) {
	if globalMetrics == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	globalMetrics.submitTotal.WithLabelValues(encoding, status).Inc()
}

// IncWatchers records a watch client connecting.
func IncWatchers() {
	if globalMetrics != nil {
		globalMetrics.watchers.Inc()
	}
}

// DecWatchers records a watch client disconnecting.
func DecWatchers() {
	if globalMetrics != nil {
		globalMetrics.watchers.Dec()
	}
}
