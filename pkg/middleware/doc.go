// Package middleware provides production-grade HTTP middleware for formsync
// servers.
//
// This package includes:
//   - OpenTelemetry distributed tracing middleware
//   - Prometheus metrics middleware
//   - Recording helpers for reconciliation, submission, and watcher metrics
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware traces every request, naming spans after the
// matched route and marking 5xx responses as errors.
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry())
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Metrics middleware collects metrics about a formsync server:
//   - formsync_http_requests_total: Requests by method, route, and status
//   - formsync_http_request_duration_seconds: Request duration histogram
//   - formsync_sync_total: Reconciliation passes by form and result
//   - formsync_sync_changes: Changed paths per diff
//   - formsync_submit_total: Upstream submissions by encoding and status
//   - formsync_watchers: Connected watch clients
//
//	r.Use(middleware.Metrics())
//
// Then expose the metrics endpoint:
//
//	r.Handle("/metrics", promhttp.Handler())
//
// Collectors register once, on the first Metrics() call; later instances
// share them. The recording helpers (RecordSync, RecordSubmit, IncWatchers,
// DecWatchers) are safe to call from any package at any time and do nothing
// until the metrics have been initialized.
//
// # Context Propagation
//
// The tracing middleware injects the span into the request context, so
// database drivers and HTTP clients called from handlers inherit the trace:
//
//	func handle(w http.ResponseWriter, r *http.Request) {
//	    row := db.QueryRowContext(r.Context(), "SELECT ...")
//	    req, _ := http.NewRequestWithContext(r.Context(), "GET", url, nil)
//	}
package middleware
