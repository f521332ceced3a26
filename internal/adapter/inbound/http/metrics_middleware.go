// Package http provides the HTTP transport adapter for the policy gateway.
package http

import (
	"net/http"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record Prometheus metrics.
// It records:
// - http_request_duration_seconds histogram (by method and path)
// - http_requests_total counter (by method, path and status)
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for /metrics and /healthz endpoints
			if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			method := r.Method
			path := routeLabel(r.URL.Path)
			status := statusToLabel(wrapped.status)

			metrics.RequestDuration.WithLabelValues(method, path).Observe(duration)
			metrics.RequestsTotal.WithLabelValues(method, path, status).Inc()
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// statusToLabel converts HTTP status code to label value.
func statusToLabel(code int) string {
	if code >= 200 && code < 400 {
		return "ok"
	}
	return "error"
}

// routeLabel collapses a request path to a low-cardinality metric label,
// avoiding unbounded label values from arbitrary admin paths.
func routeLabel(path string) string {
	switch path {
	case "/v1/eval":
		return "/v1/eval"
	case "/admin/v1/policy":
		return "/admin/v1/policy"
	case "/admin/v1/policy/apply":
		return "/admin/v1/policy/apply"
	case "/admin/v1/policy/validate":
		return "/admin/v1/policy/validate"
	default:
		return "other"
	}
}
