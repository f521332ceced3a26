package http

import (
	"net/http"

	"github.com/promptgate/gateway/internal/policy/store"
)

// HealthChecker backs GET /healthz. Per spec.md §6.1 the endpoint has no
// failure mode of its own: a process that can accept connections and serve
// this handler responds 200 "ok".
type HealthChecker struct {
	store   *store.Store
	version string
}

// NewHealthChecker creates a HealthChecker backed by the policy store.
func NewHealthChecker(s *store.Store, version string) *HealthChecker {
	return &HealthChecker{store: s, version: version}
}

// Handler returns the /healthz HTTP handler: a literal 200 "ok" body.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
