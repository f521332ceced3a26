// Package http provides the HTTP transport for the policy evaluation
// gateway.
//
// # Usage
//
// Create and start an HTTP transport:
//
//	transport := http.NewHTTPTransport(evaluator, policyStore,
//	    http.WithAddr(":8080"),
//	    http.WithAllowedOrigins([]string{"https://example.com"}),
//	    http.WithLogger(logger),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
//	POST /v1/eval                    - evaluate a prompt or response
//	GET  /healthz                    - liveness/readiness check
//	GET  /metrics                    - Prometheus metrics
//	GET  /admin/v1/policy            - inspect the loaded policy document
//	POST /admin/v1/policy/validate   - dry-run compile a candidate document
//	POST /admin/v1/policy/apply      - compile, persist, and hot-swap a document
//
// # Security
//
// Admin endpoints are protected by Origin header validation
// (WithAllowedOrigins); an empty allowlist blocks every browser-originated
// request, leaving admin access to same-origin tooling such as the gateway's
// own CLI.
//
// # Middleware Chain
//
// Requests pass through middleware in this order (outermost first):
//
//  1. MetricsMiddleware - records request duration and status
//  2. RealIPMiddleware - extracts client IP from proxy headers
//  3. RequestIDMiddleware - extracts/generates a request ID, enriches the logger
//  4. DNSRebindingProtection - applied only to the /admin/ subtree
package http
