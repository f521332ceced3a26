// Package http provides the HTTP transport adapter for the policy gateway.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptgate/gateway/internal/eval"
	"github.com/promptgate/gateway/internal/policy/store"
)

// HTTPTransport is the inbound adapter that exposes the policy gateway over
// HTTP: the evaluation endpoint clients call for every prompt/response, and
// the admin endpoints used to inspect and hot-reload the policy document.
type HTTPTransport struct {
	evaluator       *eval.Evaluator
	store           *store.Store
	server          *http.Server
	addr            string
	allowedOrigins  []string
	shutdownTimeout time.Duration
	maxBodyBytes    int64
	logger          *slog.Logger
	healthChecker   *HealthChecker
	version         string
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) { t.addr = addr }
}

// WithAllowedOrigins sets the allowed origins for DNS rebinding protection
// on admin endpoints. If empty, all requests with an Origin header are
// blocked (local-only mode).
func WithAllowedOrigins(origins []string) Option {
	return func(t *HTTPTransport) { t.allowedOrigins = origins }
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) { t.logger = logger }
}

// WithShutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests to finish.
func WithShutdownTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) { t.shutdownTimeout = d }
}

// WithMaxBodyBytes caps the size of a POST /v1/eval request body.
func WithMaxBodyBytes(n int64) Option {
	return func(t *HTTPTransport) { t.maxBodyBytes = n }
}

// WithVersion sets the version string handed to the health checker. The
// /healthz body is the literal "ok" and does not include it.
func WithVersion(version string) Option {
	return func(t *HTTPTransport) { t.version = version }
}

// NewHTTPTransport creates an HTTP transport adapter serving evaluations
// against s via evaluator.
func NewHTTPTransport(evaluator *eval.Evaluator, s *store.Store, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		evaluator:       evaluator,
		store:           s,
		addr:            "127.0.0.1:8080",
		allowedOrigins:  []string{},
		shutdownTimeout: 10 * time.Second,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start begins accepting HTTP connections and serving evaluation and admin
// requests. It blocks until the context is cancelled or an error occurs.
func (t *HTTPTransport) Start(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg)

	if t.healthChecker == nil {
		t.healthChecker = NewHealthChecker(t.store, t.version)
	}

	evalHandler := NewEvalHandler(t.evaluator, metrics, t.maxBodyBytes)
	policyHandler := NewPolicyHandler(t.store)

	mux := http.NewServeMux()
	mux.Handle("/healthz", t.healthChecker.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/v1/eval", evalHandler)

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/admin/v1/policy", policyHandler.Get)
	adminMux.HandleFunc("/admin/v1/policy/apply", policyHandler.Apply)
	adminMux.HandleFunc("/admin/v1/policy/validate", policyHandler.Validate)
	admin := DNSRebindingProtection(t.allowedOrigins)(adminMux)
	mux.Handle("/admin/", admin)

	var handler http.Handler = mux
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = RealIPMiddleware(handler)
	handler = MetricsMiddleware(metrics)(handler)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.shutdownTimeout)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
