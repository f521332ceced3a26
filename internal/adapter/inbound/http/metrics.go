// Package http provides the HTTP transport adapter for the policy gateway.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	EvaluationsTotal     *prometheus.CounterVec
	EvaluationDuration   prometheus.Histogram
	PiiFindingsTotal     *prometheus.CounterVec
	SemanticMatchesTotal prometheus.Counter
	PolicyReloadsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		EvaluationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Name:      "policy_evaluations_total",
				Help:      "Total policy evaluations, labelled by kind and action",
			},
			[]string{"kind", "action"},
		),
		EvaluationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Name:      "policy_evaluation_duration_seconds",
				Help:      "Time to evaluate a single request against the compiled policy",
				Buckets:   prometheus.DefBuckets,
			},
		),
		PiiFindingsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Name:      "pii_findings_total",
				Help:      "Total PII entities detected, labelled by entity type",
			},
			[]string{"entity_type"},
		),
		SemanticMatchesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Name:      "semantic_matches_total",
				Help:      "Total requests matched by the semantic similarity matcher",
			},
		),
		PolicyReloadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Name:      "policy_reloads_total",
				Help:      "Total policy document reloads, labelled by outcome",
			},
			[]string{"outcome"}, // outcome=ok/error
		),
	}
}
