// Package metrics provides Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderAttemptsTotal counts HTTP attempts per provider by outcome:
	// "success", "retryable", "fallback".
	ProviderAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_attempts_total",
			Help: "Total number of HTTP attempts made against each provider, by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderAttemptLatency tracks the duration of single provider HTTP calls.
	ProviderAttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_attempt_latency_seconds",
			Help:    "Latency of a single provider HTTP call in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"provider"},
	)

	// ProviderSkipsTotal counts providers passed over without an HTTP call.
	ProviderSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_skips_total",
			Help: "Providers skipped without an HTTP call, by reason.",
		},
		[]string{"provider", "reason"}, // "not_configured", "circuit_open"
	)

	// InvocationsTotal counts orchestrated invocations by final status.
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invocations_total",
			Help: "Total number of fallback-chain invocations by final status.",
		},
		[]string{"status"}, // "success", "all_failed", "cancelled"
	)

	// InvocationLatency tracks end-to-end fallback chain latency.
	InvocationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invocation_latency_seconds",
			Help:    "End-to-end fallback chain latency in seconds, by winning provider.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"}, // "none" when every provider failed
	)

	// CircuitBreakerState tracks the current state of each circuit breaker.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"provider"},
	)

	// CompletionCacheLookupsTotal counts completion cache lookups by result.
	CompletionCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_cache_lookups_total",
			Help: "Completion cache lookups by result.",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	// RequestsTotal counts RPCs by method and gRPC status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of RPCs by method and status code.",
		},
		[]string{"method", "code"},
	)

	// ActiveRequests tracks the number of currently in-flight requests.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_requests",
			Help: "Number of currently in-flight requests.",
		},
	)
)
