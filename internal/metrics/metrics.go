// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
Package metrics defines the Prometheus instrumentation used across FinScope.

All collectors are registered on the default registry via promauto so a
single import wires them into the /metrics endpoint.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal counts history sync runs by endpoint and outcome.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_sync_runs_total",
			Help: "Total number of history sync runs",
		},
		[]string{"endpoint", "status"},
	)

	// SyncRecordsInserted counts playback records inserted during sync.
	SyncRecordsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_sync_records_inserted_total",
			Help: "Total number of new playback records inserted during sync",
		},
		[]string{"endpoint"},
	)

	// SyncPageFetchErrors counts failed history page fetches.
	SyncPageFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_sync_page_fetch_errors_total",
			Help: "Total number of failed upstream history page fetches",
		},
		[]string{"endpoint"},
	)

	// SyncDuration observes the wall-clock duration of sync runs.
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finscope_sync_duration_seconds",
			Help:    "Duration of history sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	// AnalyticsParseErrors counts rows skipped by the aggregator due to
	// unparseable timestamps.
	AnalyticsParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finscope_analytics_parse_errors_total",
			Help: "Total number of playback rows skipped due to timestamp parse errors",
		},
	)

	// SessionsTracked counts playback records captured by the session tracker.
	SessionsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_sessions_tracked_total",
			Help: "Total number of playback records captured from live sessions",
		},
		[]string{"endpoint"},
	)

	// CircuitBreakerState reports the current breaker state per upstream host
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finscope_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"host"},
	)

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"host", "from", "to"},
	)

	// CircuitBreakerConsecutiveFailures reports the breaker's current
	// consecutive failure count per upstream host.
	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finscope_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures seen by the circuit breaker",
		},
		[]string{"host"},
	)

	// CircuitBreakerRequests counts requests passed through the breaker.
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"host", "result"},
	)

	// HTTPRequestsTotal counts API requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes API request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finscope_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// CacheHits counts analytics cache hits by cache key.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"key"},
	)

	// CacheMisses counts analytics cache misses by cache key.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"key"},
	)

	// DBQueryErrors counts database operation failures by operation name.
	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscope_db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"operation"},
	)
)
