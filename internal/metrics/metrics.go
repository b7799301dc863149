// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package metrics provides Prometheus instrumentation for the sync engine:
// provider request latency and outcomes, cache efficiency, rate-limit
// admissions, sync run throughput, webhook ingestion, and queue depth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider API metrics

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinegraph_provider_request_duration_seconds",
			Help:    "Duration of content provider API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_provider_requests_total",
			Help: "Total provider API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, error, rejected
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_provider_errors_total",
			Help: "Total classified provider errors by taxonomy kind",
		},
		[]string{"endpoint", "kind"},
	)

	// Circuit breaker state: 0=closed, 1=half-open, 2=open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinegraph_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Response cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_cache_hits_total",
			Help: "Response cache hits by type tag",
		},
		[]string{"type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_cache_misses_total",
			Help: "Response cache misses by type tag",
		},
		[]string{"type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_cache_evictions_total",
			Help: "Response cache evictions by reason (expired, lru, invalidated)",
		},
		[]string{"reason"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinegraph_cache_entries",
			Help: "Current number of response cache entries",
		},
	)

	// Rate limiter metrics

	RateLimitAdmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_rate_limit_admissions_total",
			Help: "Rate limiter decisions by endpoint and result (allowed, denied, burst)",
		},
		[]string{"endpoint", "result"},
	)

	RateLimitBackoffSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinegraph_rate_limit_backoff_seconds",
			Help: "Current computed backoff per endpoint in seconds",
		},
		[]string{"endpoint"},
	)

	// Sync metrics

	SyncItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_sync_items_total",
			Help: "Synced items by run type and outcome",
		},
		[]string{"run_type", "outcome"}, // outcome: success, failure
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinegraph_sync_run_duration_seconds",
			Help:    "Duration of scheduled sync runs in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"run_type"},
	)

	// Webhook metrics

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_webhook_events_total",
			Help: "Inbound webhook events by action and result",
		},
		[]string{"action", "result"}, // result: accepted, rejected, invalid
	)

	// HTTP surface metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinegraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinegraph_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Deferred sync queue metrics

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinegraph_queue_depth",
			Help: "Number of pending deferred sync tasks",
		},
	)

	QueueTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinegraph_queue_tasks_total",
			Help: "Deferred queue task outcomes (enqueued, coalesced, completed, failed, retried, dropped)",
		},
		[]string{"outcome"},
	)
)
