// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Interaction ingestion (accepted/rejected by kind and reason)
// - Recommendation query latency and generator health
// - Recommendation cache efficiency and invalidation
// - Profile rebuild performance
// - Interaction log (DuckDB) query performance
// - WebSocket subscriptions

var (
	// Ingestion Metrics
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_recorded_total",
			Help: "Total number of interactions durably recorded",
		},
		[]string{"kind", "strategy"},
	)

	InteractionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_rejected_total",
			Help: "Total number of interactions rejected before storage",
		},
		[]string{"reason"}, // "validation", "rate_limited", "duplicate", "internal"
	)

	InteractionQuality = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interaction_quality",
			Help:    "Engagement quality scores assigned at ingestion",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
		[]string{"kind"},
	)

	IngressPipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingress_pipeline_duration_seconds",
			Help:    "Duration of the full ingress pipeline per event",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// Recommendation Query Metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_query_duration_seconds",
			Help:    "End-to-end recommendation query duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"strategy"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_queries_total",
			Help: "Total recommendation queries served",
		},
		[]string{"strategy", "outcome"}, // outcome: "ok", "partial", "fallback", "error"
	)

	GeneratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generator_duration_seconds",
			Help:    "Per-generator candidate production duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.4, 1},
		},
		[]string{"generator"},
	)

	GeneratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_failures_total",
			Help: "Total generator failures (timeouts count as failures)",
		},
		[]string{"generator", "reason"}, // reason: "timeout", "dependency", "internal"
	)

	GeneratorCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generator_candidates",
			Help:    "Number of candidates produced per generator call",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"generator"},
	)

	// Recommendation Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "feed", "profile", "dedup"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry or capacity)",
		},
		[]string{"cache_type"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of cache invalidations by trigger",
		},
		[]string{"trigger"}, // "product", "profile", "interaction"
	)

	// Profile Metrics
	ProfileRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_rebuilds_total",
			Help: "Total profile rebuilds by outcome",
		},
		[]string{"outcome"}, // "ok", "stale_served", "empty", "error"
	)

	ProfileRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "profile_rebuild_duration_seconds",
			Help:    "Profile rebuild duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ProfileAffinities = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profile_affinity_count",
			Help:    "Number of affinity entries per rebuilt profile",
			Buckets: []float64{0, 1, 5, 10, 25, 64, 128, 256},
		},
		[]string{"dimension"}, // "category", "tag"
	)

	// Interaction Log (DuckDB) Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	RetentionPurgedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_purged_rows_total",
			Help: "Total interaction rows removed by the retention purger",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"topic"},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_handled_total",
			Help: "Total number of events handled by subscribers",
		},
		[]string{"handler", "result"}, // result: "ok", "error"
	)

	EventHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_handler_duration_seconds",
			Help:    "Duration of event handler execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	EventsDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dead_lettered_total",
			Help: "Total number of messages surrendered to the dead-letter buffer",
		},
		[]string{"topic"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_product_subscriptions",
			Help: "Current number of product subscriptions across all connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordInteraction records a durably stored interaction.
func RecordInteraction(kind, strategy string, quality float64) {
	InteractionsRecorded.WithLabelValues(kind, strategy).Inc()
	InteractionQuality.WithLabelValues(kind).Observe(quality)
}

// RecordRejection records an interaction rejected before storage.
func RecordRejection(reason string) {
	InteractionsRejected.WithLabelValues(reason).Inc()
}

// RecordQuery records the end-to-end outcome of one recommendation query.
func RecordQuery(strategy, outcome string, duration time.Duration) {
	QueriesTotal.WithLabelValues(strategy, outcome).Inc()
	QueryDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordGenerator records one generator invocation.
func RecordGenerator(name string, duration time.Duration, candidates int, err error) {
	GeneratorDuration.WithLabelValues(name).Observe(duration.Seconds())
	GeneratorCandidates.WithLabelValues(name).Observe(float64(candidates))
	if err != nil {
		GeneratorFailures.WithLabelValues(name, classifyGeneratorError(err)).Inc()
	}
}

// classifyGeneratorError buckets a generator error for the failure counter.
func classifyGeneratorError(err error) string {
	msg := err.Error()
	switch {
	case containsAny(msg, "deadline", "timeout", "canceled", "cancelled"):
		return "timeout"
	case containsAny(msg, "unavailable", "breaker", "connection"):
		return "dependency"
	default:
		return "internal"
	}
}

// RecordCacheInvalidation records one invalidation pass by trigger.
func RecordCacheInvalidation(trigger string, keys int) {
	CacheInvalidations.WithLabelValues(trigger).Add(float64(keys))
}

// RecordProfileRebuild records a profile rebuild outcome.
func RecordProfileRebuild(outcome string, duration time.Duration, categories, tags int) {
	ProfileRebuilds.WithLabelValues(outcome).Inc()
	ProfileRebuildDuration.Observe(duration.Seconds())
	ProfileAffinities.WithLabelValues("category").Observe(float64(categories))
	ProfileAffinities.WithLabelValues("tag").Observe(float64(tags))
}

// RecordDBQuery records an interaction log query.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEventPublished records a message published to the event bus.
func RecordEventPublished(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventDeadLettered records a message surrendered after retries.
func RecordEventDeadLettered(topic string) {
	EventsDeadLettered.WithLabelValues(topic).Inc()
}

// RecordEventHandled records an event handler completion.
func RecordEventHandled(handler string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsHandled.WithLabelValues(handler, result).Inc()
	EventHandlerDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if contains(s, sub) {
			return true
		}
	}
	return false
}

// contains reports whether substr occurs anywhere in s.
func contains(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
