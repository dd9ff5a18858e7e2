// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring ingestion, recommendation quality of
service, cache efficiency, and system health.

# Overview

The package provides metrics for:
  - Interaction ingestion (accepted by kind/strategy, rejected by reason)
  - Recommendation query latency and outcome by strategy
  - Per-generator latency, candidate counts, and failures
  - Recommendation cache hit/miss/eviction/invalidation rates
  - Profile rebuild durations and affinity sizes
  - Interaction log (DuckDB) query performance and retention purges
  - HTTP request latency and throughput
  - Event bus publish/handle statistics
  - WebSocket connection and subscription counts
  - Circuit breaker state transitions

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Ingestion:
  - interactions_recorded_total: Stored interactions (counter)
    Labels: kind, strategy
  - interactions_rejected_total: Pre-storage rejections (counter)
    Labels: reason ("validation", "rate_limited", "duplicate", "internal")
  - interaction_quality: Engagement quality distribution (histogram)
    Labels: kind. Buckets: 0..10 in unit steps

Recommendation queries:
  - recommendation_query_duration_seconds: End-to-end latency (histogram)
    Labels: strategy
  - recommendation_queries_total: Query outcomes (counter)
    Labels: strategy, outcome ("ok", "partial", "fallback", "error")
  - generator_duration_seconds: Per-generator latency (histogram)
  - generator_failures_total: Generator failures (counter)
    Labels: generator, reason ("timeout", "dependency", "internal")
  - generator_candidates: Candidates per call (histogram)

Cache:
  - cache_hits_total / cache_misses_total / cache_evictions_total (counters)
    Labels: cache_type ("recommendation", "dedup")
  - cache_entries: Current entries (gauge)
  - cache_invalidations_total: Keys invalidated (counter)
    Labels: trigger ("product", "profile", "interaction")

Profiles:
  - profile_rebuilds_total: Rebuilds by outcome (counter)
  - profile_rebuild_duration_seconds: Rebuild latency (histogram)
  - profile_affinity_count: Affinity entries per rebuild (histogram)
    Labels: dimension ("category", "tag")

# Usage Patterns

Recording helpers keep call sites one-liners:

	defer func(start time.Time) {
	    metrics.RecordQuery("trending", outcome, time.Since(start))
	}(time.Now())

	metrics.RecordInteraction(string(rec.Kind), string(rec.Strategy), rec.Quality)
	metrics.RecordRejection("rate_limited")

# Cardinality

Label values are drawn from closed sets (interaction kinds, strategy names,
generator names, outcome enums). Never label by user ID, product ID, or any
client-supplied string.

# See Also

  - internal/api: HTTP middleware recording request metrics
  - internal/recommend: engine recording query/generator metrics
  - internal/ingress: pipeline recording ingestion metrics
*/
package metrics
