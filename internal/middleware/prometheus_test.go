// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/huntboard/huntboard/internal/metrics"
)

// getCounterValue extracts the value from a Prometheus counter.
func getCounterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func instrumentedRouter(handler http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/v1/recs/similar/{productId}", handler)
	return r
}

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	router := instrumentedRouter(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(
		http.MethodGet, "/api/v1/recs/similar/{productId}", "200")
	before := getCounterValue(counter)

	for _, path := range []string{
		"/api/v1/recs/similar/prod-1",
		"/api/v1/recs/similar/prod-2",
		"/api/v1/recs/similar/prod-3",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	after := getCounterValue(counter)
	if after-before != 3 {
		t.Errorf("expected one time series shared by all product IDs, delta = %v, want 3", after-before)
	}
}

func TestMetricsCapturesStatus(t *testing.T) {
	router := instrumentedRouter(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(
		http.MethodGet, "/api/v1/recs/similar/{productId}", "404")
	before := getCounterValue(counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recs/similar/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if delta := getCounterValue(counter) - before; delta != 1 {
		t.Errorf("404 counter delta = %v, want 1", delta)
	}
}

func TestMetricsImplicitOK(t *testing.T) {
	// A handler that writes a body without calling WriteHeader still
	// reports 200.
	router := instrumentedRouter(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(
		http.MethodGet, "/api/v1/recs/similar/{productId}", "200")
	before := getCounterValue(counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recs/similar/prod-9", nil))

	if delta := getCounterValue(counter) - before; delta != 1 {
		t.Errorf("200 counter delta = %v, want 1", delta)
	}
}

func TestStatusWriterSingleHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.WriteHeader(http.StatusTooManyRequests)
	sw.WriteHeader(http.StatusOK) // late second call must not override

	if sw.status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want first WriteHeader to win", sw.status)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("recorded code = %d, want 429", rec.Code)
	}
}

func TestStatusWriterHijackUnsupported(t *testing.T) {
	t.Parallel()

	// httptest.ResponseRecorder does not implement http.Hijacker.
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := sw.Hijack(); err == nil {
		t.Error("expected hijack to fail on a non-hijackable writer")
	}
}
