// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const compressibleBody = `{"success":true,"data":[{"id":"prod-1","score":0.91},{"id":"prod-2","score":0.88}]}`

func compressedHandler() http.Handler {
	return Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(compressibleBody))
	}))
}

func TestCompressionApplied(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recs/trending", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	compressedHandler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("response is not valid gzip: %v", err)
	}
	defer gz.Close()

	body, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(body) != compressibleBody {
		t.Errorf("decompressed body = %q, want original payload", body)
	}
}

func TestCompressionSkippedWithoutAcceptEncoding(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	compressedHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recs/trending", nil))

	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding = %q, want none", got)
	}
	if rec.Body.String() != compressibleBody {
		t.Errorf("body = %q, want plain payload", rec.Body.String())
	}
}

func TestCompressionSkippedForWebSocketUpgrade(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recs/live", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")

	rec := httptest.NewRecorder()
	compressedHandler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding = %q, want upgrade requests untouched", got)
	}
}

func TestCompressionShrinksLargePayloads(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat(compressibleBody, 200)
	handler := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recs/feed", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Body.Len() >= len(payload) {
		t.Errorf("compressed size %d not smaller than original %d", rec.Body.Len(), len(payload))
	}
}
