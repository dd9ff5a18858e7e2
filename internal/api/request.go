// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/recommend"
)

// maxBodyBytes caps request bodies. Interaction payloads are small; a
// larger body is a misbehaving client.
const maxBodyBytes = 64 << 10

// parsePage extracts and normalizes the pagination window. Non-numeric
// values are validation errors rather than silently defaulted, so a typo
// in a client integration surfaces immediately.
func parsePage(r *http.Request) (recommend.Page, error) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return recommend.Page{}, err
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		return recommend.Page{}, err
	}
	sort, err := recommend.ParseSortBy(q.Get("sortBy"))
	if err != nil {
		return recommend.Page{}, err
	}

	return recommend.Page{Limit: limit, Offset: offset, Sort: sort}.Normalize(), nil
}

// intParam parses one non-negative integer query parameter. Empty means
// zero, which Normalize later replaces with the default.
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Newf(apperr.KindValidation, "%s must be an integer", name).
			WithDetail(name, raw)
	}
	if v < 0 {
		return 0, apperr.Newf(apperr.KindValidation, "%s must not be negative", name).
			WithDetail(name, raw)
	}
	return v, nil
}

// parseTimeframe reads the trending window override in days. Zero means
// the configured default; the generator clamps out-of-range values.
func parseTimeframe(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeframe")
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return 0, apperr.Newf(apperr.KindValidation, "timeframe must be a positive number of days").
			WithDetail("timeframe", raw)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// parseTags splits the tags CSV parameter, trimming blanks and dropping
// empties. Returns nil when the parameter is absent.
func parseTags(r *http.Request) []string {
	raw := r.URL.Query().Get("tags")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// decodeBody reads one JSON body into dst. Unknown fields are tolerated;
// malformed JSON and oversize bodies are validation errors.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(err, apperr.KindValidation, "request body is not valid JSON")
	}
	return nil
}
