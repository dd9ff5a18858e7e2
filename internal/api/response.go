// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Envelope is the response wrapper shared by every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`

	// Pagination is present on list responses only.
	Pagination *Pagination `json:"pagination,omitempty"`

	// Meta carries feed generation metadata.
	Meta *Meta `json:"meta,omitempty"`
}

// ErrorBody is the error half of the envelope. ErrorID also appears in
// the server log so a client report can be matched to the failure.
type ErrorBody struct {
	Kind    string      `json:"kind"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	ErrorID string      `json:"errorId"`
}

// Pagination describes the served window of a list response.
type Pagination struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Pages       int  `json:"pages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
	Limit       int  `json:"limit"`
}

// Meta carries feed generation metadata: which blend or strategy served
// the page, when, and whether any component degraded.
type Meta struct {
	Strategy           string    `json:"strategy,omitempty"`
	GeneratedAt        time.Time `json:"generatedAt,omitempty"`
	Partial            bool      `json:"partial,omitempty"`
	DegradedStrategies []string  `json:"degradedStrategies,omitempty"`
	Personalization    string    `json:"personalization,omitempty"`
}

// paginate derives the page arithmetic for a served window. Page numbers
// are 1-based; an offset that is not a limit multiple still lands on the
// page that contains it.
func paginate(total int, page recommend.Page) *Pagination {
	if page.Limit <= 0 {
		page = page.Normalize()
	}
	pages := (total + page.Limit - 1) / page.Limit
	if pages < 1 {
		pages = 1
	}
	current := page.Offset/page.Limit + 1
	return &Pagination{
		Total:       total,
		Page:        current,
		Pages:       pages,
		HasNextPage: page.Offset+page.Limit < total,
		HasPrevPage: page.Offset > 0,
		Limit:       page.Limit,
	}
}

// respondFeed writes a feed page in the list envelope.
func respondFeed(w http.ResponseWriter, r *http.Request, feed *recommend.Feed, page recommend.Page) {
	writeJSON(w, r, http.StatusOK, Envelope{
		Success:    true,
		Data:       feed.Items,
		Pagination: paginate(feed.Total, page),
		Meta: &Meta{
			Strategy:           feed.Strategy,
			GeneratedAt:        feed.GeneratedAt,
			Partial:            feed.Partial,
			DegradedStrategies: feed.DegradedStrategies,
			Personalization:    feed.Personalization,
		},
	})
}

// respondData writes a plain success envelope.
func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, r, status, Envelope{Success: true, Data: data})
}

// respondError classifies the error, logs it under a fresh errorId, and
// writes the error envelope. Internal causes are never echoed to the
// client; the errorId is the lookup key instead.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	errorID := uuid.New().String()

	body := &ErrorBody{
		Kind:    string(kind),
		Message: "internal error",
		ErrorID: errorID,
	}
	var ae *apperr.Error
	if errors.As(err, &ae) && kind != apperr.KindInternal {
		body.Message = ae.Message
		if len(ae.Details) > 0 {
			body.Details = ae.Details
		}
	}

	evt := logging.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		evt = logging.Ctx(r.Context()).Error()
	}
	evt.Err(err).
		Str("error_id", errorID).
		Str("kind", string(kind)).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("request failed")

	writeJSON(w, r, status, Envelope{Success: false, Error: body})
}

// writeJSON encodes the envelope. An encode failure after the header is
// written cannot be reported to the client, only logged.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
