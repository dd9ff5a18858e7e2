// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/auth"
	"github.com/huntboard/huntboard/internal/ingress"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/profile"
)

// Interaction records one client interaction. Anonymous callers are
// accepted as long as a client fingerprint resolved; requests with no
// identity at all are refused.
func (h *Handlers) Interaction(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if !id.Resolved() {
		respondError(w, r, apperr.Unauthorized("an identity is required: authenticate or supply a client id"))
		return
	}

	var evt ingress.Event
	if err := decodeBody(w, r, &evt); err != nil {
		respondError(w, r, err)
		return
	}

	receipt, err := h.recorder.Record(r.Context(), &ingress.Envelope{
		Event:    evt,
		UserID:   id.UserID,
		ClientID: id.ClientID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, receipt)
}

// FeedbackRequest is the explicit feedback payload. Exactly one of
// positive/negative must be set.
type FeedbackRequest struct {
	ProductID string `json:"productId"`
	Positive  bool   `json:"positive"`
	Negative  bool   `json:"negative"`
	Reason    string `json:"reason,omitempty"`
}

// Feedback maps explicit feedback onto the interaction log: positive
// becomes a conversion, negative a dismiss (which also feeds the
// exclude-set). The reason rides along in metadata.
func (h *Handlers) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.ProductID == "" {
		respondError(w, r, apperr.Validation("productId is required"))
		return
	}
	if req.Positive == req.Negative {
		respondError(w, r, apperr.Validation("exactly one of positive or negative must be set"))
		return
	}

	kind := interaction.KindConversion
	if req.Negative {
		kind = interaction.KindDismiss
	}
	md := interaction.Metadata{Source: "feedback"}
	if req.Reason != "" {
		md.Extra = map[string]json.RawMessage{
			"reason": json.RawMessage(strconv.Quote(req.Reason)),
		}
	}

	h.recordKind(w, r, req.ProductID, kind, md)
}

// DismissRequest names the product to remove from personalized feeds.
type DismissRequest struct {
	ProductID string `json:"productId"`
}

// Dismiss records a dismiss interaction. The significant-kind event
// handler invalidates the caller's personalized cache, so the product
// disappears from the next page.
func (h *Handlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	var req DismissRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.ProductID == "" {
		respondError(w, r, apperr.Validation("productId is required"))
		return
	}
	h.recordKind(w, r, req.ProductID, interaction.KindDismiss, interaction.Metadata{Source: "dismiss"})
}

// recordKind pushes a server-shaped interaction through the same ingress
// pipeline client events use, so scoring, dedup, and side effects stay
// uniform.
func (h *Handlers) recordKind(w http.ResponseWriter, r *http.Request, productID string, kind interaction.Kind, md interaction.Metadata) {
	id := auth.IdentityFromContext(r.Context())
	receipt, err := h.recorder.Record(r.Context(), &ingress.Envelope{
		Event: ingress.Event{
			ProductID: productID,
			Kind:      string(kind),
			Strategy:  string(interaction.StrategyDirect),
			Metadata:  md,
		},
		UserID:   id.UserID,
		ClientID: id.ClientID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, receipt)
}

// PreferencesGet returns the caller's stored preferences, or defaults for
// identities with no profile yet.
func (h *Handlers) PreferencesGet(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	prefs, err := h.profiles.Preferences(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, prefs)
}

// PreferencesPut replaces the caller's preferences wholesale. Settings
// fields the body omits keep their defaults; the response echoes exactly
// what was stored.
func (h *Handlers) PreferencesPut(w http.ResponseWriter, r *http.Request) {
	prefs := profile.Preferences{Settings: profile.DefaultSettings()}
	if err := decodeBody(w, r, &prefs); err != nil {
		respondError(w, r, err)
		return
	}
	id := auth.IdentityFromContext(r.Context())
	stored, err := h.profiles.UpdatePreferences(r.Context(), id.UserID, prefs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, stored)
}
