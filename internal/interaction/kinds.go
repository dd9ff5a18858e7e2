// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package interaction defines the interaction domain model: the kinds of
// user→product actions, the strategies that produced them, the metadata
// attached to each event, and the pure engagement scorer.
package interaction

import "time"

// Kind is the type of a user action on a product.
type Kind string

const (
	KindImpression     Kind = "impression"
	KindView           Kind = "view"
	KindClick          Kind = "click"
	KindUpvote         Kind = "upvote"
	KindRemoveUpvote   Kind = "remove_upvote"
	KindBookmark       Kind = "bookmark"
	KindRemoveBookmark Kind = "remove_bookmark"
	KindComment        Kind = "comment"
	KindShare          Kind = "share"
	KindDismiss        Kind = "dismiss"
	KindConversion     Kind = "conversion"
)

// RetentionWindow is the trailing window after which interaction records are
// purged. Aggregations never reach past it.
const RetentionWindow = 90 * 24 * time.Hour

// validKinds is the closed set accepted from clients.
var validKinds = map[Kind]struct{}{
	KindImpression:     {},
	KindView:           {},
	KindClick:          {},
	KindUpvote:         {},
	KindRemoveUpvote:   {},
	KindBookmark:       {},
	KindRemoveBookmark: {},
	KindComment:        {},
	KindShare:          {},
	KindDismiss:        {},
	KindConversion:     {},
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	_, ok := validKinds[k]
	return ok
}

// Significant reports whether this kind must invalidate the user's
// personalized cache immediately.
func (k Kind) Significant() bool {
	switch k {
	case KindUpvote, KindBookmark, KindDismiss:
		return true
	default:
		return false
	}
}

// Kinds returns all valid kinds. The slice is a copy.
func Kinds() []Kind {
	out := make([]Kind, 0, len(validKinds))
	for k := range validKinds {
		out = append(out, k)
	}
	return out
}

// Record is one stored interaction. Records are immutable after append.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	ClientID  string    `json:"clientId,omitempty"`
	ProductID string    `json:"productId"`
	Kind      Kind      `json:"kind"`
	Strategy  Strategy  `json:"strategy"`
	Position  *int      `json:"position,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	Quality   float64   `json:"quality"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity returns the acting identity: the user ID when present, otherwise
// the anonymous client fingerprint.
func (r *Record) Identity() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.ClientID
}

// Anonymous reports whether the record carries no authenticated user.
func (r *Record) Anonymous() bool {
	return r.UserID == ""
}
