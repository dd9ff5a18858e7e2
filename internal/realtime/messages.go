// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package realtime

import "time"

// Message types exchanged over a live connection. Clients send subscribe,
// unsubscribe, and ping; the server sends the rest.
const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeSubscribed  = "subscribed"
	MessageTypeInteraction = "interaction"
	MessageTypeProduct     = "product"
	MessageTypeTrending    = "trending"
)

// Message is the frame exchanged over a live connection. ProductIDs is
// only meaningful on inbound subscribe/unsubscribe frames; Data carries
// the typed payload on outbound frames.
type Message struct {
	Type       string      `json:"type"`
	ProductIDs []string    `json:"productIds,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// InteractionUpdate is pushed to subscribers of the product that took an
// interaction. Velocity and UniqueVisitors cover the rolling window, not
// all time.
type InteractionUpdate struct {
	ProductID      string    `json:"productId"`
	Kind           string    `json:"kind"`
	Quality        float64   `json:"quality"`
	RecordedAt     time.Time `json:"recordedAt"`
	Velocity       int64     `json:"velocity"`
	UniqueVisitors int       `json:"uniqueVisitors"`
}

// ProductUpdate is pushed to subscribers when the catalog changes a
// product they watch.
type ProductUpdate struct {
	ProductID string    `json:"productId"`
	Change    string    `json:"change"`
	ChangedAt time.Time `json:"changedAt"`
}

// ProductVelocity is one product's rolling engagement numbers. Sent as
// the subscribe acknowledgment (one entry per newly subscribed product)
// and as the periodic trending leaderboard.
type ProductVelocity struct {
	ProductID      string `json:"productId"`
	Velocity       int64  `json:"velocity"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}
