// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package realtime implements the live product-subscription hub behind
// GET /recs/live.
//
// Clients upgrade to a WebSocket and subscribe to product ids. The hub
// pushes three kinds of updates:
//
//   - interaction: an interaction landed on a subscribed product, with
//     the product's rolling engagement velocity and distinct-visitor
//     count attached;
//   - product: a catalog change (unpublish, archive, relaunch) touched
//     a subscribed product;
//   - trending: a periodic velocity leaderboard sent to every client.
//
// Updates arrive from the event bus: the hub implements events.Notifier
// and is registered as a handler dependency, so it never polls a store.
// Velocity numbers come from in-process sliding-window counters fed by
// the same event stream.
//
// The subscription registry refcounts product ids across clients so the
// hub can skip fan-out work for products nobody watches. It is injected
// at construction and owned by the hub; nothing else mutates it.
package realtime
