// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package ingress accepts user interactions and turns them into durable,
// scored records. One event per call flows through a fixed sequence of
// typed stages: validate, identify, throttle, deduplicate, persist,
// publish. A stage either passes the envelope on or refuses it with a
// classified error; nothing is stored unless every stage before persist
// agreed.
//
// Impressions get special treatment. They arrive in bulk, both from
// clients and from the feed's own write-back, so repeats of the same
// (identity, product, kind, slot) inside the dedup window are refused
// with a Conflict. The window is enforced by BadgerDB TTL entries with an
// in-process exact-match cache in front.
//
// The append is the commit point: once persist succeeds the receipt is
// owed to the caller, and a failed event publish only delays derived
// state, never the response.
package ingress
