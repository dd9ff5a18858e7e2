// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package events carries domain changes between Huntboard subsystems.
//
// Every write path publishes a typed event and the router fans it out to
// the subscribers that keep derived state fresh: feed-cache invalidation,
// profile staleness marking, impression persistence, and realtime
// notification. The bus is in-process by default (Watermill gochannel);
// building with the nats tag swaps the transport for JetStream without
// touching publishers or handlers.
//
// Message UUIDs are the event IDs stamped at construction and never
// regenerated, so the router deduplicates on them safely and JetStream
// can use them as Nats-Msg-Id.
package events
