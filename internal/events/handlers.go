// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/metrics"
)

// Handler names, used for registration, logging, and metrics labels.
const (
	handlerInteractions = "interaction-fanout"
	handlerCatalog      = "catalog-invalidation"
	handlerProfiles     = "profile-invalidation"
	handlerImpressions  = "impression-persistence"
)

// FeedCache invalidates cached feed pages. Implemented by cache.Cache.
type FeedCache interface {
	// InvalidateProduct drops every cached page containing the product
	// and returns the number of dropped keys.
	InvalidateProduct(productID string) int

	// InvalidateIdentity drops every personalized page cached for the
	// identity and returns the number of dropped keys.
	InvalidateIdentity(identity string) int
}

// ProfileMarker queues identities for profile rebuilds. Implemented by
// profile.Service.
type ProfileMarker interface {
	MarkStale(identity string)
}

// Notifier pushes live updates to connected clients. Implemented by the
// realtime hub.
type Notifier interface {
	NotifyInteraction(evt *InteractionRecorded)
	NotifyProduct(evt *ProductUpdated)
}

// ImpressionSink records served feed slots as impression interactions.
// Implemented by the ingress pipeline's system entry point.
type ImpressionSink interface {
	RecordServed(ctx context.Context, evt *ImpressionsServed) error
}

// Handlers fans bus events out to the subsystems that keep derived state
// fresh. Every dependency is optional; a nil one skips its leg, so tests
// and stripped-down deployments wire only what they need.
type Handlers struct {
	log      zerolog.Logger
	cache    FeedCache
	profiles ProfileMarker
	notifier Notifier
	sink     ImpressionSink
}

// NewHandlers bundles the consumer-side dependencies of the router.
func NewHandlers(cache FeedCache, profiles ProfileMarker, notifier Notifier, sink ImpressionSink) *Handlers {
	return &Handlers{
		log:      logging.WithComponent("events"),
		cache:    cache,
		profiles: profiles,
		notifier: notifier,
		sink:     sink,
	}
}

// HandleInteraction applies one recorded interaction: significant kinds
// mark the identity's profile stale and drop its cached personalized
// pages, and every kind reaches the live notifier.
func (h *Handlers) HandleInteraction(msg *message.Message) error {
	start := time.Now()

	evt, err := DecodeInteraction(msg.Payload)
	if err != nil {
		metrics.RecordEventHandled(handlerInteractions, time.Since(start), err)
		return fmt.Errorf("interaction %s: %w", msg.UUID, err)
	}

	if evt.Significant() {
		if h.profiles != nil {
			h.profiles.MarkStale(evt.Identity)
		}
		if h.cache != nil {
			dropped := h.cache.InvalidateIdentity(evt.Identity)
			metrics.RecordCacheInvalidation("interaction", dropped)
			h.log.Debug().
				Str("identity", evt.Identity).
				Str("kind", evt.Kind).
				Int("dropped", dropped).
				Msg("significant interaction fanned out")
		}
	}

	if h.notifier != nil {
		h.notifier.NotifyInteraction(evt)
	}

	metrics.RecordEventHandled(handlerInteractions, time.Since(start), nil)
	return nil
}

// HandleProductUpdated drops every cached page that could contain the
// changed product and notifies live subscribers.
func (h *Handlers) HandleProductUpdated(msg *message.Message) error {
	start := time.Now()

	evt, err := DecodeProductUpdated(msg.Payload)
	if err != nil {
		metrics.RecordEventHandled(handlerCatalog, time.Since(start), err)
		return fmt.Errorf("product %s: %w", msg.UUID, err)
	}

	if h.cache != nil {
		dropped := h.cache.InvalidateProduct(evt.ProductID)
		metrics.RecordCacheInvalidation("catalog", dropped)
		h.log.Debug().
			Str("productId", evt.ProductID).
			Str("change", evt.Change).
			Int("dropped", dropped).
			Msg("catalog change fanned out")
	}

	if h.notifier != nil {
		h.notifier.NotifyProduct(evt)
	}

	metrics.RecordEventHandled(handlerCatalog, time.Since(start), nil)
	return nil
}

// HandleProfileUpdated drops the identity's cached personalized pages.
// A rebuilt profile would otherwise serve from a feed ranked by the old
// affinities until TTL expiry.
func (h *Handlers) HandleProfileUpdated(msg *message.Message) error {
	start := time.Now()

	evt, err := DecodeProfileUpdated(msg.Payload)
	if err != nil {
		metrics.RecordEventHandled(handlerProfiles, time.Since(start), err)
		return fmt.Errorf("profile %s: %w", msg.UUID, err)
	}

	if h.cache != nil {
		dropped := h.cache.InvalidateIdentity(evt.Identity)
		metrics.RecordCacheInvalidation("profile", dropped)
	}

	metrics.RecordEventHandled(handlerProfiles, time.Since(start), nil)
	return nil
}

// HandleImpressions persists the served slots of a delivered feed page.
// Sink failures are returned so the router retries them; the sink itself
// suppresses duplicates.
func (h *Handlers) HandleImpressions(msg *message.Message) error {
	start := time.Now()

	evt, err := DecodeImpressions(msg.Payload)
	if err != nil {
		metrics.RecordEventHandled(handlerImpressions, time.Since(start), err)
		return fmt.Errorf("impressions %s: %w", msg.UUID, err)
	}

	if h.sink != nil {
		if err := h.sink.RecordServed(msg.Context(), evt); err != nil {
			metrics.RecordEventHandled(handlerImpressions, time.Since(start), err)
			return fmt.Errorf("impressions %s: %w", msg.UUID, err)
		}
	}

	metrics.RecordEventHandled(handlerImpressions, time.Since(start), nil)
	return nil
}
