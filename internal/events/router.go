// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/huntboard/huntboard/internal/cache"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/logging"
)

// Router consumes the bus and fans events out through the registered
// handlers. It runs as one service under the supervisor.
type Router struct {
	router *message.Router
	log    zerolog.Logger
	dedup  *cache.ExactLRU
}

// dedupRepository adapts the exact-match LRU to the expiring-key store
// the dedup middleware expects.
type dedupRepository struct {
	lru *cache.ExactLRU
}

func (r dedupRepository) IsDuplicate(_ context.Context, key string) (bool, error) {
	return r.lru.IsDuplicate(key), nil
}

// NewRouter wires the middleware chain and registers the domain handlers.
//
// Middleware order, outermost first: correlation, dedup, poison, retry,
// recoverer. Retry sits inside the poison guard so a failing message gets
// its backoff retries before it is surrendered to the dead-letter topic,
// and the recoverer sits innermost so a panicking payload burns its
// retries and lands in the dead-letter buffer instead of redelivery
// looping on the in-process bus.
//
// Dedup keys on the message UUID. Event IDs are stamped once at
// construction and never regenerated, so a repeated UUID can only be a
// redelivery. The dead-letter consumer bypasses the router entirely and
// is unaffected.
func NewRouter(cfg config.EventsConfig, bus *Bus, h *Handlers) (*Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, bus.logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	r := &Router{
		router: wmRouter,
		log:    logging.WithComponent("events"),
		dedup:  cache.NewExactLRU(cfg.DedupEntries, cfg.DedupTTL),
	}

	wmRouter.AddMiddleware(middleware.CorrelationID)

	dedup := middleware.Deduplicator{
		KeyFactory: func(msg *message.Message) (string, error) {
			return msg.UUID, nil
		},
		Repository: dedupRepository{lru: r.dedup},
	}
	wmRouter.AddMiddleware(dedup.Middleware)

	poison, err := middleware.PoisonQueue(bus.Publisher(), TopicDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("create poison queue: %w", err)
	}
	wmRouter.AddMiddleware(poison)

	retry := middleware.Retry{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.RetryInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2.0,
		Logger:          bus.logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	wmRouter.AddMiddleware(middleware.Recoverer)

	sub := bus.Subscriber()
	wmRouter.AddConsumerHandler(handlerInteractions, TopicInteractions, sub, h.HandleInteraction)
	wmRouter.AddConsumerHandler(handlerCatalog, TopicCatalog, sub, h.HandleProductUpdated)
	wmRouter.AddConsumerHandler(handlerProfiles, TopicProfiles, sub, h.HandleProfileUpdated)
	wmRouter.AddConsumerHandler(handlerImpressions, TopicImpressions, sub, h.HandleImpressions)

	return r, nil
}

// Serve runs the router until ctx is canceled.
func (r *Router) Serve(ctx context.Context) error {
	r.log.Info().Msg("event router starting")
	if err := r.router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

// Running returns a channel that closes once all handlers are consuming.
// Callers that publish at startup wait on it to avoid dropping events.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to the configured close timeout for
// in-flight handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

// DedupStats returns (checks, duplicates, size) of the dedup store.
func (r *Router) DedupStats() (checks, duplicates int64, size int) {
	return r.dedup.Stats()
}

// String implements fmt.Stringer for supervisor logging.
func (r *Router) String() string {
	return "event-router"
}
