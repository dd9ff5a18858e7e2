// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/metrics"
)

// Bus is the shared publish/subscribe fabric. The default transport is an
// in-process Watermill gochannel; NewNATSBus (nats build tag) returns the
// same type over JetStream.
//
// A message published before the router subscribes is dropped, so the
// supervisor starts the router ahead of the HTTP listener.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// NewBus creates the in-process bus.
func NewBus(cfg config.EventsConfig) *Bus {
	logger := NewLoggerAdapter()
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.Buffer),
	}, logger)

	return newBus(ch, ch, logger, ch.Close)
}

func newBus(pub message.Publisher, sub message.Subscriber, logger watermill.LoggerAdapter, closers ...func() error) *Bus {
	return &Bus{
		pub:     pub,
		sub:     sub,
		logger:  logger,
		closers: closers,
	}
}

// Publisher exposes the raw publisher, used by the router's poison queue
// and the dead-letter requeue path.
func (b *Bus) Publisher() message.Publisher {
	return b.pub
}

// Subscriber exposes the raw subscriber for router handler registration.
func (b *Bus) Subscriber() message.Subscriber {
	return b.sub
}

// Publish sends one message. The message UUID doubles as the dedup key,
// so callers must not reuse UUIDs across distinct events.
//
// The request ID, when present in ctx, becomes the correlation ID so a
// handler's log lines tie back to the originating HTTP request.
func (b *Bus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.Unlock()

	if id := logging.RequestIDFromContext(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	} else {
		middleware.SetCorrelationID(msg.UUID, msg)
	}

	if err := b.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.RecordEventPublished(topic)
	return nil
}

// PublishInteraction emits interactions.recorded.
func (b *Bus) PublishInteraction(ctx context.Context, evt *InteractionRecorded) error {
	return b.publishEvent(ctx, TopicInteractions, evt.EventID, evt)
}

// PublishProductUpdated emits catalog.product.updated.
func (b *Bus) PublishProductUpdated(ctx context.Context, evt *ProductUpdated) error {
	return b.publishEvent(ctx, TopicCatalog, evt.EventID, evt)
}

// PublishProfileUpdated emits profiles.updated.
func (b *Bus) PublishProfileUpdated(ctx context.Context, evt *ProfileUpdated) error {
	return b.publishEvent(ctx, TopicProfiles, evt.EventID, evt)
}

// PublishImpressions emits recs.impressions.
func (b *Bus) PublishImpressions(ctx context.Context, evt *ImpressionsServed) error {
	return b.publishEvent(ctx, TopicImpressions, evt.EventID, evt)
}

func (b *Bus) publishEvent(ctx context.Context, topic, eventID string, payload interface{ Validate() error }) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}
	return b.Publish(ctx, topic, message.NewMessage(eventID, data))
}

// Close shuts the transport down. Subsequent publishes fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// busLogger adapts the shared zerolog logger to Watermill.
type busLogger struct {
	log zerolog.Logger
}

// NewLoggerAdapter returns a Watermill logger backed by the process-wide
// zerolog logger, tagged with the events component.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &busLogger{log: logging.WithComponent("events")}
}

func (l *busLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.emit(l.log.Error().Err(err), msg, fields)
}

func (l *busLogger) Info(msg string, fields watermill.LogFields) {
	l.emit(l.log.Info(), msg, fields)
}

func (l *busLogger) Debug(msg string, fields watermill.LogFields) {
	l.emit(l.log.Debug(), msg, fields)
}

func (l *busLogger) Trace(msg string, fields watermill.LogFields) {
	l.emit(l.log.Trace(), msg, fields)
}

func (l *busLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	lctx := l.log.With()
	for k, v := range fields {
		lctx = lctx.Interface(k, v)
	}
	return &busLogger{log: lctx.Logger()}
}

func (l *busLogger) emit(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
