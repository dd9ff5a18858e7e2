// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package events

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/cache"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/metrics"
)

// sweepInterval is how often expired dead-letter entries are dropped.
const sweepInterval = time.Minute

// DeadEntry is one message the router surrendered.
type DeadEntry struct {
	MessageID string    `json:"messageId"`
	Topic     string    `json:"topic"`
	Handler   string    `json:"handler"`
	Reason    string    `json:"reason"`
	Payload   []byte    `json:"payload"`
	FailedAt  time.Time `json:"failedAt"`
}

// DeadLetter buffers poisoned messages for inspection and manual
// redelivery. Entries sit in a timestamp-ordered heap: the oldest entry
// is evicted when the buffer is full, and a periodic sweep drops entries
// past retention.
//
// It subscribes to the dead-letter topic directly rather than through
// the router, so no middleware applies: a captured message is never
// dedup-dropped, retried, or re-poisoned.
type DeadLetter struct {
	log       zerolog.Logger
	pub       message.Publisher
	sub       message.Subscriber
	entries   *cache.MinHeap[*DeadEntry]
	retention time.Duration

	running     chan struct{}
	runningOnce sync.Once

	added    atomic.Int64
	evicted  atomic.Int64
	requeued atomic.Int64
}

// NewDeadLetter creates the buffer. Serve consumes the dead-letter topic
// from the bus.
func NewDeadLetter(cfg config.EventsConfig, bus *Bus) *DeadLetter {
	return &DeadLetter{
		log:       logging.WithComponent("events"),
		pub:       bus.Publisher(),
		sub:       bus.Subscriber(),
		entries:   cache.NewMinHeap[*DeadEntry](cfg.DeadLetterMax),
		retention: cfg.DeadLetterRetention,
		running:   make(chan struct{}),
	}
}

// Serve consumes the dead-letter topic until ctx is canceled.
func (d *DeadLetter) Serve(ctx context.Context) error {
	msgs, err := d.sub.Subscribe(ctx, TopicDeadLetter)
	if err != nil {
		return fmt.Errorf("subscribe dead letter: %w", err)
	}
	d.runningOnce.Do(func() { close(d.running) })

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			d.capture(msg)
			msg.Ack()
		case <-ticker.C:
			if n := d.sweep(time.Now()); n > 0 {
				d.log.Debug().Int("expired", n).Msg("dead letter entries expired")
			}
		}
	}
}

func (d *DeadLetter) capture(msg *message.Message) {
	entry := &DeadEntry{
		MessageID: msg.UUID,
		Topic:     msg.Metadata.Get(middleware.PoisonedTopicKey),
		Handler:   msg.Metadata.Get(middleware.PoisonedHandlerKey),
		Reason:    msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		Payload:   bytes.Clone(msg.Payload),
		FailedAt:  time.Now(),
	}

	if evicted := d.entries.Push(entry.MessageID, entry, entry.FailedAt); evicted != nil {
		d.evicted.Add(1)
	}
	d.added.Add(1)
	metrics.RecordEventDeadLettered(entry.Topic)

	d.log.Warn().
		Str("messageId", entry.MessageID).
		Str("topic", entry.Topic).
		Str("handler", entry.Handler).
		Str("reason", entry.Reason).
		Msg("message dead-lettered")
}

// sweep drops entries older than retention and returns how many.
func (d *DeadLetter) sweep(now time.Time) int {
	expired := d.entries.PopBefore(now.Add(-d.retention))
	d.evicted.Add(int64(len(expired)))
	return len(expired)
}

// Running returns a channel that closes once the buffer is consuming the
// dead-letter topic. A poisoned message published before that is dropped
// by the in-process bus.
func (d *DeadLetter) Running() <-chan struct{} {
	return d.running
}

// Entries returns a snapshot of buffered entries, oldest first.
func (d *DeadLetter) Entries() []*DeadEntry {
	all := d.entries.All()
	out := make([]*DeadEntry, 0, len(all))
	for _, e := range all {
		out = append(out, e.Value)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FailedAt.Before(out[j].FailedAt)
	})
	return out
}

// Len returns the number of buffered entries.
func (d *DeadLetter) Len() int {
	return d.entries.Len()
}

// Requeue republishes a buffered message to its origin topic under a
// fresh message ID and removes it from the buffer. The fresh ID carries
// it past the router's dedup.
func (d *DeadLetter) Requeue(messageID string) error {
	entry := d.entries.Get(messageID)
	if entry == nil {
		return apperr.Newf(apperr.KindNotFound, "dead letter entry %s not found", messageID)
	}
	dead := entry.Value
	if dead.Topic == "" {
		return apperr.Newf(apperr.KindValidation, "dead letter entry %s has no origin topic", messageID)
	}
	d.entries.Remove(messageID)

	msg := message.NewMessage(watermill.NewUUID(), dead.Payload)
	msg.Metadata.Set(metaRequeuedFrom, dead.MessageID)

	if err := d.pub.Publish(dead.Topic, msg); err != nil {
		// Keep the entry rather than lose the message.
		d.entries.Push(dead.MessageID, dead, dead.FailedAt)
		return fmt.Errorf("requeue %s: %w", messageID, err)
	}

	d.requeued.Add(1)
	metrics.RecordEventPublished(dead.Topic)
	d.log.Info().
		Str("messageId", dead.MessageID).
		Str("topic", dead.Topic).
		Msg("dead letter entry requeued")
	return nil
}

// Stats returns lifetime counters and the current size.
func (d *DeadLetter) Stats() (added, evicted, requeued int64, size int) {
	return d.added.Load(), d.evicted.Load(), d.requeued.Load(), d.entries.Len()
}

// String implements fmt.Stringer for supervisor logging.
func (d *DeadLetter) String() string {
	return "dead-letter-buffer"
}
