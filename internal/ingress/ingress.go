// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package ingress

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/events"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/metrics"
	"github.com/huntboard/huntboard/internal/validation"
)

// Event is one client-submitted interaction, before identity is attached.
type Event struct {
	ProductID string               `json:"productId" validate:"required"`
	Kind      string               `json:"kind" validate:"required"`
	Strategy  string               `json:"strategy,omitempty"`
	Position  *int                 `json:"position,omitempty" validate:"omitempty,min=0"`
	Timestamp string               `json:"timestamp,omitempty" validate:"omitempty,rfc3339"`
	Metadata  interaction.Metadata `json:"metadata,omitempty"`
}

// Envelope carries one interaction through the pipeline. The transport
// layer fills Event and the acting identity; stages fill the rest.
type Envelope struct {
	Event    Event
	UserID   string
	ClientID string

	// System marks server-originated events, currently the feed's
	// impression write-back. They bypass the per-identity budget but
	// not validation, dedup, or scoring.
	System bool

	kind     interaction.Kind
	strategy interaction.Strategy
	occurred time.Time
	dedupKey string
	record   *interaction.Record
}

// identity returns the acting identity: user ID when present, otherwise
// the anonymous client fingerprint.
func (e *Envelope) identity() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.ClientID
}

// Receipt acknowledges a durably stored interaction.
type Receipt struct {
	ID         string    `json:"id"`
	Quality    float64   `json:"quality"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Log is the durable interaction store the pipeline appends to.
type Log interface {
	AppendInteraction(ctx context.Context, rec *interaction.Record) error
}

// Publisher emits the recorded event for asynchronous side effects.
type Publisher interface {
	PublishInteraction(ctx context.Context, evt *events.InteractionRecorded) error
}

// stage is one pipeline step. A stage either advances the envelope or
// refuses it with a classified error.
type stage func(ctx context.Context, env *Envelope) error

// Service is the interaction ingress pipeline. It is safe for concurrent
// use and runs its own housekeeping under the supervision tree.
type Service struct {
	log     zerolog.Logger
	store   Log
	bus     Publisher
	limiter *identityLimiter
	dedup   *DedupIndex
	stages  []stage

	appended atomic.Int64
	rejected atomic.Int64
}

var _ events.ImpressionSink = (*Service)(nil)

// NewService builds the pipeline. The Badger instance is shared with the
// profile store; bus may be nil, which disables the publish stage.
func NewService(cfg config.IngressConfig, store Log, bus Publisher, kv *badger.DB) *Service {
	s := &Service{
		log:     logging.WithComponent("ingress"),
		store:   store,
		bus:     bus,
		limiter: newIdentityLimiter(cfg.RatePerMinute),
		dedup:   NewDedupIndex(kv, cfg.DedupWindow),
	}
	s.stages = []stage{
		s.validate,
		s.identify,
		s.throttle,
		s.deduplicate,
		s.persist,
		s.publish,
	}
	return s
}

// Record runs one interaction through the pipeline and returns its
// receipt. The append is durable before Record returns; refused events
// carry a classified error and leave no trace in the log.
func (s *Service) Record(ctx context.Context, env *Envelope) (*Receipt, error) {
	start := time.Now()

	for _, run := range s.stages {
		if err := run(ctx, env); err != nil {
			s.rejected.Add(1)
			metrics.RecordRejection(rejectionReason(err))
			return nil, err
		}
	}

	metrics.IngressPipelineDuration.Observe(time.Since(start).Seconds())
	s.appended.Add(1)
	return &Receipt{
		ID:         env.record.ID,
		Quality:    env.record.Quality,
		RecordedAt: env.record.CreatedAt,
	}, nil
}

func (s *Service) validate(ctx context.Context, env *Envelope) error {
	if verr := validation.ValidateStruct(&env.Event); verr != nil {
		return verr.ToAppError()
	}

	kind := interaction.Kind(env.Event.Kind)
	if !kind.Valid() {
		return apperr.Newf(apperr.KindValidation, "unknown interaction kind %q", env.Event.Kind).
			WithDetail("kind", env.Event.Kind)
	}
	env.kind = kind
	env.strategy = interaction.CoerceStrategy(env.Event.Strategy)

	if env.Event.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, env.Event.Timestamp)
		if err != nil {
			return apperr.Validation("timestamp must be RFC3339").
				WithDetail("timestamp", env.Event.Timestamp)
		}
		env.occurred = t.UTC()
	}
	return nil
}

func (s *Service) identify(ctx context.Context, env *Envelope) error {
	if env.identity() == "" {
		return apperr.Validation("userId or clientId is required")
	}
	return nil
}

func (s *Service) throttle(ctx context.Context, env *Envelope) error {
	if env.System {
		return nil
	}
	if !s.limiter.Allow(env.identity()) {
		return apperr.RateLimited("interaction budget exceeded, retry shortly")
	}
	return nil
}

func (s *Service) deduplicate(ctx context.Context, env *Envelope) error {
	if env.kind != interaction.KindImpression {
		return nil
	}

	key := impressionKey(env.identity(), env.Event.ProductID, env.kind, env.Event.Position)
	duplicate, err := s.dedup.CheckAndMark(ctx, key)
	if err != nil {
		return fmt.Errorf("impression dedup: %w", err)
	}
	if duplicate {
		return apperr.Conflict("impression already recorded for this slot").
			WithDetail("productId", env.Event.ProductID)
	}
	env.dedupKey = key
	return nil
}

func (s *Service) persist(ctx context.Context, env *Envelope) error {
	rec := &interaction.Record{
		UserID:    env.UserID,
		ClientID:  env.ClientID,
		ProductID: env.Event.ProductID,
		Kind:      env.kind,
		Strategy:  env.strategy,
		Position:  env.Event.Position,
		Metadata:  env.Event.Metadata,
		Quality:   interaction.Score(env.kind, env.Event.Metadata),
		CreatedAt: env.occurred,
	}

	if err := s.store.AppendInteraction(ctx, rec); err != nil {
		if env.dedupKey != "" {
			if ferr := s.dedup.Forget(env.dedupKey); ferr != nil {
				s.log.Warn().Err(ferr).Msg("failed to release dedup claim")
			}
		}
		return err
	}

	env.record = rec
	metrics.RecordInteraction(string(rec.Kind), string(rec.Strategy), rec.Quality)
	return nil
}

func (s *Service) publish(ctx context.Context, env *Envelope) error {
	if s.bus == nil {
		return nil
	}
	if err := s.bus.PublishInteraction(ctx, events.NewInteractionRecorded(env.record)); err != nil {
		// The append is already durable. Losing the event only delays
		// derived-state refresh until the next TTL expiry.
		s.log.Warn().Err(err).
			Str("interaction_id", env.record.ID).
			Msg("failed to publish interaction event")
	}
	return nil
}

// RecordServed writes one impression per delivered feed slot back through
// the pipeline. Server-originated, so the per-identity budget does not
// apply; dedup and the durable append do. Permanent refusals (duplicate
// slot, invalid item) are skipped; the first transient failure aborts so
// the event is retried.
func (s *Service) RecordServed(ctx context.Context, evt *events.ImpressionsServed) error {
	if evt == nil || len(evt.Items) == 0 {
		return nil
	}

	servedAt := ""
	if !evt.ServedAt.IsZero() {
		servedAt = evt.ServedAt.UTC().Format(time.RFC3339Nano)
	}

	var recorded, skipped int
	for _, item := range evt.Items {
		position := item.Position
		env := &Envelope{
			Event: Event{
				ProductID: item.ProductID,
				Kind:      string(interaction.KindImpression),
				Strategy:  evt.Strategy,
				Position:  &position,
				Timestamp: servedAt,
			},
			UserID:   evt.UserID,
			ClientID: evt.ClientID,
			System:   true,
		}

		_, err := s.Record(ctx, env)
		switch {
		case err == nil:
			recorded++
		case apperr.IsKind(err, apperr.KindConflict), apperr.IsKind(err, apperr.KindValidation):
			skipped++
		default:
			return fmt.Errorf("impression write-back: %w", err)
		}
	}

	s.log.Debug().
		Int("recorded", recorded).
		Int("skipped", skipped).
		Str("strategy", evt.Strategy).
		Msg("served impressions written back")
	return nil
}

// janitorInterval paces the housekeeping loop.
const janitorInterval = time.Minute

// Serve runs housekeeping: idle rate-limit buckets and expired fast-path
// dedup entries are swept once a minute. Implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			buckets := s.limiter.sweep(time.Now().Add(-bucketIdleAfter))
			expired := s.dedup.CleanupRecent()
			if expired > 0 {
				s.log.Debug().
					Int("tracked_identities", buckets).
					Int("expired_keys", expired).
					Msg("ingress janitor pass")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Service) String() string {
	return "interaction-ingress"
}

// Stats reports pipeline counters for health reporting.
func (s *Service) Stats() (appended, rejected int64, identities, dedupKeys int) {
	_, _, size := s.dedup.Stats()
	return s.appended.Load(), s.rejected.Load(), s.limiter.size(), size
}

// impressionKey builds the dedup key for one served slot. The unit
// separator keeps adversarial IDs from colliding across fields.
func impressionKey(identity, productID string, kind interaction.Kind, position *int) string {
	slot := "-"
	if position != nil {
		slot = strconv.Itoa(*position)
	}
	return identity + "\x1f" + productID + "\x1f" + string(kind) + "\x1f" + slot
}

// rejectionReason buckets a refusal for the rejection counter.
func rejectionReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "validation"
	case apperr.KindRateLimited:
		return "rate_limited"
	case apperr.KindConflict:
		return "duplicate"
	default:
		return "internal"
	}
}
