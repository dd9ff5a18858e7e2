// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package profile

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/metrics"
)

// rebuildTimeout caps a rebuild once it is running, foreground or
// background. The serve path stops waiting at the build budget; the build
// itself keeps going and persists its result.
const rebuildTimeout = 10 * time.Second

// maxStaleMarks bounds the stale set. Dropping a mark is safe: the
// freshness window forces a rebuild on the next read regardless.
const maxStaleMarks = 10000

// Service is the profile façade the engine and the API consume. Reads
// serve fresh profiles directly; stale ones trigger a rebuild that at most
// one goroutine per identity performs, with everyone else either joining
// the result or, past the build budget, taking the stale profile while the
// rebuild finishes in the background.
type Service struct {
	store   *Store
	builder *Builder

	freshFor    time.Duration
	buildBudget time.Duration

	group singleflight.Group

	mu    sync.Mutex
	stale map[string]struct{}
}

// NewService wires the service. Non-positive durations fall back to the
// documented defaults (15m freshness, 250ms budget).
func NewService(store *Store, builder *Builder, freshFor, buildBudget time.Duration) *Service {
	if freshFor <= 0 {
		freshFor = 15 * time.Minute
	}
	if buildBudget <= 0 {
		buildBudget = 250 * time.Millisecond
	}
	return &Service{
		store:       store,
		builder:     builder,
		freshFor:    freshFor,
		buildBudget: buildBudget,
		stale:       make(map[string]struct{}),
	}
}

// Profile returns the best available profile for the identity. The
// degraded result reports that a rebuild failed and a fallback (stale or
// empty) is being served; callers surface that as degraded
// personalization rather than an error.
func (s *Service) Profile(ctx context.Context, identity string) (p *Profile, degraded bool, err error) {
	if identity == "" {
		return nil, false, apperr.Validation("identity is required")
	}

	prior, err := s.store.Get(ctx, identity)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		// A sick store degrades personalization, never the query.
		logging.CtxErr(ctx, err).Str("identity", identity).Msg("profile store read failed")
		return New(identity), true, nil
	}

	now := time.Now().UTC()
	if prior != nil && prior.Fresh(now, s.freshFor) {
		return prior, false, nil
	}

	ch := s.group.DoChan(identity, func() (interface{}, error) {
		// Detached context: the rebuild outlives callers that stop waiting.
		bctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
		defer cancel()
		return s.buildAndStore(bctx, identity, prior)
	})

	budget := time.NewTimer(s.buildBudget)
	defer budget.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			logging.CtxErr(ctx, res.Err).Str("identity", identity).Msg("profile rebuild failed")
			if prior != nil {
				return prior, true, nil
			}
			return New(identity), true, nil
		}
		// The result is shared across coalesced callers; hand out a copy.
		return res.Val.(*Profile).Clone(), false, nil

	case <-budget.C:
		// Serve what we have; the in-flight rebuild persists its result
		// and the refresher retries if it fails.
		s.MarkStale(identity)
		logging.Ctx(ctx).Debug().
			Str("identity", identity).
			Dur("budget", s.buildBudget).
			Msg("profile rebuild exceeded budget, serving stale")
		if prior != nil {
			return prior, false, nil
		}
		return New(identity), false, nil

	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Refresh rebuilds the identity's profile synchronously, coalescing with
// any in-flight foreground rebuild. The background refresher uses it.
func (s *Service) Refresh(ctx context.Context, identity string) error {
	if identity == "" {
		return apperr.Validation("identity is required")
	}

	prior, err := s.store.Get(ctx, identity)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}

	_, err, _ = s.group.Do(identity, func() (interface{}, error) {
		return s.buildAndStore(ctx, identity, prior)
	})
	return err
}

// buildAndStore runs one rebuild and persists the result. Exactly one of
// these runs per identity at a time (singleflight key = identity).
func (s *Service) buildAndStore(ctx context.Context, identity string, prior *Profile) (*Profile, error) {
	start := time.Now()

	built, err := s.builder.Build(ctx, identity, prior)
	if err != nil {
		metrics.RecordProfileRebuild("error", time.Since(start), 0, 0)
		return nil, err
	}
	if err := s.store.Put(ctx, built); err != nil {
		metrics.RecordProfileRebuild("error", time.Since(start), 0, 0)
		return nil, err
	}

	s.clearStale(identity)
	metrics.RecordProfileRebuild("ok", time.Since(start), len(built.Categories), len(built.Tags))
	return built, nil
}

// MarkStale queues the identity for a background rebuild. Interaction
// events and budget-exhausted reads call it.
func (s *Service) MarkStale(identity string) {
	if identity == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stale) >= maxStaleMarks {
		if _, ok := s.stale[identity]; !ok {
			return
		}
	}
	s.stale[identity] = struct{}{}
}

// takeStale removes and returns up to n stale-marked identities.
func (s *Service) takeStale(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stale) == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for identity := range s.stale {
		if len(out) >= n {
			break
		}
		delete(s.stale, identity)
		out = append(out, identity)
	}
	return out
}

func (s *Service) clearStale(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stale, identity)
}

// StaleCount reports how many identities await a background rebuild.
func (s *Service) StaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stale)
}

// Delete removes the identity's profile and any pending refresh mark, for
// account deletion.
func (s *Service) Delete(ctx context.Context, identity string) error {
	if err := s.store.Delete(ctx, identity); err != nil {
		return err
	}
	s.clearStale(identity)
	return nil
}

// Preferences is the externally writable slice of a profile: explicit
// affinity overrides, opted-out strategies, and feed settings. A read
// after a write returns exactly what was written.
type Preferences struct {
	CategoryOverrides  map[string]float64 `json:"categoryOverrides,omitempty"`
	TagOverrides       map[string]float64 `json:"tagOverrides,omitempty"`
	DisabledStrategies []string           `json:"disabledStrategies,omitempty"`
	Settings           Settings           `json:"settings"`
}

// Preferences returns the identity's stored preferences. Identities with
// no profile yet read the defaults.
func (s *Service) Preferences(ctx context.Context, identity string) (*Preferences, error) {
	if identity == "" {
		return nil, apperr.Validation("identity is required")
	}

	p, err := s.store.Get(ctx, identity)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return &Preferences{Settings: DefaultSettings()}, nil
	}
	if err != nil {
		return nil, err
	}

	return &Preferences{
		CategoryOverrides:  p.CategoryOverrides,
		TagOverrides:       p.TagOverrides,
		DisabledStrategies: p.DisabledStrategies,
		Settings:           p.Settings,
	}, nil
}

// UpdatePreferences validates and persists the preferences, lazily
// creating the profile. Overrides change which affinities survive the
// builder's truncation, so the identity is queued for a rebuild.
func (s *Service) UpdatePreferences(ctx context.Context, identity string, prefs Preferences) (*Preferences, error) {
	if identity == "" {
		return nil, apperr.Validation("identity is required")
	}
	if err := validatePreferences(prefs); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, identity)
	if apperr.IsKind(err, apperr.KindNotFound) {
		p = New(identity)
	} else if err != nil {
		return nil, err
	}

	p.CategoryOverrides = cloneWeights(prefs.CategoryOverrides)
	p.TagOverrides = cloneWeights(prefs.TagOverrides)
	if prefs.DisabledStrategies != nil {
		p.DisabledStrategies = append([]string(nil), prefs.DisabledStrategies...)
	} else {
		p.DisabledStrategies = nil
	}
	p.Settings = prefs.Settings

	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	s.MarkStale(identity)

	return &Preferences{
		CategoryOverrides:  p.CategoryOverrides,
		TagOverrides:       p.TagOverrides,
		DisabledStrategies: p.DisabledStrategies,
		Settings:           p.Settings,
	}, nil
}

func validatePreferences(prefs Preferences) error {
	set := prefs.Settings
	if set.DiversificationWeight < MinDiversification || set.DiversificationWeight > MaxDiversification {
		return apperr.Validation("diversificationWeight must be between 0 and 2").
			WithDetail("diversificationWeight", set.DiversificationWeight)
	}
	if set.MaxRecommendations < MinFeedSize || set.MaxRecommendations > MaxFeedSize {
		return apperr.Validation("maxRecommendations must be between 5 and 50").
			WithDetail("maxRecommendations", set.MaxRecommendations)
	}

	for key, mult := range prefs.CategoryOverrides {
		if err := validateOverride("categoryOverrides", key, mult); err != nil {
			return err
		}
	}
	for key, mult := range prefs.TagOverrides {
		if err := validateOverride("tagOverrides", key, mult); err != nil {
			return err
		}
	}

	for _, name := range prefs.DisabledStrategies {
		if !interaction.Strategy(name).Valid() {
			return apperr.Newf(apperr.KindValidation, "unknown strategy %q in disabledStrategies", name).
				WithDetail("strategy", name)
		}
	}
	return nil
}

func validateOverride(field, key string, mult float64) error {
	if key == "" {
		return apperr.Validation(field + " keys must be non-empty")
	}
	if math.IsNaN(mult) || math.IsInf(mult, 0) || mult <= 0 {
		return apperr.Newf(apperr.KindValidation, "%s[%s] must be a positive multiplier", field, key).
			WithDetail(field, key)
	}
	return nil
}
