// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package profile

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/database"
)

// newTestService wires a service over an in-memory store, the shared test
// catalog, and the given fake log.
func newTestService(t *testing.T, log *fakeLog, freshFor, budget time.Duration) (*Service, *Store) {
	t.Helper()
	store := newTestStore(t)
	builder := NewBuilder(log, newTestCatalog(), testProfileConfig())
	return NewService(store, builder, freshFor, budget), store
}

func upvoteRow(productID string) database.ProfileRow {
	return database.ProfileRow{
		ProductID: productID,
		Kind:      "upvote",
		Quality:   7.0,
		CreatedAt: time.Now().UTC(),
	}
}

func TestServiceBuildsAndPersistsOnFirstRead(t *testing.T) {
	t.Parallel()

	log := &fakeLog{}
	log.setRows("u1", []database.ProfileRow{upvoteRow("p-ai")})
	svc, store := newTestService(t, log, 15*time.Minute, time.Second)

	p, degraded, err := svc.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if degraded {
		t.Error("unexpected degraded result")
	}
	if p.CategoryAffinity("cat-ai") == 0 {
		t.Errorf("expected affinity for cat-ai, got %+v", p.Categories)
	}
	if p.LastRebuilt.IsZero() {
		t.Error("expected LastRebuilt to be set")
	}

	// The rebuild persisted.
	stored, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored.CategoryAffinity("cat-ai") == 0 {
		t.Error("rebuild result not persisted")
	}
}

func TestServiceFreshProfileSkipsRebuild(t *testing.T) {
	t.Parallel()

	log := &fakeLog{}
	log.setRows("u1", []database.ProfileRow{upvoteRow("p-ai")})
	svc, _ := newTestService(t, log, 15*time.Minute, time.Second)
	ctx := context.Background()

	if _, _, err := svc.Profile(ctx, "u1"); err != nil {
		t.Fatalf("first Profile: %v", err)
	}
	if _, _, err := svc.Profile(ctx, "u1"); err != nil {
		t.Fatalf("second Profile: %v", err)
	}
	if calls := log.callCount(); calls != 1 {
		t.Errorf("log read %d times, want 1 (fresh profile must not rebuild)", calls)
	}
}

func TestServiceCoalescesConcurrentRebuilds(t *testing.T) {
	t.Parallel()

	log := &fakeLog{delay: 50 * time.Millisecond}
	log.setRows("u1", []database.ProfileRow{upvoteRow("p-ai")})
	svc, _ := newTestService(t, log, 15*time.Minute, 2*time.Second)

	const readers = 8
	var wg sync.WaitGroup
	errs := make([]error, readers)
	profiles := make([]*Profile, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := svc.Profile(context.Background(), "u1")
			profiles[i], errs[i] = p, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < readers; i++ {
		if errs[i] != nil {
			t.Fatalf("reader %d: %v", i, errs[i])
		}
		if profiles[i].CategoryAffinity("cat-ai") == 0 {
			t.Errorf("reader %d got no affinities", i)
		}
	}
	if calls := log.callCount(); calls != 1 {
		t.Errorf("log read %d times, want 1 (rebuilds must coalesce)", calls)
	}
}

func TestServiceBudgetServesStaleProfile(t *testing.T) {
	t.Parallel()

	log := &fakeLog{delay: 300 * time.Millisecond}
	log.setRows("u1", []database.ProfileRow{upvoteRow("p-ai")})
	svc, store := newTestService(t, log, 15*time.Minute, 20*time.Millisecond)
	ctx := context.Background()

	stale := New("u1")
	stale.Categories = map[string]float64{"cat-old": 1.0}
	stale.LastRebuilt = time.Now().UTC().Add(-time.Hour)
	if err := store.Put(ctx, stale); err != nil {
		t.Fatalf("seed stale profile: %v", err)
	}

	start := time.Now()
	p, degraded, err := svc.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if waited := time.Since(start); waited > 200*time.Millisecond {
		t.Errorf("stale serve took %v, should return around the 20ms budget", waited)
	}
	if degraded {
		t.Error("stale serve is not degraded personalization")
	}
	if p.CategoryAffinity("cat-old") != 1.0 {
		t.Errorf("expected the stale profile, got %+v", p.Categories)
	}
	if svc.StaleCount() == 0 {
		t.Error("expected the identity to be queued for background refresh")
	}

	// The detached rebuild finishes and persists on its own.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := store.Get(ctx, "u1")
		if err == nil && stored.CategoryAffinity("cat-ai") > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background rebuild never persisted")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServiceBuildFailureDegrades(t *testing.T) {
	t.Parallel()

	log := &fakeLog{err: errors.New("log is down")}
	svc, _ := newTestService(t, log, 15*time.Minute, time.Second)

	p, degraded, err := svc.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !degraded {
		t.Error("expected degraded personalization when the rebuild fails")
	}
	if !p.Empty() {
		t.Errorf("expected empty fallback profile, got %+v", p)
	}
}

func TestServiceBuildFailureServesPrior(t *testing.T) {
	t.Parallel()

	log := &fakeLog{err: errors.New("log is down")}
	svc, store := newTestService(t, log, 15*time.Minute, time.Second)
	ctx := context.Background()

	prior := New("u1")
	prior.Categories = map[string]float64{"cat-ai": 0.5}
	prior.LastRebuilt = time.Now().UTC().Add(-time.Hour)
	if err := store.Put(ctx, prior); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	p, degraded, err := svc.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !degraded {
		t.Error("expected degraded result when rebuild fails")
	}
	if p.CategoryAffinity("cat-ai") != 0.5 {
		t.Errorf("expected the prior profile, got %+v", p.Categories)
	}
}

func TestServiceProfileRequiresIdentity(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeLog{}, time.Minute, time.Second)

	_, _, err := svc.Profile(context.Background(), "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestServicePreferencesRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeLog{}, time.Minute, time.Second)
	ctx := context.Background()

	want := Preferences{
		CategoryOverrides:  map[string]float64{"cat-ai": 2.0},
		TagOverrides:       map[string]float64{"ai": 1.5},
		DisabledStrategies: []string{"collaborative", "maker"},
		Settings: Settings{
			PersonalizationEnabled: true,
			DiversificationWeight:  1.5,
			MaxRecommendations:     25,
		},
	}

	echoed, err := svc.UpdatePreferences(ctx, "u1", want)
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if !reflect.DeepEqual(*echoed, want) {
		t.Errorf("echoed = %+v, want %+v", *echoed, want)
	}

	got, err := svc.Preferences(ctx, "u1")
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("read back = %+v, want %+v", *got, want)
	}
}

func TestServicePreferencesDefaultsWhenMissing(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeLog{}, time.Minute, time.Second)

	got, err := svc.Preferences(context.Background(), "newcomer")
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if got.Settings != DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", got.Settings)
	}
	if len(got.CategoryOverrides) != 0 || len(got.TagOverrides) != 0 || len(got.DisabledStrategies) != 0 {
		t.Errorf("expected empty preferences, got %+v", got)
	}
}

func TestServicePreferencesValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeLog{}, time.Minute, time.Second)
	ctx := context.Background()

	valid := func() Preferences {
		return Preferences{Settings: DefaultSettings()}
	}

	tests := []struct {
		name   string
		mutate func(*Preferences)
	}{
		{"diversification above bound", func(p *Preferences) { p.Settings.DiversificationWeight = 2.5 }},
		{"diversification below bound", func(p *Preferences) { p.Settings.DiversificationWeight = -0.1 }},
		{"feed size too small", func(p *Preferences) { p.Settings.MaxRecommendations = 3 }},
		{"feed size too large", func(p *Preferences) { p.Settings.MaxRecommendations = 80 }},
		{"zero override", func(p *Preferences) { p.CategoryOverrides = map[string]float64{"cat-ai": 0} }},
		{"negative override", func(p *Preferences) { p.TagOverrides = map[string]float64{"ai": -1} }},
		{"nan override", func(p *Preferences) { p.TagOverrides = map[string]float64{"ai": math.NaN()} }},
		{"empty override key", func(p *Preferences) { p.CategoryOverrides = map[string]float64{"": 1.5} }},
		{"legacy strategy alias", func(p *Preferences) { p.DisabledStrategies = []string{"view_similar"} }},
		{"unknown strategy", func(p *Preferences) { p.DisabledStrategies = []string{"astrology"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := valid()
			tt.mutate(&prefs)
			_, err := svc.UpdatePreferences(ctx, "u1", prefs)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	// Canonical strategy names pass.
	prefs := valid()
	prefs.DisabledStrategies = []string{"similar", "history"}
	if _, err := svc.UpdatePreferences(ctx, "u1", prefs); err != nil {
		t.Errorf("canonical strategies rejected: %v", err)
	}
}

func TestServicePreferencesWriteQueuesRebuild(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeLog{}, time.Minute, time.Second)

	_, err := svc.UpdatePreferences(context.Background(), "u1", Preferences{Settings: DefaultSettings()})
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if svc.StaleCount() == 0 {
		t.Error("preference write should queue the identity for rebuild")
	}
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	log := &fakeLog{}
	log.setRows("u1", []database.ProfileRow{upvoteRow("p-ai")})
	svc, store := newTestService(t, log, 15*time.Minute, time.Second)
	ctx := context.Background()

	if _, _, err := svc.Profile(ctx, "u1"); err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if err := svc.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "u1"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func TestRefresherRebuildsStaleMarks(t *testing.T) {
	t.Parallel()

	log := &fakeLog{}
	log.setRows("u1", []database.ProfileRow{upvoteRow("p-ai")})
	svc, store := newTestService(t, log, 15*time.Minute, time.Second)

	svc.MarkStale("u1")

	refresher := NewRefresher(svc, 10*time.Millisecond)
	if refresher.String() != "profile-refresher" {
		t.Errorf("String() = %q", refresher.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- refresher.Serve(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for svc.StaleCount() > 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("refresher never drained the stale set")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after cancel")
	}

	stored, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored.CategoryAffinity("cat-ai") == 0 {
		t.Error("background refresh did not rebuild affinities")
	}
}
