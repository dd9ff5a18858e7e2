// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/profile"
	"github.com/huntboard/huntboard/internal/recommend"
)

func interestsFixture(t *testing.T) (*Interests, *Trending, recommend.Query) {
	t.Helper()
	now := testNow()
	store := newStore(t, []catalog.Product{
		{
			ID: "p-match", Slug: "match", Name: "Match", MakerID: "m1",
			CategoryID: "cat-dev-ci", Tags: []string{"AI"},
			Status: catalog.StatusPublished, CreatedAt: now,
		},
		{
			ID: "p-parent", Slug: "parent", Name: "Parent", MakerID: "m2",
			CategoryID: "cat-dev-ide",
			Status: catalog.StatusPublished, CreatedAt: now.Add(-7 * 24 * time.Hour),
		},
		{
			ID: "p-none", Slug: "none", Name: "None", MakerID: "m3",
			CategoryID: "cat-design-ui", Tags: []string{"figma"},
			Status: catalog.StatusPublished, CreatedAt: now.Add(-1 * 24 * time.Hour),
		},
	})
	trending := NewTrending(store, &fakeLog{}, config.TrendingConfig{})
	g := NewInterests(store, trending, 0.5)
	return g, trending, recommend.Query{Identity: "user-1", Now: now}
}

func testProfile() *profile.Profile {
	p := profile.New("user-1")
	p.Categories = map[string]float64{"cat-dev-ci": 0.6, "cat-dev": 0.2}
	p.Tags = map[string]float64{"ai": 0.4}
	return p
}

func TestInterestsScoring(t *testing.T) {
	t.Parallel()
	g, _, q := interestsFixture(t)
	q.Profile = testProfile()

	got, err := g.Generate(context.Background(), q, 10)
	if err != nil {
		t.Fatalf("Generate() err = %v", err)
	}
	// Leaf affinity plus parent affinity plus alpha-weighted tag affinity;
	// the no-affinity product never appears.
	sameIDs(t, got, "p-match", "p-parent")

	top := got[0]
	// affinity 0.6+0.2+0.5*0.4 = 1.0, launched today so recency is 1.0,
	// no upvotes so popularity is 1.0.
	if math.Abs(top.Score-1.0) > 1e-9 {
		t.Errorf("match score = %v, want 1.0", top.Score)
	}
	if want := "matches your interest in CI/CD"; top.Explanation != want {
		t.Errorf("match explanation = %q, want %q", top.Explanation, want)
	}

	second := got[1]
	// Parent-only affinity 0.2, a week old so recency is 0.8.
	if math.Abs(second.Score-0.2*0.8) > 1e-9 {
		t.Errorf("parent score = %v, want %v", second.Score, 0.2*0.8)
	}
	if want := "matches your interest in Developer Tools"; second.Explanation != want {
		t.Errorf("parent explanation = %q, want %q", second.Explanation, want)
	}
}

func TestInterestsComponentBreakdown(t *testing.T) {
	t.Parallel()
	g, _, q := interestsFixture(t)
	q.Profile = testProfile()

	got, err := g.Generate(context.Background(), q, 1)
	if err != nil {
		t.Fatalf("Generate() err = %v", err)
	}
	c := got[0].Components
	if math.Abs(c.Relevance-1.0) > 1e-9 {
		t.Errorf("relevance = %v, want 1.0", c.Relevance)
	}
	if math.Abs(c.Recency-1.0) > 1e-9 {
		t.Errorf("recency = %v, want 1.0", c.Recency)
	}
	if math.Abs(c.Popularity-1.0) > 1e-9 {
		t.Errorf("popularity = %v, want 1.0", c.Popularity)
	}
}

func TestInterestsColdStartServesTrending(t *testing.T) {
	t.Parallel()
	g, trending, q := interestsFixture(t)

	tests := []struct {
		name string
		prof *profile.Profile
	}{
		{"no profile", nil},
		{"empty profile", profile.New("user-1")},
		{"personalization off", func() *profile.Profile {
			p := testProfile()
			p.Settings.PersonalizationEnabled = false
			return p
		}()},
	}

	want, err := trending.Generate(context.Background(), q, 10)
	if err != nil {
		t.Fatalf("trending Generate() err = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			qq := q
			qq.Profile = tt.prof
			got, err := g.Generate(context.Background(), qq, 10)
			if err != nil {
				t.Fatalf("Generate() err = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("cold-start feed diverges from trending:\ngot  %v\nwant %v", candidateIDs(got), candidateIDs(want))
			}
		})
	}
}
