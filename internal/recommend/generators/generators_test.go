// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"testing"
	"time"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/database"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// fakeLog serves fixed rows in place of the interaction log.
type fakeLog struct {
	engagement map[string]database.Engagement
	recent     []string
	co         []database.CoEngagementRow
	interacted []string
	dismissed  []string
	err        error
}

var _ recommend.Log = (*fakeLog)(nil)

func (f *fakeLog) ProductEngagement(_ context.Context, _ time.Time) (map[string]database.Engagement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.engagement, nil
}

func (f *fakeLog) RecentProductIDs(_ context.Context, _ string, _ []interaction.Kind, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeLog) CoEngagement(_ context.Context, _ string, _ time.Time, _ int) ([]database.CoEngagementRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.co, nil
}

func (f *fakeLog) InteractedProductIDs(_ context.Context, _ string, _ time.Time) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.interacted, nil
}

func (f *fakeLog) DismissedProductIDs(_ context.Context, _ string, _ time.Time) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dismissed, nil
}

// testNow anchors all fixtures so recency math is exact.
func testNow() time.Time {
	return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
}

func testCategories() []catalog.Category {
	return []catalog.Category{
		{ID: "cat-dev", Slug: "developer-tools", Name: "Developer Tools"},
		{ID: "cat-dev-ci", Slug: "ci-cd", Name: "CI/CD", ParentID: "cat-dev"},
		{ID: "cat-dev-ide", Slug: "ides", Name: "IDEs", ParentID: "cat-dev"},
		{ID: "cat-design", Slug: "design", Name: "Design"},
		{ID: "cat-design-ui", Slug: "ui-kits", Name: "UI Kits", ParentID: "cat-design"},
	}
}

func newStore(t *testing.T, products []catalog.Product) *catalog.MemoryStore {
	t.Helper()
	s := catalog.NewMemoryStore()
	s.Replace(products, testCategories())
	return s
}

func candidateIDs(items []recommend.Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.ProductID
	}
	return out
}

func sameIDs(t *testing.T, got []recommend.Candidate, want ...string) {
	t.Helper()
	ids := candidateIDs(got)
	if len(ids) != len(want) {
		t.Fatalf("got %d candidates %v, want %d %v", len(ids), ids, len(want), want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("candidate order = %v, want %v", ids, want)
		}
	}
}
