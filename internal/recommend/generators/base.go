// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package generators implements the candidate generators behind each
// recommendation strategy. Every generator embeds a shared base, reads the
// catalog through catalog.Store, and emits only published products in a
// deterministic order. The engine registers them and fans queries out under
// its budgets.
package generators

import (
	"sort"
	"time"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// base carries what every generator shares: its identity and the catalog.
type base struct {
	name     string
	strategy interaction.Strategy
	catalog  catalog.Store
}

// Name implements recommend.Generator.
func (b *base) Name() string { return b.name }

// Strategy implements recommend.Generator.
func (b *base) Strategy() interaction.Strategy { return b.strategy }

// recency discounts by age on a one-week scale: a week-old product scores
// half of a brand-new one.
func recency(now, createdAt time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return 1 / (1 + days/7)
}

// tagOverlap returns the shared-tag count and Jaccard similarity of two tag
// sets.
func tagOverlap(a, b map[string]struct{}) (shared int, jaccard float64) {
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0, 0
	}
	return shared, float64(shared) / float64(union)
}

// sortByScore orders candidates best first: score desc, upvotes desc,
// product ID asc. It is the in-generator counterpart of the serving sort.
func sortByScore(items []recommend.Candidate) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Upvotes != b.Upvotes {
			return a.Upvotes > b.Upvotes
		}
		return a.ProductID < b.ProductID
	})
}

// truncate bounds a candidate list to the requested limit.
func truncate(items []recommend.Candidate, limit int) []recommend.Candidate {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
