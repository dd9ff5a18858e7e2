// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"fmt"
	"math"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/profile"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Interests scores products against the user's category and tag affinities.
// A product inherits its parent category's affinity on top of the leaf's.
// Users without a usable profile are served trending instead, which makes
// the cold-start feed identical to the trending feed.
type Interests struct {
	base
	trending *Trending
	alpha    float64
}

var _ recommend.Generator = (*Interests)(nil)

// NewInterests builds the generator. Alpha weights tag affinity against
// category affinity and defaults to 0.5.
func NewInterests(cat catalog.Store, trending *Trending, alpha float64) *Interests {
	if alpha <= 0 {
		alpha = 0.5
	}
	return &Interests{
		base:     base{name: "interests", strategy: interaction.StrategyPersonalized, catalog: cat},
		trending: trending,
		alpha:    alpha,
	}
}

// Generate implements recommend.Generator.
func (g *Interests) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	prof := q.Profile
	if prof == nil || !prof.Personalized() {
		return g.trending.Generate(ctx, q, limit)
	}

	products, err := g.catalog.List(ctx, catalog.Filter{})
	if err != nil {
		return nil, fmt.Errorf("interest candidates: %w", err)
	}
	categories, err := g.catalog.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("interest categories: %w", err)
	}
	byID := make(map[string]*catalog.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	out := make([]recommend.Candidate, 0, len(products))
	for _, p := range products {
		if q.Excluded(p.ID) {
			continue
		}
		match := g.matchProduct(prof, p, byID)
		if match.affinity <= 0 {
			continue
		}
		rec := 0.6 + 0.4*recency(q.Now, p.CreatedAt)
		pop := 1 + math.Log1p(float64(p.Upvotes))/10

		c := recommend.FromProduct(p)
		c.Strategy = g.strategy
		c.Score = match.affinity * rec * pop
		c.Components = recommend.Components{Relevance: match.affinity, Recency: rec, Popularity: pop}
		c.Explanation = match.explanation
		out = append(out, c)
	}

	sortByScore(out)
	return truncate(out, limit), nil
}

type interestMatch struct {
	affinity    float64
	explanation string
}

// matchProduct sums the profile's affinity for the product's category chain
// and tags, remembering the strongest single contributor for the
// explanation. Tags are walked in declaration order so ties resolve the
// same way every time.
func (g *Interests) matchProduct(prof *profile.Profile, p *catalog.Product, categories map[string]*catalog.Category) interestMatch {
	var m interestMatch
	best := 0.0

	consider := func(contribution float64, label string) {
		m.affinity += contribution
		if contribution > best {
			best = contribution
			m.explanation = label
		}
	}

	if aff := prof.CategoryAffinity(p.CategoryID); aff > 0 {
		consider(aff, "matches your interest in "+categoryName(categories, p.CategoryID))
	}
	if leaf, ok := categories[p.CategoryID]; ok && leaf.ParentID != "" {
		if aff := prof.CategoryAffinity(leaf.ParentID); aff > 0 {
			consider(aff, "matches your interest in "+categoryName(categories, leaf.ParentID))
		}
	}
	seen := make(map[string]struct{}, len(p.Tags))
	for _, raw := range p.Tags {
		tag := catalog.NormalizeTag(raw)
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if aff := prof.TagAffinity(tag); aff > 0 {
			consider(g.alpha*aff, "matches your interest in #"+tag)
		}
	}
	return m
}

func categoryName(categories map[string]*catalog.Category, id string) string {
	if c, ok := categories[id]; ok && c.Name != "" {
		return c.Name
	}
	return id
}
