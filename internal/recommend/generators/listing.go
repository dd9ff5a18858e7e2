// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Category lists published products in a category, descendants included,
// ordered by trending score.
type Category struct {
	base
}

var _ recommend.Generator = (*Category)(nil)

// NewCategory builds the generator.
func NewCategory(cat catalog.Store) *Category {
	return &Category{base{name: "category", strategy: interaction.StrategyCategory, catalog: cat}}
}

// Generate implements recommend.Generator. An unknown category is a
// NotFound error.
func (g *Category) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	if q.CategoryID == "" {
		return nil, apperr.Validation("category is required")
	}
	node, err := g.catalog.Category(ctx, q.CategoryID)
	if err != nil {
		return nil, err
	}
	products, err := g.catalog.List(ctx, catalog.Filter{CategoryID: q.CategoryID})
	if err != nil {
		return nil, fmt.Errorf("category listing: %w", err)
	}

	explanation := fmt.Sprintf("top of %s", node.Name)
	out := listingCandidates(products, &q, g.strategy, explanation)
	sortListing(out)
	return truncate(out, limit), nil
}

// Maker lists a maker's published products. A maker with no products at all
// is treated as unknown.
type Maker struct {
	base
}

var _ recommend.Generator = (*Maker)(nil)

// NewMaker builds the generator.
func NewMaker(cat catalog.Store) *Maker {
	return &Maker{base{name: "maker", strategy: interaction.StrategyMaker, catalog: cat}}
}

// Generate implements recommend.Generator.
func (g *Maker) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	if q.MakerID == "" {
		return nil, apperr.Validation("maker is required")
	}
	// The catalog has no maker entity, so existence is judged by whether
	// the maker has ever launched anything, published or not.
	known, err := g.catalog.List(ctx, catalog.Filter{MakerID: q.MakerID, Status: catalog.StatusAny})
	if err != nil {
		return nil, fmt.Errorf("maker listing: %w", err)
	}
	if len(known) == 0 {
		return nil, apperr.Newf(apperr.KindNotFound, "maker %s not found", q.MakerID)
	}

	published := known[:0]
	for _, p := range known {
		if p.Published() {
			published = append(published, p)
		}
	}
	out := listingCandidates(published, &q, g.strategy, "more from this maker")
	sortListing(out)
	return truncate(out, limit), nil
}

// Tag lists published products carrying any of the requested tags, ranked
// by how many tags match and then by trending score.
type Tag struct {
	base
}

var _ recommend.Generator = (*Tag)(nil)

// NewTag builds the generator.
func NewTag(cat catalog.Store) *Tag {
	return &Tag{base{name: "tag", strategy: interaction.StrategyTag, catalog: cat}}
}

// Generate implements recommend.Generator.
func (g *Tag) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	want := make(map[string]struct{}, len(q.Tags))
	for _, t := range q.Tags {
		if n := catalog.NormalizeTag(t); n != "" {
			want[n] = struct{}{}
		}
	}
	if len(want) == 0 {
		return nil, apperr.Validation("at least one tag is required")
	}

	products, err := g.catalog.List(ctx, catalog.Filter{})
	if err != nil {
		return nil, fmt.Errorf("tag listing: %w", err)
	}

	out := make([]recommend.Candidate, 0, len(products))
	for _, p := range products {
		if q.Excluded(p.ID) {
			continue
		}
		matched := matchedTags(p, want)
		if len(matched) == 0 {
			continue
		}
		c := recommend.FromProduct(p)
		c.Strategy = g.strategy
		c.Score = float64(len(matched))
		c.Components = recommend.Components{
			Relevance:  float64(len(matched)) / float64(len(want)),
			Popularity: p.TrendingScore,
		}
		c.Explanation = "matches " + strings.Join(matched, ", ")
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TrendingScore != b.TrendingScore {
			return a.TrendingScore > b.TrendingScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ProductID < b.ProductID
	})
	return truncate(out, limit), nil
}

// listingCandidates converts a pre-filtered product list into candidates
// scored by trending order.
func listingCandidates(products []*catalog.Product, q *recommend.Query, strategy interaction.Strategy, explanation string) []recommend.Candidate {
	out := make([]recommend.Candidate, 0, len(products))
	for _, p := range products {
		if q.Excluded(p.ID) {
			continue
		}
		c := recommend.FromProduct(p)
		c.Strategy = strategy
		c.Score = p.TrendingScore
		c.Components = recommend.Components{
			Relevance:  1,
			Recency:    recency(q.Now, p.CreatedAt),
			Popularity: p.TrendingScore,
		}
		c.Explanation = explanation
		out = append(out, c)
	}
	return out
}

// sortListing is the listing order: trending score desc, createdAt desc.
func sortListing(items []recommend.Candidate) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if a.TrendingScore != b.TrendingScore {
			return a.TrendingScore > b.TrendingScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ProductID < b.ProductID
	})
}

// matchedTags returns the requested tags the product carries, sorted for a
// stable explanation string.
func matchedTags(p *catalog.Product, want map[string]struct{}) []string {
	var out []string
	for t := range p.TagSet() {
		if _, ok := want[t]; ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
