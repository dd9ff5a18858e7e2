// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"fmt"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Similarity weights: tag overlap dominates, category match and upvote
// popularity break it up.
const (
	similarTagWeight      = 0.5
	similarCategoryWeight = 0.3
	similarUpvoteWeight   = 0.2
)

// Similar scores published products against a seed product by tag Jaccard,
// category match, and normalized upvotes.
type Similar struct {
	base
}

var _ recommend.Generator = (*Similar)(nil)

// NewSimilar builds the generator.
func NewSimilar(cat catalog.Store) *Similar {
	return &Similar{base{name: "similar", strategy: interaction.StrategySimilar, catalog: cat}}
}

// Generate implements recommend.Generator. An unknown seed is a NotFound
// error.
func (g *Similar) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	if q.SeedID == "" {
		return nil, apperr.Validation("seed product is required")
	}
	seed, err := g.catalog.Product(ctx, q.SeedID)
	if err != nil {
		return nil, err
	}
	products, err := g.catalog.List(ctx, catalog.Filter{})
	if err != nil {
		return nil, fmt.Errorf("similar candidates: %w", err)
	}

	out := scoreSimilar(seed, products, &q, g.strategy)
	sortByScore(out)
	return truncate(out, limit), nil
}

// scoreSimilar ranks products against one seed. Shared with the history
// generator, which runs it once per history seed.
func scoreSimilar(seed *catalog.Product, products []*catalog.Product, q *recommend.Query, strategy interaction.Strategy) []recommend.Candidate {
	seedTags := seed.TagSet()

	maxUpvotes := 0
	for _, p := range products {
		if p.Upvotes > maxUpvotes {
			maxUpvotes = p.Upvotes
		}
	}

	out := make([]recommend.Candidate, 0, len(products))
	for _, p := range products {
		if p.ID == seed.ID || q.Excluded(p.ID) {
			continue
		}
		shared, jaccard := tagOverlap(seedTags, p.TagSet())
		sameCategory := 0.0
		if p.CategoryID == seed.CategoryID {
			sameCategory = 1.0
		}
		popularity := 0.0
		if maxUpvotes > 0 {
			popularity = float64(p.Upvotes) / float64(maxUpvotes)
		}

		relevance := similarTagWeight*jaccard + similarCategoryWeight*sameCategory
		score := relevance + similarUpvoteWeight*popularity
		if score == 0 {
			continue
		}

		c := recommend.FromProduct(p)
		c.Strategy = strategy
		c.Score = score
		c.Components = recommend.Components{
			Relevance:  relevance,
			Popularity: similarUpvoteWeight * popularity,
		}
		c.Explanation = explainSimilar(seed, shared, jaccard, sameCategory, popularity)
		out = append(out, c)
	}
	return out
}

func explainSimilar(seed *catalog.Product, shared int, jaccard, sameCategory, popularity float64) string {
	tagPart := similarTagWeight * jaccard
	catPart := similarCategoryWeight * sameCategory
	popPart := similarUpvoteWeight * popularity

	switch {
	case tagPart >= catPart && tagPart >= popPart && shared > 0:
		noun := "tags"
		if shared == 1 {
			noun = "tag"
		}
		return fmt.Sprintf("shares %d %s with %s", shared, noun, seed.Name)
	case catPart >= popPart && sameCategory > 0:
		return fmt.Sprintf("same category as %s", seed.Name)
	default:
		return "well upvoted in this space"
	}
}
