// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"fmt"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// History recommends products similar to what the user recently viewed or
// upvoted. Each history product seeds one similarity pass; the per-product
// maximum wins when seeds agree.
type History struct {
	base
	log   recommend.Log
	seeds int
}

var _ recommend.Generator = (*History)(nil)

// NewHistory builds the generator. The seed count defaults to 20.
func NewHistory(cat catalog.Store, log recommend.Log, cfg config.HistoryConfig) *History {
	seeds := cfg.SeedCount
	if seeds <= 0 {
		seeds = 20
	}
	return &History{
		base:  base{name: "history", strategy: interaction.StrategyHistory, catalog: cat},
		log:   log,
		seeds: seeds,
	}
}

// Generate implements recommend.Generator. Without an identity or history
// there is nothing to seed from and the result is empty.
func (g *History) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 || q.Identity == "" {
		return nil, nil
	}
	seedIDs, err := g.log.RecentProductIDs(ctx, q.Identity,
		[]interaction.Kind{interaction.KindView, interaction.KindUpvote}, g.seeds)
	if err != nil {
		return nil, fmt.Errorf("history seeds: %w", err)
	}
	if len(seedIDs) == 0 {
		return nil, nil
	}

	// Deleted seeds drop out here; delisted ones still carry signal.
	seeds, err := g.catalog.Products(ctx, seedIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve history seeds: %w", err)
	}
	products, err := g.catalog.List(ctx, catalog.Filter{})
	if err != nil {
		return nil, fmt.Errorf("history candidates: %w", err)
	}

	seedSet := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		seedSet[s.ID] = struct{}{}
	}

	best := make(map[string]recommend.Candidate)
	for _, seed := range seeds {
		for _, c := range scoreSimilar(seed, products, &q, g.strategy) {
			if _, isSeed := seedSet[c.ProductID]; isSeed {
				continue
			}
			if prev, ok := best[c.ProductID]; ok && prev.Score >= c.Score {
				continue
			}
			c.Explanation = fmt.Sprintf("similar to %s from your history", seed.Name)
			best[c.ProductID] = c
		}
	}

	out := make([]recommend.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sortByScore(out)
	return truncate(out, limit), nil
}
