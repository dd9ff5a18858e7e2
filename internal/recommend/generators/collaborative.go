// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"fmt"
	"time"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Collaborative surfaces products engaged by users who upvoted or
// bookmarked the same things the requesting user did. The log aggregates
// the neighborhood; this generator resolves, filters, and ranks it.
type Collaborative struct {
	base
	log        recommend.Log
	window     time.Duration
	perItemCap int
}

var _ recommend.Generator = (*Collaborative)(nil)

// NewCollaborative builds the generator. Defaults: 30d window, 200 users
// considered per shared product.
func NewCollaborative(cat catalog.Store, log recommend.Log, cfg config.CollaborativeConfig) *Collaborative {
	window := cfg.Window
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	perItem := cfg.MaxUsersPerItem
	if perItem <= 0 {
		perItem = 200
	}
	return &Collaborative{
		base:       base{name: "collaborative", strategy: interaction.StrategyCollaborative, catalog: cat},
		log:        log,
		window:     window,
		perItemCap: perItem,
	}
}

// Generate implements recommend.Generator. Anonymous users and users with
// no neighborhood get an empty result, never an error.
func (g *Collaborative) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 || q.Identity == "" {
		return nil, nil
	}
	rows, err := g.log.CoEngagement(ctx, q.Identity, q.Now.Add(-g.window), g.perItemCap)
	if err != nil {
		return nil, fmt.Errorf("co-engagement neighborhood: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// The neighborhood query already removes products the user engaged
	// inside its window; this covers the rest of the retention period.
	interacted, err := g.log.InteractedProductIDs(ctx, q.Identity, q.Now.Add(-interaction.RetentionWindow))
	if err != nil {
		return nil, fmt.Errorf("interacted products: %w", err)
	}
	skip := make(map[string]struct{}, len(interacted))
	for _, id := range interacted {
		skip[id] = struct{}{}
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ProductID)
	}
	products, err := g.catalog.Products(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve neighborhood products: %w", err)
	}
	byID := make(map[string]*catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]recommend.Candidate, 0, len(rows))
	for _, r := range rows {
		if _, done := skip[r.ProductID]; done {
			continue
		}
		if q.Excluded(r.ProductID) {
			continue
		}
		p, ok := byID[r.ProductID]
		if !ok || !p.Published() {
			continue
		}
		c := recommend.FromProduct(p)
		c.Strategy = g.strategy
		c.Score = r.Score()
		c.Components = recommend.Components{
			Relevance:  r.AvgQuality,
			Popularity: float64(r.Users),
		}
		c.Explanation = explainNeighbors(r.Users)
		out = append(out, c)
	}

	sortByScore(out)
	return truncate(out, limit), nil
}

func explainNeighbors(users int) string {
	if users == 1 {
		return "a user with similar taste engaged with this"
	}
	return fmt.Sprintf("%d users with similar taste engaged with this", users)
}
