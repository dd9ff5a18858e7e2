// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package generators

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Arrivals lists products launched within the window, newest first.
type Arrivals struct {
	base
	window time.Duration
}

var _ recommend.Generator = (*Arrivals)(nil)

// NewArrivals builds the generator. The window defaults to 14 days.
func NewArrivals(cat catalog.Store, cfg config.NewConfig) *Arrivals {
	days := cfg.WindowDays
	if days <= 0 {
		days = 14
	}
	return &Arrivals{
		base:   base{name: "new", strategy: interaction.StrategyNew, catalog: cat},
		window: time.Duration(days) * 24 * time.Hour,
	}
}

// Generate implements recommend.Generator.
func (g *Arrivals) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	products, err := g.catalog.List(ctx, catalog.Filter{Since: q.Now.Add(-g.window)})
	if err != nil {
		return nil, fmt.Errorf("new arrivals: %w", err)
	}

	out := make([]recommend.Candidate, 0, len(products))
	for _, p := range products {
		if q.Excluded(p.ID) {
			continue
		}
		rec := recency(q.Now, p.CreatedAt)
		c := recommend.FromProduct(p)
		c.Strategy = g.strategy
		c.Score = rec
		c.Components = recommend.Components{Relevance: 1, Recency: rec, Popularity: float64(p.Upvotes)}
		c.Explanation = launchedAgo(q.Now, p.CreatedAt)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Upvotes != b.Upvotes {
			return a.Upvotes > b.Upvotes
		}
		return a.ProductID < b.ProductID
	})
	return truncate(out, limit), nil
}

func launchedAgo(now, createdAt time.Time) string {
	days := int(now.Sub(createdAt).Hours() / 24)
	switch {
	case days <= 0:
		return "launched today"
	case days == 1:
		return "launched yesterday"
	default:
		return fmt.Sprintf("launched %d days ago", days)
	}
}
