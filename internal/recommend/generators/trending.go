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
	"github.com/huntboard/huntboard/internal/database"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Window bounds accepted for the timeframe parameter.
const (
	minTrendingWindow = 24 * time.Hour
	maxTrendingWindow = 30 * 24 * time.Hour
)

// Trending ranks products by windowed engagement from the interaction log,
// discounted by product age. Products with no activity in the window rank
// below every active one, ordered by the catalog's long-horizon trending
// score.
type Trending struct {
	base
	log recommend.Log
	cfg config.TrendingConfig
}

var _ recommend.Generator = (*Trending)(nil)

// NewTrending builds the generator. Zero config fields fall back to the
// defaults (7d window, weights 3/0.1/2).
func NewTrending(cat catalog.Store, log recommend.Log, cfg config.TrendingConfig) *Trending {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.UpvoteWeight == 0 && cfg.ViewWeight == 0 && cfg.BookmarkWeight == 0 {
		cfg.UpvoteWeight = 3.0
		cfg.ViewWeight = 0.1
		cfg.BookmarkWeight = 2.0
	}
	return &Trending{
		base: base{name: "trending", strategy: interaction.StrategyTrending, catalog: cat},
		log:  log,
		cfg:  cfg,
	}
}

// Generate implements recommend.Generator.
func (g *Trending) Generate(ctx context.Context, q recommend.Query, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	window := g.window(q)
	since := q.Now.Add(-window)

	engagement, err := g.log.ProductEngagement(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("trending engagement window: %w", err)
	}
	products, err := g.catalog.List(ctx, catalog.Filter{})
	if err != nil {
		return nil, fmt.Errorf("trending candidates: %w", err)
	}

	windowDays := int(window.Hours() / 24)
	out := make([]recommend.Candidate, 0, len(products))
	for _, p := range products {
		if q.Excluded(p.ID) {
			continue
		}
		e := engagement[p.ID]
		raw := g.cfg.UpvoteWeight*float64(e.Upvotes) +
			g.cfg.ViewWeight*float64(e.Views) +
			g.cfg.BookmarkWeight*float64(e.Bookmarks)
		rec := recency(q.Now, p.CreatedAt)

		c := recommend.FromProduct(p)
		c.Strategy = g.strategy
		c.Score = raw * rec
		c.Components = recommend.Components{Recency: rec, Popularity: raw}
		c.Explanation = g.explain(e, windowDays)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		// Both idle in the window: long-horizon popularity decides.
		if a.Score == 0 && a.TrendingScore != b.TrendingScore {
			return a.TrendingScore > b.TrendingScore
		}
		if a.Upvotes != b.Upvotes {
			return a.Upvotes > b.Upvotes
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ProductID < b.ProductID
	})
	return truncate(out, limit), nil
}

// window resolves the effective trending window, honoring the query's
// timeframe override within [1,30] days.
func (g *Trending) window(q recommend.Query) time.Duration {
	w := q.Window
	if w <= 0 {
		w = time.Duration(g.cfg.WindowDays) * 24 * time.Hour
	}
	if w < minTrendingWindow {
		w = minTrendingWindow
	}
	if w > maxTrendingWindow {
		w = maxTrendingWindow
	}
	return w
}

// explain names the dominant engagement signal.
func (g *Trending) explain(e database.Engagement, windowDays int) string {
	up := g.cfg.UpvoteWeight * float64(e.Upvotes)
	views := g.cfg.ViewWeight * float64(e.Views)
	marks := g.cfg.BookmarkWeight * float64(e.Bookmarks)

	switch {
	case up == 0 && views == 0 && marks == 0:
		return "steady catalog popularity"
	case up >= views && up >= marks:
		return fmt.Sprintf("%d upvotes in the last %d days", e.Upvotes, windowDays)
	case marks >= views:
		return fmt.Sprintf("%d bookmarks in the last %d days", e.Bookmarks, windowDays)
	default:
		return fmt.Sprintf("%d views in the last %d days", e.Views, windowDays)
	}
}
