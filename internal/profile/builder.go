// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package profile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/database"
	"github.com/huntboard/huntboard/internal/interaction"
)

// LogReader is the slice of the interaction log the builder consumes.
// *database.DB satisfies it.
type LogReader interface {
	ProfileRows(ctx context.Context, identity string, since time.Time) ([]database.ProfileRow, error)
}

// Builder derives affinity weights from an identity's retained interaction
// history. Each interaction contributes quality x decay(age) to the
// product's leaf category, that category's parent, and every product tag.
// Weights are the key's share of total contribution mass, multiplied by
// explicit overrides, ranked and truncated to the configured top-K.
type Builder struct {
	log      LogReader
	catalog  catalog.Store
	halfLife time.Duration
	topCats  int
	topTags  int
}

// NewBuilder wires the builder against the log and catalog.
func NewBuilder(log LogReader, cat catalog.Store, cfg config.ProfileConfig) *Builder {
	halfLife := cfg.HalfLife
	if halfLife <= 0 {
		halfLife = 14 * 24 * time.Hour
	}
	topCats := cfg.TopCategories
	if topCats <= 0 {
		topCats = 64
	}
	topTags := cfg.TopTags
	if topTags <= 0 {
		topTags = 256
	}
	return &Builder{
		log:      log,
		catalog:  cat,
		halfLife: halfLife,
		topCats:  topCats,
		topTags:  topTags,
	}
}

// Build materializes a profile from the identity's history. Overrides,
// disabled strategies, and settings carry over from the prior profile;
// only the affinities are rederived. Zero history yields an empty-affinity
// profile, not an error.
func (b *Builder) Build(ctx context.Context, identity string, prior *Profile) (*Profile, error) {
	now := time.Now().UTC()

	out := New(identity)
	if prior != nil {
		out.CategoryOverrides = cloneWeights(prior.CategoryOverrides)
		out.TagOverrides = cloneWeights(prior.TagOverrides)
		if prior.DisabledStrategies != nil {
			out.DisabledStrategies = append([]string(nil), prior.DisabledStrategies...)
		}
		out.Settings = prior.Settings
	}

	rows, err := b.log.ProfileRows(ctx, identity, now.Add(-interaction.RetentionWindow))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(rows) == 0 {
		out.LastRebuilt = now
		return out, nil
	}

	products, err := b.resolveProducts(ctx, rows)
	if err != nil {
		return nil, err
	}
	parentOf, err := b.parentIndex(ctx)
	if err != nil {
		return nil, err
	}

	catMass := make(map[string]float64)
	tagMass := make(map[string]float64)
	var total float64

	for _, row := range rows {
		p, ok := products[row.ProductID]
		if !ok {
			// Product deleted since the interaction; its signal is gone.
			continue
		}
		c := row.Quality * decay(now.Sub(row.CreatedAt), b.halfLife)
		if c <= 0 {
			continue
		}
		total += c

		if p.CategoryID != "" {
			catMass[p.CategoryID] += c
			if parent := parentOf[p.CategoryID]; parent != "" {
				catMass[parent] += c
			}
		}
		for tag := range p.TagSet() {
			tagMass[tag] += c
		}
	}

	if total > 0 {
		out.Categories = rank(catMass, total, out.CategoryOverrides, b.topCats)
		out.Tags = rank(tagMass, total, out.TagOverrides, b.topTags)
	}
	out.LastRebuilt = now
	return out, nil
}

// decay halves a contribution every halfLife of age. Future timestamps
// clamp to full weight.
func decay(age, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}

// rank normalizes mass into shares, applies overrides, and keeps the top-K
// weights. Ties break on key so rebuilds are deterministic.
func rank(mass map[string]float64, total float64, overrides map[string]float64, k int) map[string]float64 {
	type entry struct {
		key    string
		weight float64
	}
	entries := make([]entry, 0, len(mass))
	for key, m := range mass {
		w := m / total
		if mult, ok := overrides[key]; ok {
			w *= mult
		}
		if w <= 0 {
			continue
		}
		entries = append(entries, entry{key, w})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		return entries[i].key < entries[j].key
	})
	if len(entries) > k {
		entries = entries[:k]
	}

	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]float64, len(entries))
	for _, e := range entries {
		out[e.key] = e.weight
	}
	return out
}

// resolveProducts batch-fetches the distinct products the history touches.
func (b *Builder) resolveProducts(ctx context.Context, rows []database.ProfileRow) (map[string]*catalog.Product, error) {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ProductID]; ok {
			continue
		}
		seen[row.ProductID] = struct{}{}
		ids = append(ids, row.ProductID)
	}

	products, err := b.catalog.Products(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	byID := make(map[string]*catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// parentIndex maps leaf category ID to its parent ID.
func (b *Builder) parentIndex(ctx context.Context) (map[string]string, error) {
	cats, err := b.catalog.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve categories: %w", err)
	}
	parentOf := make(map[string]string, len(cats))
	for _, c := range cats {
		if c.ParentID != "" {
			parentOf[c.ID] = c.ParentID
		}
	}
	return parentOf, nil
}
