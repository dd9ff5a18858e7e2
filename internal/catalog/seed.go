// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package catalog

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/huntboard/huntboard/internal/logging"
)

// Seed is the on-disk catalog snapshot format.
type Seed struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
}

// LoadSeedFile reads a snapshot from disk and loads it into the store.
// Products referencing an unknown category are skipped with a warning; a
// partially valid snapshot still loads.
func LoadSeedFile(path string, store *MemoryStore) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return fmt.Errorf("read catalog seed: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse catalog seed %s: %w", path, err)
	}

	known := make(map[string]struct{}, len(seed.Categories))
	for _, c := range seed.Categories {
		if c.ID == "" {
			return fmt.Errorf("parse catalog seed %s: category with empty id", path)
		}
		known[c.ID] = struct{}{}
	}

	products := make([]Product, 0, len(seed.Products))
	skipped := 0
	for _, p := range seed.Products {
		if p.ID == "" || p.Name == "" {
			skipped++
			continue
		}
		if _, ok := known[p.CategoryID]; !ok {
			logging.Warn().
				Str("product_id", p.ID).
				Str("category_id", p.CategoryID).
				Msg("catalog seed product references unknown category, skipping")
			skipped++
			continue
		}
		products = append(products, p)
	}

	store.Replace(products, seed.Categories)

	logging.Info().
		Str("path", path).
		Int("products", len(products)).
		Int("categories", len(seed.Categories)).
		Int("skipped", skipped).
		Msg("catalog seed loaded")
	return nil
}
