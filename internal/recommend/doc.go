// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package recommend serves product feeds from pluggable candidate
// generators.
//
// # Architecture
//
// Each generator implements one feed strategy over the catalog and the
// interaction log:
//
//   - Trending: engagement-weighted scores with recency decay
//   - New arrivals: launch-window recency
//   - Interests: profile category and tag affinities
//   - Collaborative: products engaged by identities with similar taste
//   - History: similar-to products from the identity's recent activity
//   - Similar, Category, Maker, Tag: seeded and neutral listings
//
// A blended feed fans out to several generators in parallel, each under its
// own budget, and merges their output through a blend policy: weighted
// score normalization, duplicate folding with a cross-source boost, and
// diversity caps on category runs and maker share. Component failures
// degrade the feed rather than failing it; the feed metadata reports which
// strategies were degraded.
//
// # Determinism
//
// Given identical catalog, log, and profile state and the same query
// anchor time, every path through the engine produces identical pages.
// Generators order their output with explicit tiebreaks ending in the
// product ID, and the blender preserves that determinism through merge and
// sequencing.
//
// # Usage
//
//	eng := recommend.NewEngine(cfg.Engine, store, db, profiles, blend.New())
//	eng.Register(generators.NewTrending(store, db, cfg.Engine.Trending))
//	eng.Register(generators.NewArrivals(store, cfg.Engine.New))
//
//	feed, err := eng.Feed(ctx, recommend.Query{Identity: id}, "standard", recommend.Page{Limit: 20})
//
// # Thread Safety
//
// The engine is safe for concurrent use. Generators must be stateless or
// internally synchronized; every built-in generator reads shared stores
// that are themselves safe for concurrent use.
package recommend
