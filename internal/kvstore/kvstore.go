// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package kvstore owns the BadgerDB instance shared by the profile store
// (profile: namespace) and the ingress deduplication index (dedup:
// namespace, native TTL entries). One LSM tree serves both so the server
// carries a single on-disk key-value footprint.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/huntboard/huntboard/internal/logging"
)

// gcDiscardRatio is the value-log rewrite threshold passed to Badger's GC.
// A file is rewritten when at least this fraction of it is discardable.
const gcDiscardRatio = 0.5

// Open opens the shared BadgerDB. An empty path opens an in-memory
// instance, which tests and ephemeral deployments use.
func Open(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}

	logging.Info().
		Str("path", path).
		Bool("in_memory", path == "").
		Msg("key-value store opened")
	return db, nil
}

// GC periodically reclaims Badger value-log space. Expired dedup entries
// and overwritten profiles leave garbage behind that only value-log GC
// frees. Runs under the supervisor's data layer.
type GC struct {
	db       *badger.DB
	interval time.Duration
}

// NewGC creates a collector with the given sweep interval.
func NewGC(db *badger.DB, interval time.Duration) *GC {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GC{db: db, interval: interval}
}

// Serve implements suture.Service.
func (g *GC) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.collect()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (g *GC) String() string {
	return "kvstore-gc"
}

// collect rewrites value-log files until Badger reports nothing left to
// reclaim. ErrNoRewrite is the normal stop condition, not a failure.
// In-memory instances have no value log, so there is nothing to collect.
func (g *GC) collect() {
	if g.db.Opts().InMemory {
		return
	}

	start := time.Now()
	rewrites := 0
	for {
		err := g.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			logging.Warn().Err(err).Msg("kvstore value-log GC failed")
			return
		}
		rewrites++
	}
	if rewrites > 0 {
		logging.Debug().
			Int("rewrites", rewrites).
			Dur("took", time.Since(start)).
			Msg("kvstore value-log GC completed")
	}
}
