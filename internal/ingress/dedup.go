// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package ingress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/huntboard/huntboard/internal/cache"
)

// keyPrefix namespaces dedup markers inside the shared Badger instance,
// alongside the profile store's profile: namespace.
const keyPrefix = "dedup:"

// recentCapacity bounds the in-process fast path. Eviction under pressure
// fails open: a forgotten key reads as new and Badger still catches it.
const recentCapacity = 8192

// DedupIndex suppresses repeated impressions inside the configured window.
// Badger TTL entries are the authority; an exact-match LRU in front
// answers the common repeat without a storage round trip.
type DedupIndex struct {
	db     *badger.DB
	recent *cache.ExactLRU
	window time.Duration
}

// NewDedupIndex builds an index over the shared Badger instance.
func NewDedupIndex(db *badger.DB, window time.Duration) *DedupIndex {
	return &DedupIndex{
		db:     db,
		recent: cache.NewExactLRU(recentCapacity, window),
		window: window,
	}
}

// CheckAndMark atomically tests the key and claims it when new. Of two
// racing callers exactly one sees new; the loser reads duplicate, either
// from the committed marker or from Badger's transaction conflict.
func (d *DedupIndex) CheckAndMark(ctx context.Context, key string) (duplicate bool, err error) {
	if d.recent.Contains(key) {
		return true, nil
	}

	storeKey := []byte(keyPrefix + key)
	err = d.db.Update(func(txn *badger.Txn) error {
		_, gerr := txn.Get(storeKey)
		if gerr == nil {
			duplicate = true
			return nil
		}
		if !errors.Is(gerr, badger.ErrKeyNotFound) {
			return fmt.Errorf("dedup lookup: %w", gerr)
		}
		return txn.SetEntry(badger.NewEntry(storeKey, nil).WithTTL(d.window))
	})
	if errors.Is(err, badger.ErrConflict) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	d.recent.Record(key)
	return duplicate, nil
}

// Forget releases a claimed key so a retry of the same impression is not
// refused for a record that never landed.
func (d *DedupIndex) Forget(key string) error {
	d.recent.Remove(key)
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}

// CleanupRecent drops expired fast-path entries and returns how many.
func (d *DedupIndex) CleanupRecent() int {
	return d.recent.CleanupExpired()
}

// Stats returns fast-path counters: checks, duplicates, tracked keys.
func (d *DedupIndex) Stats() (checks, duplicates int64, size int) {
	return d.recent.Stats()
}
