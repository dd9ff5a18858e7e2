// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/cache"
	"github.com/huntboard/huntboard/internal/metrics"
)

// keyPrefix namespaces profile records inside the shared Badger instance.
const keyPrefix = "profile:"

const (
	defaultHotCapacity = 4096
	defaultHotTTL      = 15 * time.Minute
)

// Store persists profiles in BadgerDB with an LFU hot cache in front.
// Profile reads are heavily skewed toward active identities, so frequency
// eviction keeps the hot set resident across temporary traffic.
//
// The store does not own the Badger instance; the caller opens it via
// kvstore.Open and shares it with the dedup index.
type Store struct {
	db  *badger.DB
	hot *cache.LFUCacheGeneric[*Profile]
}

// NewStore creates a store over the shared Badger instance. Non-positive
// capacity or TTL fall back to defaults.
func NewStore(db *badger.DB, hotCapacity int, hotTTL time.Duration) *Store {
	if hotCapacity <= 0 {
		hotCapacity = defaultHotCapacity
	}
	if hotTTL <= 0 {
		hotTTL = defaultHotTTL
	}
	return &Store{
		db:  db,
		hot: cache.NewLFUCacheGeneric[*Profile](hotCapacity, hotTTL),
	}
}

// Get returns the identity's profile, or a NotFound error when none has
// been persisted yet. The returned profile is a private copy.
func (s *Store) Get(ctx context.Context, identity string) (*Profile, error) {
	if identity == "" {
		return nil, apperr.Validation("identity is required")
	}

	if p, ok := s.hot.Get(identity); ok {
		metrics.CacheHits.WithLabelValues("profile").Inc()
		return p.Clone(), nil
	}
	metrics.CacheMisses.WithLabelValues("profile").Inc()

	var p Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + identity))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperr.NotFound("profile not found")
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}

	s.hot.Set(identity, p.Clone())
	return &p, nil
}

// Put persists the profile durably, then refreshes the hot cache. A copy
// is stored, so the caller keeps ownership of its argument.
func (s *Store) Put(ctx context.Context, p *Profile) error {
	if p == nil || p.Identity == "" {
		return apperr.Validation("profile identity is required")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+p.Identity), data)
	})
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}

	s.hot.Set(p.Identity, p.Clone())
	return nil
}

// Delete removes the identity's profile. Deleting an absent profile is
// not an error.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if identity == "" {
		return apperr.Validation("identity is required")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(keyPrefix + identity))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	s.hot.Delete(identity)
	return nil
}

// HotStats exposes hot-cache counters for health reporting.
func (s *Store) HotStats() (hits, misses int64, size int) {
	return s.hot.Stats()
}
