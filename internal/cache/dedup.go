// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package cache

import (
	"sync"
	"time"
)

// DeduplicationCache is the in-process suppression layer for repeated
// events. The ingress pipeline fronts its durable impression-dedup store
// with one, and the event router uses one to drop redelivered bus messages.
//
// A duplicate verdict must never be wrong: a false positive would turn a
// genuine interaction into a spurious conflict. Implementations are
// therefore exact-match only.
type DeduplicationCache interface {
	// IsDuplicate checks if a key has been seen within the window.
	// If not a duplicate, records the key for future checks.
	IsDuplicate(key string) bool

	// Contains checks if a key exists without modifying the cache.
	Contains(key string) bool

	// Record marks a key as seen without checking for duplicates.
	Record(key string)

	// Remove forgets a key before its window elapses.
	Remove(key string)

	// CleanupExpired removes expired entries and returns how many.
	CleanupExpired() int

	// Clear removes all entries.
	Clear()

	// Len returns the current number of entries.
	Len() int

	// Stats returns (checks, duplicates, size).
	Stats() (checks, duplicates int64, size int)
}

var _ DeduplicationCache = (*ExactLRU)(nil)

// ExactLRU is a deduplication cache with zero false positives, backed by the
// TTL-aware LRU. Capacity eviction means a key can be forgotten early under
// pressure, which fails open: a forgotten key reads as new, and the durable
// store behind it still catches the duplicate.
type ExactLRU struct {
	lru *LRUCache
	mu  sync.RWMutex

	checks     int64
	duplicates int64
}

// NewExactLRU creates a deduplication cache holding up to capacity keys for
// the given window.
func NewExactLRU(capacity int, window time.Duration) *ExactLRU {
	return &ExactLRU{
		lru: NewLRUCache(capacity, window),
	}
}

// IsDuplicate reports whether the key was seen within the window, recording
// it when new.
func (el *ExactLRU) IsDuplicate(key string) bool {
	el.mu.Lock()
	el.checks++
	el.mu.Unlock()

	isDup := el.lru.IsDuplicate(key)
	if isDup {
		el.mu.Lock()
		el.duplicates++
		el.mu.Unlock()
	}
	return isDup
}

// Contains checks for the key without recording it. Use with Record when the
// caller needs to confirm against a durable store before committing.
func (el *ExactLRU) Contains(key string) bool {
	return el.lru.Contains(key)
}

// Record marks the key as seen.
func (el *ExactLRU) Record(key string) {
	el.lru.Add(key, time.Now())
}

// Remove forgets the key. Callers use it to roll back a Record when the
// durable write behind it failed.
func (el *ExactLRU) Remove(key string) {
	el.lru.Remove(key)
}

// CleanupExpired removes expired entries.
func (el *ExactLRU) CleanupExpired() int {
	return el.lru.CleanupExpired()
}

// Clear resets the cache and its counters.
func (el *ExactLRU) Clear() {
	el.lru.Clear()

	el.mu.Lock()
	el.checks = 0
	el.duplicates = 0
	el.mu.Unlock()
}

// Len returns the number of tracked keys.
func (el *ExactLRU) Len() int {
	return el.lru.Len()
}

// Stats returns duplicate-check counters and the current size.
func (el *ExactLRU) Stats() (checks, duplicates int64, size int) {
	el.mu.RLock()
	defer el.mu.RUnlock()

	return el.checks, el.duplicates, el.lru.Len()
}
