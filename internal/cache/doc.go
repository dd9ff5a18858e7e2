// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

/*
Package cache provides the in-memory caching and deduplication structures
used on the hot read and ingest paths.

# Overview

The package contains:

  - Cache: the feed cache. Assembled recommendation pages keyed by a
    fingerprint of the full query shape, with per-strategy TTL classes and
    reverse indexes for targeted invalidation.
  - ExactLRU / LRUCache: exact-match deduplication with a TTL window,
    fronting the durable impression-dedup store and suppressing redelivered
    bus messages.
  - LFUCache / LFUCacheGeneric: frequency-based cache used to keep hot
    profiles resident in front of the profile store.
  - MinHeap: timestamp-ordered heap backing the event dead-letter buffer.
  - SlidingWindowStore / UniqueValueStore: rolling engagement velocity and
    distinct-visitor counters for realtime product subscriptions.

# Feed cache

Keys come from GenerateKey, which hashes the serialized query parameters, so
two requests with the same shape share an entry. Every entry carries a Scope
naming the products it contains and the identity it was personalized for;
InvalidateProduct and InvalidateIdentity use the reverse indexes built from
those scopes to evict exactly the affected pages when the catalog or a
profile changes.

	c := cache.New(cache.Config{})

	key := cache.GenerateKey("feed:standard", req)
	if page, ok := c.Get(key); ok {
	    return page.(*FeedPage), nil
	}

	page := assemble(ctx, req)
	c.Put(key, page, cache.Scope{
	    Strategy:   req.Strategy,
	    Identity:   req.Identity,
	    ProductIDs: page.ProductIDs(),
	})

TTLs are classed by strategy: trending and new expire fastest, similar and
category slowest. A cached page is advisory; readers re-check product
liveness after every cache hit.

# Deduplication

Duplicate verdicts must be exact. A probabilistic filter in front of the
dedup path was considered and rejected: a false positive would convert a
genuine interaction into a spurious conflict response, and at the capacities
involved the exact LRU has the same O(1) cost.

	dedup := cache.NewExactLRU(10000, 30*time.Second)
	if dedup.Contains(key) {
	    return apperr.Conflict("duplicate impression")
	}
	// ... confirm against the durable store, then:
	dedup.Record(key)

All structures are safe for concurrent use.
*/
package cache
