// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/huntboard/huntboard/internal/metrics"
)

// metricType is the cache_type label reported for the feed cache.
const metricType = "feed"

// Scope describes what a cached feed page depends on. The cache maintains
// reverse indexes over it so that catalog and profile changes can evict
// exactly the affected entries instead of flushing everything.
type Scope struct {
	// Strategy selects the TTL class (trending and new churn fastest,
	// similar and category are the most stable).
	Strategy string

	// Identity is the user ID or anonymous fingerprint the page was
	// personalized for. Empty for identity-independent pages.
	Identity string

	// ProductIDs lists every product that appears in the cached page.
	ProductIDs []string
}

// Entry is a cached feed page with its expiration and invalidation scope.
type Entry struct {
	Data      interface{}
	ExpiresAt time.Time
	Scope     Scope
}

// Config controls cache sizing and expiry. Zero fields fall back to the
// defaults used in production.
type Config struct {
	// DefaultTTL applies to strategies without a dedicated class.
	DefaultTTL time.Duration

	// TrendingTTL applies to trending and new, which move with every
	// upvote wave.
	TrendingTTL time.Duration

	// SimilarTTL applies to similar and category, which only change when
	// the catalog does.
	SimilarTTL time.Duration

	// CleanupInterval is how often the janitor sweeps expired entries.
	CleanupInterval time.Duration

	// MaxEntries bounds the cache. At capacity the entry closest to
	// expiry is dropped to make room.
	MaxEntries int
}

func (c Config) withDefaults() Config {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 300 * time.Second
	}
	if c.TrendingTTL <= 0 {
		c.TrendingTTL = 120 * time.Second
	}
	if c.SimilarTTL <= 0 {
		c.SimilarTTL = 600 * time.Second
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 10000
	}
	return c
}

// Cache is the thread-safe in-memory store for assembled feed pages.
//
// Keys are fingerprints of the full query shape (see GenerateKey), values are
// whatever page representation the caller assembled. Entries expire by
// strategy class and can be evicted early through InvalidateProduct and
// InvalidateIdentity, which the event handlers call when the catalog or a
// profile changes.
//
// A cached page is a hint, not an authority: readers still run a liveness
// filter over the products it names, so a stale entry can go thin but never
// resurrect a delisted product.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	byProduct  map[string]map[string]struct{}
	byIdentity map[string]map[string]struct{}
	cfg        Config
	stats      Stats
}

// Stats tracks cache performance counters.
type Stats struct {
	mu          sync.RWMutex
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// New creates a feed cache. The janitor does not start here; run Serve under
// the supervisor (or skip it in tests, expiry is also checked on read).
func New(cfg Config) *Cache {
	return &Cache{
		entries:    make(map[string]Entry),
		byProduct:  make(map[string]map[string]struct{}),
		byIdentity: make(map[string]map[string]struct{}),
		cfg:        cfg.withDefaults(),
		stats: Stats{
			LastCleanup: time.Now(),
		},
	}
}

// TTLFor returns the expiry class for a strategy.
func (c *Cache) TTLFor(strategy string) time.Duration {
	switch strategy {
	case "trending", "new":
		return c.cfg.TrendingTTL
	case "similar", "category":
		return c.cfg.SimilarTTL
	default:
		return c.cfg.DefaultTTL
	}
}

// Get retrieves a cached page. Expired entries are removed on read and
// counted as misses.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		c.removeLocked(key)
		c.mu.Unlock()
		c.recordMiss()
		c.recordEvictions(1)
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Put stores a page under the TTL class of its scope's strategy and indexes
// it for invalidation. At capacity the entry closest to expiry is evicted
// first.
func (c *Cache) Put(key string, value interface{}, scope Scope) {
	ttl := c.TTLFor(scope.Strategy)

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		if evicted := c.evictSoonestLocked(); evicted {
			// Stats use their own mutex, safe to record under c.mu.
			c.recordEvictions(1)
		}
	}

	if old, exists := c.entries[key]; exists {
		c.unindexLocked(key, old.Scope)
	}

	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
		Scope:     scope,
	}
	c.indexLocked(key, scope)
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.setTotal(total)
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	c.removeLocked(key)
	total := int64(len(c.entries))
	c.mu.Unlock()

	if existed {
		c.recordEvictions(1)
	}
	c.setTotal(total)
}

// InvalidateProduct drops every cached page that contains the product.
// Called when a product is published, delisted, or edited. Returns the
// number of entries removed.
func (c *Cache) InvalidateProduct(productID string) int {
	return c.invalidateIndexed(c.byProduct, productID)
}

// InvalidateIdentity drops every cached page personalized for the identity.
// Called when a profile is rebuilt or the identity records a significant
// interaction. Returns the number of entries removed.
func (c *Cache) InvalidateIdentity(identity string) int {
	return c.invalidateIndexed(c.byIdentity, identity)
}

func (c *Cache) invalidateIndexed(index map[string]map[string]struct{}, id string) int {
	c.mu.Lock()
	keys := index[id]
	removed := 0
	for key := range keys {
		if _, exists := c.entries[key]; exists {
			c.removeLocked(key)
			removed++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	if removed > 0 {
		c.recordEvictions(int64(removed))
	}
	c.setTotal(total)
	return removed
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	evictions := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.byProduct = make(map[string]map[string]struct{})
	c.byIdentity = make(map[string]map[string]struct{})
	c.mu.Unlock()

	c.recordEvictions(evictions)
	c.setTotal(0)
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns a snapshot of the cache counters.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:        c.stats.Hits,
		Misses:      c.stats.Misses,
		Evictions:   c.stats.Evictions,
		TotalKeys:   c.stats.TotalKeys,
		LastCleanup: c.stats.LastCleanup,
	}
}

// HitRate returns the hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Serve implements suture.Service. It sweeps expired entries on the cleanup
// interval until the context is cancelled.
func (c *Cache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *Cache) String() string {
	return "cache-janitor"
}

// cleanup removes all expired entries.
func (c *Cache) cleanup() {
	now := time.Now()
	c.mu.Lock()
	evictions := int64(0)
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			c.removeLocked(key)
			evictions++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.recordEvictions(evictions)

	c.stats.mu.Lock()
	c.stats.TotalKeys = total
	c.stats.LastCleanup = now
	c.stats.mu.Unlock()
	metrics.CacheSize.WithLabelValues(metricType).Set(float64(total))
}

// Locked helpers. Callers must hold c.mu.

func (c *Cache) indexLocked(key string, scope Scope) {
	for _, pid := range scope.ProductIDs {
		set, ok := c.byProduct[pid]
		if !ok {
			set = make(map[string]struct{})
			c.byProduct[pid] = set
		}
		set[key] = struct{}{}
	}
	if scope.Identity != "" {
		set, ok := c.byIdentity[scope.Identity]
		if !ok {
			set = make(map[string]struct{})
			c.byIdentity[scope.Identity] = set
		}
		set[key] = struct{}{}
	}
}

func (c *Cache) unindexLocked(key string, scope Scope) {
	for _, pid := range scope.ProductIDs {
		if set, ok := c.byProduct[pid]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.byProduct, pid)
			}
		}
	}
	if scope.Identity != "" {
		if set, ok := c.byIdentity[scope.Identity]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.byIdentity, scope.Identity)
			}
		}
	}
}

func (c *Cache) removeLocked(key string) {
	entry, exists := c.entries[key]
	if !exists {
		return
	}
	c.unindexLocked(key, entry.Scope)
	delete(c.entries, key)
}

// evictSoonestLocked removes the entry closest to its natural expiry. Linear
// scan; only runs when the cache is at capacity.
func (c *Cache) evictSoonestLocked() bool {
	var (
		victim  string
		soonest time.Time
		found   bool
	)
	for key, entry := range c.entries {
		if !found || entry.ExpiresAt.Before(soonest) {
			victim = key
			soonest = entry.ExpiresAt
			found = true
		}
	}
	if !found {
		return false
	}
	c.removeLocked(victim)
	return true
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	metrics.CacheHits.WithLabelValues(metricType).Inc()
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
	metrics.CacheMisses.WithLabelValues(metricType).Inc()
}

func (c *Cache) recordEvictions(n int64) {
	if n == 0 {
		return
	}
	c.stats.mu.Lock()
	c.stats.Evictions += n
	c.stats.mu.Unlock()
	metrics.CacheEvictions.WithLabelValues(metricType).Add(float64(n))
}

func (c *Cache) setTotal(total int64) {
	c.stats.mu.Lock()
	c.stats.TotalKeys = total
	c.stats.mu.Unlock()
	metrics.CacheSize.WithLabelValues(metricType).Set(float64(total))
}

// GenerateKey builds a cache key from a namespace and the query parameters.
// Parameters are serialized to JSON and hashed, so any struct with stable
// field order produces a stable key.
func GenerateKey(namespace string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Fallback to a readable key; collisions are acceptable here
		// because the cache is advisory.
		return fmt.Sprintf("%s:%v", namespace, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", namespace, hash[:16])
}
