// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package cache

import (
	"sync"
	"time"
)

// LFUEntry represents an entry in the LFU cache.
type LFUEntry struct {
	key       string
	value     interface{}
	freq      int       // Access frequency
	expiresAt time.Time // TTL expiration time
	prev      *LFUEntry // Previous entry in frequency list
	next      *LFUEntry // Next entry in frequency list
}

// freqList is a doubly-linked list of entries with the same frequency.
type freqList struct {
	head *LFUEntry // Sentinel head (most recently used at this frequency)
	tail *LFUEntry // Sentinel tail (least recently used at this frequency)
	size int       // Number of entries in this list
}

func newFreqList() *freqList {
	fl := &freqList{
		head: &LFUEntry{},
		tail: &LFUEntry{},
	}
	fl.head.next = fl.tail
	fl.tail.prev = fl.head
	return fl
}

func (fl *freqList) addToFront(entry *LFUEntry) {
	entry.prev = fl.head
	entry.next = fl.head.next
	fl.head.next.prev = entry
	fl.head.next = entry
	fl.size++
}

func (fl *freqList) remove(entry *LFUEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	entry.prev = nil
	entry.next = nil
	fl.size--
}

// removeLast removes and returns the least recently used entry at this frequency.
func (fl *freqList) removeLast() *LFUEntry {
	if fl.size == 0 {
		return nil
	}
	entry := fl.tail.prev
	fl.remove(entry)
	return entry
}

func (fl *freqList) isEmpty() bool {
	return fl.size == 0
}

// LFUCache is a thread-safe least-frequently-used cache with O(1) operations
// and TTL support.
//
// Profile reads are heavily skewed: a small share of identities produces most
// of the feed traffic, and each feed query reads the requesting identity's
// profile. Frequency-based eviction keeps exactly those hot profiles resident
// in front of the durable store, where recency-based eviction would churn
// them out during bursts of one-off visitors.
//
// The implementation combines a key map for O(1) lookup with per-frequency
// doubly-linked lists and a tracked minimum frequency for O(1) eviction.
type LFUCache struct {
	mu sync.RWMutex

	// capacity is the maximum number of entries
	capacity int

	// ttl is the default time-to-live for entries
	ttl time.Duration

	// keyMap maps keys to entries for O(1) lookup
	keyMap map[string]*LFUEntry

	// freqMap maps frequencies to doubly-linked lists of entries
	freqMap map[int]*freqList

	// minFreq tracks the minimum frequency for O(1) eviction
	minFreq int

	// stats for monitoring
	hits   int64
	misses int64
}

// NewLFUCache creates a new LFU cache with the specified capacity and TTL.
func NewLFUCache(capacity int, ttl time.Duration) *LFUCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &LFUCache{
		capacity: capacity,
		ttl:      ttl,
		keyMap:   make(map[string]*LFUEntry, capacity),
		freqMap:  make(map[int]*freqList),
		minFreq:  0,
	}
}

// Get retrieves an entry, incrementing its frequency when found. Returns the
// value and true if found and not expired.
func (c *LFUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.keyMap[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return nil, false
	}

	c.incrementFreq(entry)
	c.hits++

	return entry.value, true
}

// Set adds or updates an entry with the default TTL. At capacity the least
// frequently used entry is evicted.
func (c *LFUCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL adds or updates an entry with a custom TTL.
func (c *LFUCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiresAt := now.Add(ttl)

	if entry, exists := c.keyMap[key]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		c.incrementFreq(entry)
		return
	}

	if len(c.keyMap) >= c.capacity {
		c.evict()
	}

	entry := &LFUEntry{
		key:       key,
		value:     value,
		freq:      1,
		expiresAt: expiresAt,
	}

	if c.freqMap[1] == nil {
		c.freqMap[1] = newFreqList()
	}
	c.freqMap[1].addToFront(entry)

	c.keyMap[key] = entry

	c.minFreq = 1
}

// Delete removes an entry. Returns true if it was present.
func (c *LFUCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.keyMap[key]; exists {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Contains checks if a key exists without modifying frequency.
func (c *LFUCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.keyMap[key]; exists {
		return !time.Now().After(entry.expiresAt)
	}
	return false
}

// Len returns the current number of entries.
func (c *LFUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keyMap)
}

// Clear removes all entries.
func (c *LFUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keyMap = make(map[string]*LFUEntry, c.capacity)
	c.freqMap = make(map[int]*freqList)
	c.minFreq = 0
}

// Stats returns hit/miss counters and the current size.
func (c *LFUCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.keyMap)
}

// HitRate returns the hit rate as a percentage.
func (c *LFUCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0.0
	}
	return float64(c.hits) / float64(total) * 100.0
}

// GetFrequency returns the access frequency for a key, or 0 if absent.
func (c *LFUCache) GetFrequency(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.keyMap[key]; exists {
		return entry.freq
	}
	return 0
}

// CleanupExpired removes all expired entries and returns how many.
func (c *LFUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for key, entry := range c.keyMap {
		if now.After(entry.expiresAt) {
			c.removeEntryUnlocked(key, entry)
			removed++
		}
	}

	return removed
}

// Internal methods (must be called with lock held)

// incrementFreq moves an entry to the next frequency level.
func (c *LFUCache) incrementFreq(entry *LFUEntry) {
	oldFreq := entry.freq

	if fl, exists := c.freqMap[oldFreq]; exists {
		fl.remove(entry)

		if fl.isEmpty() && c.minFreq == oldFreq {
			c.minFreq++
		}
	}

	entry.freq++
	newFreq := entry.freq

	if c.freqMap[newFreq] == nil {
		c.freqMap[newFreq] = newFreqList()
	}
	c.freqMap[newFreq].addToFront(entry)
}

// evict removes the least frequently used entry.
func (c *LFUCache) evict() {
	fl := c.freqMap[c.minFreq]
	if fl == nil || fl.isEmpty() {
		return
	}

	entry := fl.removeLast()
	if entry != nil {
		delete(c.keyMap, entry.key)
	}
}

func (c *LFUCache) removeEntry(entry *LFUEntry) {
	c.removeEntryUnlocked(entry.key, entry)
}

func (c *LFUCache) removeEntryUnlocked(key string, entry *LFUEntry) {
	if fl, exists := c.freqMap[entry.freq]; exists {
		fl.remove(entry)
	}

	delete(c.keyMap, key)
}

// LFUCacheGeneric is a type-safe wrapper around LFUCache. The profile store
// uses it to keep hot profiles resident without type assertions at call
// sites.
type LFUCacheGeneric[V any] struct {
	cache *LFUCache
}

// NewLFUCacheGeneric creates a new type-safe LFU cache.
func NewLFUCacheGeneric[V any](capacity int, ttl time.Duration) *LFUCacheGeneric[V] {
	return &LFUCacheGeneric[V]{
		cache: NewLFUCache(capacity, ttl),
	}
}

// Get retrieves a value from the cache.
func (c *LFUCacheGeneric[V]) Get(key string) (V, bool) {
	var zero V
	value, found := c.cache.Get(key)
	if !found {
		return zero, false
	}
	typed, ok := value.(V)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Set stores a value in the cache.
func (c *LFUCacheGeneric[V]) Set(key string, value V) {
	c.cache.Set(key, value)
}

// SetWithTTL stores a value with a custom TTL.
func (c *LFUCacheGeneric[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.cache.SetWithTTL(key, value, ttl)
}

// Delete removes a value from the cache.
func (c *LFUCacheGeneric[V]) Delete(key string) bool {
	return c.cache.Delete(key)
}

// Contains checks if a key exists.
func (c *LFUCacheGeneric[V]) Contains(key string) bool {
	return c.cache.Contains(key)
}

// Len returns the number of entries.
func (c *LFUCacheGeneric[V]) Len() int {
	return c.cache.Len()
}

// Clear removes all entries.
func (c *LFUCacheGeneric[V]) Clear() {
	c.cache.Clear()
}

// Stats returns cache statistics.
func (c *LFUCacheGeneric[V]) Stats() (hits, misses int64, size int) {
	return c.cache.Stats()
}

// HitRate returns the hit rate percentage.
func (c *LFUCacheGeneric[V]) HitRate() float64 {
	return c.cache.HitRate()
}
