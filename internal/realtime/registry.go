// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package realtime

import (
	"sync"

	"github.com/huntboard/huntboard/internal/metrics"
)

// Registry refcounts product subscriptions across all live clients.
// Watched answers "does anyone care about this product" so the hub can
// drop fan-out work early. All counts mutate under one mutex; a batch
// Add or Release is atomic with respect to readers.
type Registry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{counts: make(map[string]int)}
}

// Add increments the watcher count of each product.
func (r *Registry) Add(productIDs []string) {
	if len(productIDs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range productIDs {
		r.counts[id]++
	}
	metrics.WSSubscriptions.Add(float64(len(productIDs)))
}

// Release decrements the watcher count of each product, dropping entries
// that reach zero. Products not present are ignored, so releasing a
// client's drained subscription list is always safe.
func (r *Registry) Release(productIDs []string) {
	if len(productIDs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	released := 0
	for _, id := range productIDs {
		n, ok := r.counts[id]
		if !ok {
			continue
		}
		released++
		if n <= 1 {
			delete(r.counts, id)
		} else {
			r.counts[id] = n - 1
		}
	}
	metrics.WSSubscriptions.Sub(float64(released))
}

// Watched reports whether at least one client subscribes to the product.
func (r *Registry) Watched(productID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[productID] > 0
}

// WatcherCount returns the number of subscriptions on one product.
func (r *Registry) WatcherCount(productID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[productID]
}

// Products returns the number of distinct watched products.
func (r *Registry) Products() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.counts)
}

// Total returns the number of subscriptions across all clients.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}
