// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/huntboard/huntboard/internal/apperr"
)

// MemoryStore is an in-process catalog snapshot. Reads return copies, so
// callers can never mutate shared state. It is the backing store in
// single-node deployments and in tests; a remote catalog service would
// implement Store the same way.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[string]*Product
	categories map[string]*Category
	children   map[string][]string // top-level category -> leaf IDs
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]*Product),
		categories: make(map[string]*Category),
		children:   make(map[string][]string),
	}
}

// Replace swaps the entire snapshot atomically.
func (s *MemoryStore) Replace(products []Product, categories []Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]*Product, len(products))
	s.categories = make(map[string]*Category, len(categories))
	s.children = make(map[string][]string)

	for i := range categories {
		c := categories[i]
		s.categories[c.ID] = &c
		if c.ParentID != "" {
			s.children[c.ParentID] = append(s.children[c.ParentID], c.ID)
		}
	}
	for i := range products {
		p := products[i]
		normalizeProduct(&p)
		s.products[p.ID] = &p
	}
}

// Upsert inserts or replaces one product.
func (s *MemoryStore) Upsert(p Product) {
	normalizeProduct(&p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

// SetStatus updates a product's lifecycle state. Returns a NotFound error
// for unknown IDs.
func (s *MemoryStore) SetStatus(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "product %s not found", id)
	}
	updated := p.Clone()
	updated.Status = status
	updated.UpdatedAt = time.Now()
	s.products[id] = updated
	return nil
}

// Product implements Store.
func (s *MemoryStore) Product(_ context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "product %s not found", id)
	}
	return p.Clone(), nil
}

// Products implements Store.
func (s *MemoryStore) Products(_ context.Context, ids []string) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categoryMatch := s.categoryMatcherLocked(f.CategoryID)
	tag := NormalizeTag(f.Tag)

	out := make([]*Product, 0, len(s.products))
	for _, p := range s.products {
		if !matchStatus(p, f.Status) {
			continue
		}
		if !categoryMatch(p.CategoryID) {
			continue
		}
		if f.MakerID != "" && p.MakerID != f.MakerID {
			continue
		}
		if tag != "" && !hasTag(p, tag) {
			continue
		}
		if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, p.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Category implements Store.
func (s *MemoryStore) Category(_ context.Context, id string) (*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "category %s not found", id)
	}
	out := *c
	return &out, nil
}

// Categories implements Store.
func (s *MemoryStore) Categories(_ context.Context) ([]*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Category, 0, len(s.categories))
	for _, c := range s.categories {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ParentOf returns the parent ID of a leaf category, or "" for top-level or
// unknown categories.
func (s *MemoryStore) ParentOf(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.categories[id]; ok {
		return c.ParentID
	}
	return ""
}

// Len returns the number of products in the snapshot.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// categoryMatcherLocked returns a predicate matching the filter category or
// any leaf under it. Caller holds at least a read lock.
func (s *MemoryStore) categoryMatcherLocked(categoryID string) func(string) bool {
	if categoryID == "" {
		return func(string) bool { return true }
	}

	accept := map[string]struct{}{categoryID: {}}
	for _, leaf := range s.children[categoryID] {
		accept[leaf] = struct{}{}
	}
	return func(id string) bool {
		_, ok := accept[id]
		return ok
	}
}

func matchStatus(p *Product, want Status) bool {
	switch want {
	case StatusAny:
		return true
	case "":
		return p.Status == StatusPublished
	default:
		return p.Status == want
	}
}

func hasTag(p *Product, tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// normalizeProduct canonicalizes tags and defaults status so downstream
// comparisons never see mixed case. A missing trending score is derived
// from the aggregate counters so listings keep a stable popularity order.
func normalizeProduct(p *Product) {
	for i, tag := range p.Tags {
		p.Tags[i] = NormalizeTag(tag)
	}
	if p.Status == "" {
		p.Status = StatusPublished
	}
	if p.TrendingScore == 0 {
		p.TrendingScore = 3*float64(p.Upvotes) + 0.1*float64(p.Views) + 2*float64(p.Bookmarks)
	}
}
