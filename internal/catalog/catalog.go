// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package catalog provides the read model of launched products and their
// two-level category tree. The engine treats the catalog as an external
// source of truth: recommendation generators read it through the Store
// interface, and serving paths re-check product liveness against it so a
// cached list never surfaces a delisted product.
package catalog

import (
	"context"
	"strings"
	"time"
)

// Status is the product lifecycle state. Only published products are
// recommendable.
type Status string

const (
	StatusPublished Status = "published"
	StatusPending   Status = "pending"
	StatusDelisted  Status = "delisted"
)

// Product is a launched product as the engine sees it. Engagement counters
// (upvotes, views, bookmarks) are catalog-published totals; windowed counts
// for trending come from the interaction log instead.
type Product struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Tagline      string    `json:"tagline,omitempty"`
	MakerID      string    `json:"makerId"`
	CategoryID   string    `json:"categoryId"` // leaf category
	Tags         []string  `json:"tags,omitempty"`
	Upvotes      int       `json:"upvotes"`
	Views        int       `json:"views"`
	Bookmarks    int       `json:"bookmarks"`
	CommentCount int       `json:"commentCount"`
	// TrendingScore is the catalog's own long-horizon popularity metric,
	// used to order listings and to rank products with no recent log
	// activity.
	TrendingScore float64   `json:"trendingScore,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// Published reports whether the product may be recommended.
func (p *Product) Published() bool {
	return p.Status == StatusPublished
}

// TagSet returns the product's normalized tags as a set.
func (p *Product) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Tags))
	for _, tag := range p.Tags {
		set[NormalizeTag(tag)] = struct{}{}
	}
	return set
}

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	out := *p
	if p.Tags != nil {
		out.Tags = make([]string, len(p.Tags))
		copy(out.Tags, p.Tags)
	}
	return &out
}

// Category is a node in the two-level tree. Top-level categories have an
// empty ParentID; leaf categories name their parent.
type Category struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// Leaf reports whether the category is a leaf (products attach to leaves).
func (c *Category) Leaf() bool {
	return c.ParentID != ""
}

// Filter narrows a List call. Zero fields match everything; Status defaults
// to published.
type Filter struct {
	// CategoryID matches the product's leaf category, or any leaf under it
	// when it names a top-level category.
	CategoryID string

	// MakerID matches the product's maker.
	MakerID string

	// Tag matches products carrying the normalized tag.
	Tag string

	// Since keeps products created at or after the instant.
	Since time.Time

	// Status overrides the published-only default. StatusAny disables the
	// status check entirely.
	Status Status
}

// StatusAny disables status filtering in a Filter.
const StatusAny Status = "any"

// Store is the catalog read interface used by generators and the blender.
// Implementations must be safe for concurrent use.
type Store interface {
	// Product returns one product by ID. Returns a NotFound error for
	// unknown IDs.
	Product(ctx context.Context, id string) (*Product, error)

	// Products resolves many IDs at once, preserving input order and
	// silently skipping unknown IDs.
	Products(ctx context.Context, ids []string) ([]*Product, error)

	// List returns products matching the filter in (createdAt desc, id)
	// order.
	List(ctx context.Context, f Filter) ([]*Product, error)

	// Category returns one category by ID. Returns a NotFound error for
	// unknown IDs.
	Category(ctx context.Context, id string) (*Category, error)

	// Categories returns the full tree.
	Categories(ctx context.Context) ([]*Category, error)
}

// NormalizeTag canonicalizes a tag for comparison and affinity keys.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
