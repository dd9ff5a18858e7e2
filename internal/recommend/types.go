// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package recommend

import (
	"context"
	"sort"
	"time"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/database"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/profile"
)

// Components breaks a candidate's score into its contributing factors.
// The semantics of each slot depend on the generator: relevance is the
// strategy's core match signal, recency the time factor it applied, and
// popularity the engagement factor. The dominant one names the explanation.
type Components struct {
	Relevance  float64 `json:"relevance"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
}

// Candidate is one product proposed for a feed, with score and provenance.
// Candidates are ephemeral: they hold a weak reference (ID plus slug) to a
// catalog product together with the display fields a feed needs.
type Candidate struct {
	ProductID  string   `json:"productId"`
	Slug       string   `json:"slug"`
	Name       string   `json:"name,omitempty"`
	Tagline    string   `json:"tagline,omitempty"`
	CategoryID string   `json:"categoryId,omitempty"`
	MakerID    string   `json:"makerId,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	// Score is the ranking value. Within one generator's output scores are
	// comparable; the blender normalizes before mixing sources.
	Score       float64    `json:"score"`
	Components  Components `json:"components"`
	Explanation string     `json:"explanation,omitempty"`

	// Strategy is the generator the candidate originated from. After
	// blending it names the dominant source.
	Strategy interaction.Strategy `json:"strategy"`

	// Sources holds the per-strategy contribution breakdown after blending.
	Sources map[string]float64 `json:"sources,omitempty"`

	Upvotes       int       `json:"upvotes,omitempty"`
	TrendingScore float64   `json:"trendingScore,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// FromProduct seeds a candidate with a product's display fields.
func FromProduct(p *catalog.Product) Candidate {
	return Candidate{
		ProductID:     p.ID,
		Slug:          p.Slug,
		Name:          p.Name,
		Tagline:       p.Tagline,
		CategoryID:    p.CategoryID,
		MakerID:       p.MakerID,
		Tags:          p.Tags,
		Upvotes:       p.Upvotes,
		TrendingScore: p.TrendingScore,
		CreatedAt:     p.CreatedAt,
	}
}

// Query carries the parameters a generator needs. The engine resolves the
// profile and exclude-set before fanning out, so generators never reach back
// into the profile store themselves.
type Query struct {
	// Identity is the interaction-log identity (user ID or anonymous client
	// fingerprint). Empty for unidentified requests.
	Identity string

	// UserID is set only for authenticated users. It doubles as the maker
	// ID when excluding a user's own products.
	UserID string

	// Profile is the resolved profile for Identity, nil when anonymous.
	Profile *profile.Profile

	CategoryID string
	MakerID    string
	Tags       []string

	// SeedID is the reference product for similar-to queries.
	SeedID string

	// Window overrides the trending window when positive.
	Window time.Duration

	// Exclude lists product IDs that must not be emitted.
	Exclude map[string]struct{}

	// Now anchors all recency math so a query is deterministic end to end.
	Now time.Time
}

// Excluded reports whether the product is in the query's exclude-set.
func (q *Query) Excluded(id string) bool {
	_, ok := q.Exclude[id]
	return ok
}

// SortBy selects the serving order of a feed page.
type SortBy string

const (
	SortScore    SortBy = "score"
	SortCreated  SortBy = "created"
	SortUpvotes  SortBy = "upvotes"
	SortTrending SortBy = "trending"
)

// ParseSortBy normalizes a client-supplied sort parameter. Empty selects
// score order; anything else outside the enum is a validation error.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case "":
		return SortScore, nil
	case SortScore, SortCreated, SortUpvotes, SortTrending:
		return SortBy(s), nil
	default:
		return "", apperr.Newf(apperr.KindValidation, "unknown sortBy %q", s)
	}
}

// SortCandidates orders items in place for serving. Every order ends with a
// product-ID tiebreak so identical inputs always serve identical pages.
func SortCandidates(items []Candidate, by SortBy) {
	less := func(a, b *Candidate) bool {
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Upvotes != b.Upvotes {
			return a.Upvotes > b.Upvotes
		}
		return a.ProductID < b.ProductID
	}
	switch by {
	case SortCreated:
		less = func(a, b *Candidate) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			if a.Upvotes != b.Upvotes {
				return a.Upvotes > b.Upvotes
			}
			return a.ProductID < b.ProductID
		}
	case SortUpvotes:
		less = func(a, b *Candidate) bool {
			if a.Upvotes != b.Upvotes {
				return a.Upvotes > b.Upvotes
			}
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.ProductID < b.ProductID
		}
	case SortTrending:
		less = func(a, b *Candidate) bool {
			if a.TrendingScore != b.TrendingScore {
				return a.TrendingScore > b.TrendingScore
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ProductID < b.ProductID
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return less(&items[i], &items[j]) })
}

// Page bounds one feed window.
type Page struct {
	Limit  int
	Offset int
	Sort   SortBy
}

const (
	// DefaultLimit is the page size when the client names none.
	DefaultLimit = 20
	// MaxLimit caps the page size.
	MaxLimit = 50
)

// Normalize clamps the page to serveable bounds and defaults the sort.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Sort == "" {
		p.Sort = SortScore
	}
	return p
}

// Personalization states reported in feed metadata.
const (
	// PersonalizationFull means the feed used a built profile.
	PersonalizationFull = "full"
	// PersonalizationNone means the request was anonymous or the profile
	// carries no affinities yet.
	PersonalizationNone = "none"
	// PersonalizationDegraded means the profile build failed and an
	// empty-affinity fallback served instead.
	PersonalizationDegraded = "degraded"
)

// Feed is one served window of candidates plus generation metadata.
type Feed struct {
	Items []Candidate `json:"items"`

	// Total estimates the candidate count before truncation, for
	// pagination.
	Total int `json:"total"`

	// Strategy names the generator or blend policy that produced the feed.
	Strategy string `json:"strategy"`

	// Partial is set when at least one component generator failed or timed
	// out and the feed was assembled from the rest.
	Partial            bool     `json:"partial,omitempty"`
	DegradedStrategies []string `json:"degradedStrategies,omitempty"`

	// Personalization reports how much of the user's profile shaped the
	// feed. Empty for strategies that never personalize.
	Personalization string `json:"personalization,omitempty"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// Generator produces scored candidates for one strategy. Implementations
// must emit only published products, honor the query's exclude-set, and be
// deterministic given identical inputs.
type Generator interface {
	// Name identifies the generator in logs and metrics.
	Name() string

	// Strategy is the provenance tag stamped on emitted candidates.
	Strategy() interaction.Strategy

	// Generate returns up to limit candidates, best first.
	Generate(ctx context.Context, q Query, limit int) ([]Candidate, error)
}

// Log is the slice of the interaction log the engine and generators read.
// *database.DB satisfies it.
type Log interface {
	ProductEngagement(ctx context.Context, since time.Time) (map[string]database.Engagement, error)
	RecentProductIDs(ctx context.Context, identity string, kinds []interaction.Kind, limit int) ([]string, error)
	CoEngagement(ctx context.Context, identity string, since time.Time, perItemCap int) ([]database.CoEngagementRow, error)
	InteractedProductIDs(ctx context.Context, identity string, since time.Time) ([]string, error)
	DismissedProductIDs(ctx context.Context, identity string, since time.Time) ([]string, error)
}

// ProfileSource resolves profiles for personalized queries. The second
// return reports a degraded build (fallback profile served after a failure).
// *profile.Service satisfies it.
type ProfileSource interface {
	Profile(ctx context.Context, identity string) (*profile.Profile, bool, error)
}
