// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package profile materializes per-identity taste profiles from the
// interaction log: time-decayed affinity weights over categories and tags,
// explicit preference overrides, and feed settings. Profiles persist in
// BadgerDB under the profile: namespace and are rebuilt lazily within a
// small time budget, with a supervised background refresher picking up
// whatever the foreground path could not finish.
package profile

import (
	"time"

	"github.com/huntboard/huntboard/internal/interaction"
)

// Settings bound how the blender personalizes an identity's feed.
type Settings struct {
	// PersonalizationEnabled turns affinity-driven generators on or off.
	// Disabled means the feed behaves as for an anonymous visitor.
	PersonalizationEnabled bool `json:"personalizationEnabled"`

	// DiversificationWeight scales the blender's diversity caps, 0 to 2.
	// Zero disables diversification, two doubles its pressure.
	DiversificationWeight float64 `json:"diversificationWeight"`

	// MaxRecommendations caps the feed page size, 5 to 50.
	MaxRecommendations int `json:"maxRecommendations"`
}

// Setting bounds enforced on preference writes.
const (
	MinDiversification = 0.0
	MaxDiversification = 2.0
	MinFeedSize        = 5
	MaxFeedSize        = 50
)

// DefaultSettings returns the settings a fresh profile starts with.
func DefaultSettings() Settings {
	return Settings{
		PersonalizationEnabled: true,
		DiversificationWeight:  1.0,
		MaxRecommendations:     20,
	}
}

// Profile is one identity's materialized taste. Categories and Tags hold
// affinity weights: each key's share of the identity's decayed engagement
// mass, multiplied by any explicit override. Weights are comparable across
// identities because of the normalization; they are not probabilities.
type Profile struct {
	Identity string `json:"identity"`

	// Categories maps category ID to affinity weight, largest first when
	// ranked. Covers both leaf categories and their parents.
	Categories map[string]float64 `json:"categories,omitempty"`

	// Tags maps normalized tag to affinity weight.
	Tags map[string]float64 `json:"tags,omitempty"`

	// CategoryOverrides and TagOverrides are explicit multipliers set
	// through the preferences API. Absent keys multiply by 1.
	CategoryOverrides map[string]float64 `json:"categoryOverrides,omitempty"`
	TagOverrides      map[string]float64 `json:"tagOverrides,omitempty"`

	// DisabledStrategies lists strategies the identity opted out of.
	DisabledStrategies []string `json:"disabledStrategies,omitempty"`

	Settings Settings `json:"settings"`

	// LastRebuilt is when the affinities were last derived from the log.
	// Zero means the affinities have never been built.
	LastRebuilt time.Time `json:"lastRebuilt,omitempty"`
}

// New returns an empty-affinity profile with default settings. Generators
// treat an empty profile as "no signal" and fall back to non-personalized
// behavior.
func New(identity string) *Profile {
	return &Profile{
		Identity: identity,
		Settings: DefaultSettings(),
	}
}

// Empty reports whether the profile carries no affinity signal.
func (p *Profile) Empty() bool {
	return len(p.Categories) == 0 && len(p.Tags) == 0
}

// Fresh reports whether the affinities are recent enough to serve without
// a rebuild.
func (p *Profile) Fresh(now time.Time, freshFor time.Duration) bool {
	if p.LastRebuilt.IsZero() {
		return false
	}
	return now.Sub(p.LastRebuilt) < freshFor
}

// CategoryAffinity returns the weight for a category, zero when the
// identity has shown no interest in it.
func (p *Profile) CategoryAffinity(categoryID string) float64 {
	return p.Categories[categoryID]
}

// TagAffinity returns the weight for a normalized tag.
func (p *Profile) TagAffinity(tag string) float64 {
	return p.Tags[tag]
}

// StrategyDisabled reports whether the identity opted out of a strategy.
func (p *Profile) StrategyDisabled(s interaction.Strategy) bool {
	for _, name := range p.DisabledStrategies {
		if name == string(s) {
			return true
		}
	}
	return false
}

// Personalized reports whether affinity-driven generators should run for
// this profile at all.
func (p *Profile) Personalized() bool {
	return p.Settings.PersonalizationEnabled && !p.Empty()
}

// Clone returns a deep copy. The store hands out clones so callers can
// never mutate a cached profile in place.
func (p *Profile) Clone() *Profile {
	out := *p
	out.Categories = cloneWeights(p.Categories)
	out.Tags = cloneWeights(p.Tags)
	out.CategoryOverrides = cloneWeights(p.CategoryOverrides)
	out.TagOverrides = cloneWeights(p.TagOverrides)
	if p.DisabledStrategies != nil {
		out.DisabledStrategies = append([]string(nil), p.DisabledStrategies...)
	}
	return &out
}

func cloneWeights(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
