// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package blend merges the outputs of several candidate generators into one
// feed. A blend policy assigns each generator a weight; the merge normalizes
// scores per source, keeps the strongest contribution for duplicates with a
// cross-source boost, interleaves categories and makers under diversity
// caps, and windows the result for pagination.
package blend

import (
	"math"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Policy names a generator mix.
type Policy string

const (
	Standard     Policy = "standard"
	Trending     Policy = "trending"
	Discovery    Policy = "discovery"
	Personalized Policy = "personalized"
)

// ParsePolicy normalizes a client-supplied blend parameter. Empty selects
// the standard policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return Standard, nil
	case Standard, Trending, Discovery, Personalized:
		return Policy(s), nil
	default:
		return "", apperr.Newf(apperr.KindValidation, "unknown blend %q", s)
	}
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case Standard, Trending, Discovery, Personalized:
		return true
	default:
		return false
	}
}

// String returns the policy name for feed metadata.
func (p Policy) String() string { return string(p) }

// Weights returns the generator mix for the policy. Weights sum to 1.0; the
// engine drops failed or disabled sources and the merge renormalizes over
// the rest, which redistributes a missing generator's share to its siblings.
func (p Policy) Weights() map[interaction.Strategy]float64 {
	switch p {
	case Trending:
		return map[interaction.Strategy]float64{
			interaction.StrategyTrending: 1.0,
		}
	case Discovery:
		return map[interaction.Strategy]float64{
			interaction.StrategyNew:           0.4,
			interaction.StrategyCollaborative: 0.3,
			interaction.StrategyTrending:      0.3,
		}
	case Personalized:
		return map[interaction.Strategy]float64{
			interaction.StrategyPersonalized:  0.7,
			interaction.StrategyCollaborative: 0.2,
			interaction.StrategyTrending:      0.1,
		}
	default:
		return map[interaction.Strategy]float64{
			interaction.StrategyPersonalized: 0.5,
			interaction.StrategyTrending:     0.2,
			interaction.StrategyNew:          0.2,
			interaction.StrategyHistory:      0.1,
		}
	}
}

// StrictSources returns the strategies whose candidates always use the
// strictest category cap, regardless of the profile's diversification
// weight. Discovery forces its trending slice strict so exploration is not
// crowded out by one hot category.
func (p Policy) StrictSources() map[interaction.Strategy]bool {
	if p == Discovery {
		return map[interaction.Strategy]bool{interaction.StrategyTrending: true}
	}
	return nil
}

// Blender implements recommend.Blender over the policy table above. It is
// stateless; per-merge tuning arrives in the options.
type Blender struct{}

func New() *Blender { return &Blender{} }

var _ recommend.Blender = (*Blender)(nil)

// Plan resolves a client-supplied policy name into its generator mix.
func (*Blender) Plan(policy string) (recommend.BlendPlan, error) {
	p, err := ParsePolicy(policy)
	if err != nil {
		return recommend.BlendPlan{}, err
	}
	return recommend.BlendPlan{
		Policy:  p.String(),
		Weights: p.Weights(),
		Strict:  p.StrictSources(),
	}, nil
}

// Merge blends the sources into one diversity-capped, windowed feed.
func (*Blender) Merge(sources []recommend.BlendSource, opts recommend.BlendOptions) recommend.BlendResult {
	return Merge(sources, opts)
}

const (
	defaultMaxPerCategory   = 2
	defaultMakerCapFraction = 0.15
	defaultCrossSourceBoost = 0.10
)

func normalized(o recommend.BlendOptions) recommend.BlendOptions {
	if o.Limit <= 0 {
		o.Limit = recommend.DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Sort == "" {
		o.Sort = recommend.SortScore
	}
	if o.MaxPerCategory <= 0 {
		o.MaxPerCategory = defaultMaxPerCategory
	}
	// Zero is a legal diversification weight (strict), so only clamp.
	if o.Diversification < 0 {
		o.Diversification = 0
	}
	if o.Diversification > 2 {
		o.Diversification = 2
	}
	if o.MakerCapFraction <= 0 {
		o.MakerCapFraction = defaultMakerCapFraction
	}
	if o.CrossSourceBoost <= 0 {
		o.CrossSourceBoost = defaultCrossSourceBoost
	}
	return o
}

// Merge blends the sources into one diversity-capped, windowed feed.
//
// Scores are min-max normalized within each source so generators with
// different scales mix fairly, then multiplied by the source's renormalized
// weight. Duplicate products keep the strongest contribution, carry the full
// per-source breakdown, and earn the cross-source boost.
func Merge(sources []recommend.BlendSource, opts recommend.BlendOptions) recommend.BlendResult {
	opts = normalized(opts)

	items := mergeSources(sources, opts)
	recommend.SortCandidates(items, opts.Sort)

	total := len(items)
	seq := sequence(items, opts)

	start := opts.Offset
	if start > len(seq) {
		start = len(seq)
	}
	end := opts.Offset + opts.Limit
	if end > len(seq) {
		end = len(seq)
	}
	return recommend.BlendResult{Items: seq[start:end], Total: total}
}

type mergeSlot struct {
	cand    recommend.Candidate
	best    float64
	sources map[string]float64
}

func mergeSources(sources []recommend.BlendSource, opts recommend.BlendOptions) []recommend.Candidate {
	var totalWeight float64
	for _, src := range sources {
		if src.Weight > 0 && len(src.Candidates) > 0 {
			totalWeight += src.Weight
		}
	}
	if totalWeight == 0 {
		return nil
	}

	slots := make(map[string]*mergeSlot)
	order := make([]string, 0, 64)

	for _, src := range sources {
		if src.Weight <= 0 || len(src.Candidates) == 0 {
			continue
		}
		weight := src.Weight / totalWeight
		lo, hi := scoreRange(src.Candidates)

		for i := range src.Candidates {
			c := src.Candidates[i]
			if _, drop := opts.Exclude[c.ProductID]; drop {
				continue
			}
			contrib := weight * normalize(c.Score, lo, hi)

			slot, seen := slots[c.ProductID]
			if !seen {
				rep := c
				rep.Strategy = src.Strategy
				rep.Sources = nil
				slots[c.ProductID] = &mergeSlot{
					cand:    rep,
					best:    contrib,
					sources: map[string]float64{src.Strategy.String(): contrib},
				}
				order = append(order, c.ProductID)
				continue
			}
			slot.sources[src.Strategy.String()] = contrib
			if contrib > slot.best {
				rep := c
				rep.Strategy = src.Strategy
				rep.Sources = nil
				slot.cand = rep
				slot.best = contrib
			}
		}
	}

	out := make([]recommend.Candidate, 0, len(order))
	for _, id := range order {
		slot := slots[id]
		c := slot.cand
		c.Score = slot.best
		c.Sources = slot.sources
		if len(slot.sources) > 1 {
			c.Score *= 1 + opts.CrossSourceBoost
		}
		out = append(out, c)
	}
	return out
}

// scoreRange returns the min and max score of a source's candidates.
func scoreRange(items []recommend.Candidate) (lo, hi float64) {
	lo, hi = items[0].Score, items[0].Score
	for _, c := range items[1:] {
		if c.Score < lo {
			lo = c.Score
		}
		if c.Score > hi {
			hi = c.Score
		}
	}
	return lo, hi
}

// normalize maps a score into [0,1] within its source. A source where every
// candidate scored the same normalizes to 1.0 for all of them.
func normalize(s, lo, hi float64) float64 {
	if hi <= lo {
		return 1.0
	}
	return (s - lo) / (hi - lo)
}

// sequence applies the diversity caps. Capped items are deferred behind the
// next eligible candidate rather than dropped; when nothing remaining is
// eligible the sequence ends early, leaving the rest for later pages.
func sequence(items []recommend.Candidate, opts recommend.BlendOptions) []recommend.Candidate {
	bound := opts.Offset + opts.Limit
	if bound > len(items) {
		bound = len(items)
	}
	if bound <= 0 {
		return nil
	}

	relaxedCap := scaledCategoryCap(opts.MaxPerCategory, opts.Diversification)
	makerCap := pageMakerCap(opts.MakerCapFraction, opts.Limit)

	out := make([]recommend.Candidate, 0, bound)
	var deferred []recommend.Candidate
	next := 0

	window := 0
	makerSeen := make(map[string]int)
	runCategory := ""
	runLength := 0

	eligible := func(c *recommend.Candidate) bool {
		runCap := relaxedCap
		if opts.Strict[c.Strategy] {
			runCap = 1
		}
		if c.CategoryID == runCategory && runLength >= runCap {
			return false
		}
		return makerSeen[c.MakerID] < makerCap
	}
	take := func(c recommend.Candidate) {
		out = append(out, c)
		makerSeen[c.MakerID]++
		if c.CategoryID == runCategory {
			runLength++
		} else {
			runCategory, runLength = c.CategoryID, 1
		}
	}

	for len(out) < bound {
		// Maker budgets reset at each page boundary; that is the point
		// where a deferred maker's cap lifts.
		if w := len(out) / opts.Limit; w != window {
			window = w
			makerSeen = make(map[string]int)
		}

		picked := false
		for i := range deferred {
			if eligible(&deferred[i]) {
				take(deferred[i])
				deferred = append(deferred[:i], deferred[i+1:]...)
				picked = true
				break
			}
		}
		if picked {
			continue
		}
		for next < len(items) {
			c := items[next]
			next++
			if eligible(&c) {
				take(c)
				picked = true
				break
			}
			deferred = append(deferred, c)
		}
		if !picked {
			break
		}
	}
	return out
}

// scaledCategoryCap applies the profile's diversification weight to the
// consecutive-category cap. Zero means strict (runs of one), two doubles
// the configured cap.
func scaledCategoryCap(base int, diversification float64) int {
	n := int(math.Round(float64(base) * diversification))
	if n < 1 {
		n = 1
	}
	return n
}

// pageMakerCap bounds one maker's items within a page of the given size.
func pageMakerCap(fraction float64, limit int) int {
	n := int(math.Ceil(fraction * float64(limit)))
	if n < 1 {
		n = 1
	}
	return n
}

// Policies returns all known policies, for validation messages and CLI
// help.
func Policies() []Policy {
	return []Policy{Standard, Trending, Discovery, Personalized}
}
