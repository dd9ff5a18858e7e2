// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package recommend

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/metrics"
)

// Blender folds per-generator results into one feed window. The blend
// package implements it and is injected at wiring time, which keeps policy
// tables and merge mechanics out of the engine and the import graph acyclic.
type Blender interface {
	// Plan resolves a blend policy name into generator weights. Empty
	// selects the default policy; unknown names are validation errors.
	Plan(policy string) (BlendPlan, error)

	// Merge blends per-generator candidate lists into one window.
	Merge(sources []BlendSource, opts BlendOptions) BlendResult
}

// BlendPlan is a resolved blend policy.
type BlendPlan struct {
	// Policy is the canonical policy name, echoed in feed metadata.
	Policy string

	// Weights assigns each component strategy its share of the feed.
	Weights map[interaction.Strategy]float64

	// Strict marks strategies whose candidates always use the strictest
	// category cap.
	Strict map[interaction.Strategy]bool
}

// BlendSource is one generator's contribution to a blend.
type BlendSource struct {
	Strategy   interaction.Strategy
	Weight     float64
	Candidates []Candidate
}

// BlendOptions tunes one merge.
type BlendOptions struct {
	Limit  int
	Offset int
	Sort   SortBy

	// MaxPerCategory caps consecutive same-category items before
	// diversification scaling.
	MaxPerCategory int

	// Diversification scales the category cap: 0 strict, 1 default,
	// 2 relaxed. Comes from the profile's settings.
	Diversification float64

	// MakerCapFraction bounds one maker's share of a page.
	MakerCapFraction float64

	// CrossSourceBoost multiplies the score of candidates that several
	// generators agree on.
	CrossSourceBoost float64

	// Exclude lists product IDs that must not appear.
	Exclude map[string]struct{}

	// Strict marks source strategies whose items use a cap of one.
	Strict map[interaction.Strategy]bool
}

// BlendResult is a blended feed window.
type BlendResult struct {
	// Items is the [offset, offset+limit) window of the blended sequence.
	Items []Candidate

	// Total counts merged candidates after exclusion, before windowing.
	Total int
}

// Engine fans a query out to the registered generators under the configured
// budgets and blends their output. It is safe for concurrent use.
type Engine struct {
	cfg      config.EngineConfig
	catalog  catalog.Store
	log      Log
	profiles ProfileSource
	blender  Blender

	genMu      sync.RWMutex
	generators map[interaction.Strategy]Generator
}

// NewEngine creates an engine with no generators registered. Budgets fall
// back to serveable defaults when the config leaves them zero.
func NewEngine(cfg config.EngineConfig, cat catalog.Store, log Log, profiles ProfileSource, blender Blender) *Engine {
	if cfg.GeneratorBudget <= 0 {
		cfg.GeneratorBudget = 400 * time.Millisecond
	}
	if cfg.QueryBudget <= 0 {
		cfg.QueryBudget = 1200 * time.Millisecond
	}
	if cfg.Blender.Overfetch < 1 {
		cfg.Blender.Overfetch = 1.5
	}
	return &Engine{
		cfg:        cfg,
		catalog:    cat,
		log:        log,
		profiles:   profiles,
		blender:    blender,
		generators: make(map[interaction.Strategy]Generator),
	}
}

// Register adds a generator. A later registration for the same strategy
// replaces the earlier one.
func (e *Engine) Register(g Generator) {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	e.generators[g.Strategy()] = g
}

func (e *Engine) generator(s interaction.Strategy) (Generator, bool) {
	e.genMu.RLock()
	defer e.genMu.RUnlock()
	g, ok := e.generators[s]
	return g, ok
}

// Feed produces a blended feed under the query budget. Component failures
// degrade the feed instead of failing it; only a blend left with zero
// usable sources is an error, and even that gets one trending attempt
// first.
func (e *Engine) Feed(ctx context.Context, q Query, policy string, page Page) (*Feed, error) {
	plan, err := e.blender.Plan(policy)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if q.Now.IsZero() {
		q.Now = start
	}
	page = page.Normalize()

	qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryBudget)
	defer cancel()

	personalization := e.resolveProfile(qctx, &q)
	e.buildExcludeSet(qctx, &q)
	page = e.capToProfile(q, page)

	runs := e.planRuns(q, plan, page)
	results := e.runGenerators(qctx, q, runs)
	sources, degraded := e.usableSources(qctx, results)

	if len(sources) == 0 {
		rescue, rerr := e.rescueTrending(ctx, q, page)
		if rerr != nil {
			metrics.RecordQuery(plan.Policy, "error", time.Since(start))
			if ferr := firstError(results); ferr != nil {
				return nil, apperr.Wrap(ferr, apperr.KindUnavailable, "all feed components failed")
			}
			return nil, apperr.Wrap(rerr, apperr.KindUnavailable, "all feed components failed")
		}
		sources = rescue
	}

	blended := e.blender.Merge(sources, e.blendOptions(q, page, plan))

	feed := &Feed{
		Items:              blended.Items,
		Total:              blended.Total,
		Strategy:           plan.Policy,
		Partial:            len(degraded) > 0,
		DegradedStrategies: degraded,
		Personalization:    personalization,
		GeneratedAt:        q.Now,
	}
	outcome := "ok"
	if feed.Partial {
		outcome = "partial"
	}
	metrics.RecordQuery(plan.Policy, outcome, time.Since(start))
	return feed, nil
}

// Single serves one strategy's feed directly. Validation and not-found
// errors from the generator surface to the caller; availability failures
// degrade to a trending page flagged partial.
func (e *Engine) Single(ctx context.Context, strategy interaction.Strategy, q Query, page Page) (*Feed, error) {
	gen, ok := e.generator(strategy)
	if !ok {
		return nil, apperr.Newf(apperr.KindInternal, "no generator registered for %s", strategy)
	}
	start := time.Now()
	if q.Now.IsZero() {
		q.Now = start
	}
	page = page.Normalize()

	qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryBudget)
	defer cancel()

	personalization := ""
	if personalizes(strategy) {
		personalization = e.resolveProfile(qctx, &q)
		e.buildExcludeSet(qctx, &q)
		page = e.capToProfile(q, page)
	}

	// One past the window distinguishes a full page from the last one.
	cands, err := e.generateOnce(qctx, gen, q, page.Offset+page.Limit+1)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindValidation, apperr.KindNotFound:
			metrics.RecordQuery(strategy.String(), "error", time.Since(start))
			return nil, err
		}
		feed, rerr := e.fallbackFeed(ctx, strategy, q, page)
		if rerr != nil {
			metrics.RecordQuery(strategy.String(), "error", time.Since(start))
			return nil, apperr.Wrap(err, apperr.KindUnavailable, "feed unavailable")
		}
		feed.Personalization = personalization
		metrics.RecordQuery(strategy.String(), "degraded", time.Since(start))
		return feed, nil
	}

	if page.Sort != SortScore {
		SortCandidates(cands, page.Sort)
	}
	feed := windowFeed(cands, strategy.String(), page, q.Now)
	feed.Personalization = personalization
	metrics.RecordQuery(strategy.String(), "ok", time.Since(start))
	return feed, nil
}

// generatorRun is one planned component of a blended feed.
type generatorRun struct {
	strategy interaction.Strategy
	weight   float64
	fetch    int
}

// generatorResult is the outcome of one component run.
type generatorResult struct {
	strategy   interaction.Strategy
	weight     float64
	candidates []Candidate
	err        error
}

// planRuns turns the plan's weights into concrete generator runs. Profile
// opt-outs drop a component here; the merge renormalizes over whoever is
// left, so a dropped component's share flows to its siblings. Runs are
// ordered by strategy so a query blends the same way every time.
func (e *Engine) planRuns(q Query, plan BlendPlan, page Page) []generatorRun {
	depth := page.Offset + page.Limit
	runs := make([]generatorRun, 0, len(plan.Weights))
	for s, w := range plan.Weights {
		if w <= 0 {
			continue
		}
		if q.Profile != nil && q.Profile.StrategyDisabled(s) {
			continue
		}
		fetch := int(math.Ceil(float64(depth) * w * e.cfg.Blender.Overfetch))
		if fetch < 1 {
			fetch = 1
		}
		runs = append(runs, generatorRun{strategy: s, weight: w, fetch: fetch})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].strategy < runs[j].strategy })
	return runs
}

func (e *Engine) runGenerators(ctx context.Context, q Query, runs []generatorRun) []generatorResult {
	results := make([]generatorResult, len(runs))
	var wg sync.WaitGroup

	for i, run := range runs {
		wg.Add(1)
		go func(idx int, run generatorRun) {
			defer wg.Done()
			results[idx] = e.runGenerator(ctx, q, run)
		}(i, run)
	}

	wg.Wait()
	return results
}

func (e *Engine) runGenerator(ctx context.Context, q Query, run generatorRun) generatorResult {
	res := generatorResult{strategy: run.strategy, weight: run.weight}
	gen, ok := e.generator(run.strategy)
	if !ok {
		res.err = apperr.Newf(apperr.KindInternal, "no generator registered for %s", run.strategy)
		return res
	}
	res.candidates, res.err = e.generateOnce(ctx, gen, q, run.fetch)
	return res
}

// generateOnce executes one generator under the per-generator budget.
func (e *Engine) generateOnce(ctx context.Context, gen Generator, q Query, fetch int) ([]Candidate, error) {
	gctx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorBudget)
	defer cancel()

	t := time.Now()
	cands, err := gen.Generate(gctx, q, fetch)
	metrics.RecordGenerator(gen.Name(), time.Since(t), len(cands), err)
	return cands, err
}

// usableSources partitions component results into blendable sources and the
// sorted names of failed components. A component that succeeded with zero
// candidates stays a source; only errors degrade the feed.
func (e *Engine) usableSources(ctx context.Context, results []generatorResult) ([]BlendSource, []string) {
	sources := make([]BlendSource, 0, len(results))
	var degraded []string

	for _, r := range results {
		if r.err != nil {
			logging.Ctx(ctx).Warn().
				Err(r.err).
				Str("strategy", r.strategy.String()).
				Msg("feed component failed, blending without it")
			degraded = append(degraded, r.strategy.String())
			continue
		}
		sources = append(sources, BlendSource{Strategy: r.strategy, Weight: r.weight, Candidates: r.candidates})
	}
	sort.Strings(degraded)
	return sources, degraded
}

// rescueTrending is the floor under a fully failed blend: one more trending
// attempt with a fresh generator budget, outside the exhausted query budget
// but still bound to the caller.
func (e *Engine) rescueTrending(ctx context.Context, q Query, page Page) ([]BlendSource, error) {
	gen, ok := e.generator(interaction.StrategyTrending)
	if !ok {
		return nil, apperr.New(apperr.KindInternal, "no trending generator registered")
	}
	cands, err := e.generateOnce(ctx, gen, q, page.Offset+page.Limit)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Warn().Msg("all feed components failed, serving trending floor")
	return []BlendSource{{Strategy: interaction.StrategyTrending, Weight: 1, Candidates: cands}}, nil
}

func firstError(results []generatorResult) error {
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func (e *Engine) blendOptions(q Query, page Page, plan BlendPlan) BlendOptions {
	diversification := 1.0
	if q.Profile != nil {
		diversification = q.Profile.Settings.DiversificationWeight
	}
	return BlendOptions{
		Limit:            page.Limit,
		Offset:           page.Offset,
		Sort:             page.Sort,
		MaxPerCategory:   e.cfg.Blender.MaxPerCategory,
		Diversification:  diversification,
		MakerCapFraction: e.cfg.Blender.MakerCapFraction,
		CrossSourceBoost: e.cfg.Blender.CrossSourceBoost,
		Exclude:          q.Exclude,
		Strict:           plan.Strict,
	}
}

// fallbackFeed serves a trending page in place of a failed strategy. The
// feed keeps the requested strategy's name and flags the substitution.
func (e *Engine) fallbackFeed(ctx context.Context, failed interaction.Strategy, q Query, page Page) (*Feed, error) {
	if failed == interaction.StrategyTrending {
		return nil, apperr.New(apperr.KindUnavailable, "trending unavailable")
	}
	gen, ok := e.generator(interaction.StrategyTrending)
	if !ok {
		return nil, apperr.New(apperr.KindInternal, "no trending generator registered")
	}
	cands, err := e.generateOnce(ctx, gen, q, page.Offset+page.Limit+1)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Warn().
		Str("strategy", failed.String()).
		Msg("strategy failed, serving trending fallback")

	if page.Sort != SortScore {
		SortCandidates(cands, page.Sort)
	}
	feed := windowFeed(cands, failed.String(), page, q.Now)
	feed.Partial = true
	feed.DegradedStrategies = []string{failed.String()}
	return feed, nil
}

// windowFeed cuts the serving window out of a generator's output. Total is
// exact when the generator exhausted its candidate space and a lower bound
// otherwise.
func windowFeed(cands []Candidate, strategy string, page Page, now time.Time) *Feed {
	total := len(cands)
	start := page.Offset
	if start > len(cands) {
		start = len(cands)
	}
	end := page.Offset + page.Limit
	if end > len(cands) {
		end = len(cands)
	}
	return &Feed{
		Items:       cands[start:end],
		Total:       total,
		Strategy:    strategy,
		GeneratedAt: now,
	}
}

// personalizes reports whether a strategy reads the profile and the
// dismissal log. Neutral listings serve identically for every caller.
func personalizes(s interaction.Strategy) bool {
	switch s {
	case interaction.StrategyPersonalized, interaction.StrategyHistory, interaction.StrategyCollaborative:
		return true
	default:
		return false
	}
}

// resolveProfile loads the identity's profile unless the caller already
// attached one, and reports the personalization state for feed metadata.
func (e *Engine) resolveProfile(ctx context.Context, q *Query) string {
	if q.Identity == "" {
		return PersonalizationNone
	}
	degraded := false
	if q.Profile == nil {
		if e.profiles == nil {
			return PersonalizationNone
		}
		p, deg, err := e.profiles.Profile(ctx, q.Identity)
		if err != nil || p == nil {
			return PersonalizationDegraded
		}
		q.Profile = p
		degraded = deg
	}
	switch {
	case degraded:
		return PersonalizationDegraded
	case q.Profile.Personalized():
		return PersonalizationFull
	default:
		return PersonalizationNone
	}
}

// buildExcludeSet folds the identity's dismissals and the user's own
// launches into the query's exclude-set. These lookups protect feed quality
// rather than correctness, so their failures only log. The caller's map is
// copied, never mutated.
func (e *Engine) buildExcludeSet(ctx context.Context, q *Query) {
	if q.Identity == "" && q.UserID == "" {
		return
	}
	ex := make(map[string]struct{}, len(q.Exclude))
	for id := range q.Exclude {
		ex[id] = struct{}{}
	}

	if q.Identity != "" {
		ids, err := e.log.DismissedProductIDs(ctx, q.Identity, q.Now.Add(-interaction.RetentionWindow))
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("dismissal lookup failed, serving without it")
		}
		for _, id := range ids {
			ex[id] = struct{}{}
		}
	}
	if q.UserID != "" {
		own, err := e.catalog.List(ctx, catalog.Filter{MakerID: q.UserID, Status: catalog.StatusAny})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("own-products lookup failed, serving without it")
		}
		for i := range own {
			ex[own[i].ID] = struct{}{}
		}
	}
	q.Exclude = ex
}

// capToProfile honors the profile's feed size preference.
func (e *Engine) capToProfile(q Query, page Page) Page {
	if q.Profile == nil {
		return page
	}
	if limit := q.Profile.Settings.MaxRecommendations; limit > 0 && page.Limit > limit {
		page.Limit = limit
	}
	return page
}
