// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/auth"
	"github.com/huntboard/huntboard/internal/cache"
	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/events"
	"github.com/huntboard/huntboard/internal/ingress"
	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/profile"
	"github.com/huntboard/huntboard/internal/recommend"
)

// Engine is the query surface of the recommendation engine.
// *recommend.Engine satisfies it; tests substitute scripted fakes.
type Engine interface {
	Feed(ctx context.Context, q recommend.Query, policy string, page recommend.Page) (*recommend.Feed, error)
	Single(ctx context.Context, strategy interaction.Strategy, q recommend.Query, page recommend.Page) (*recommend.Feed, error)
}

// Recorder accepts one interaction through the ingress pipeline.
// *ingress.Service satisfies it.
type Recorder interface {
	Record(ctx context.Context, env *ingress.Envelope) (*ingress.Receipt, error)
}

// ImpressionPublisher emits served-page impressions for asynchronous
// persistence. *events.Bus satisfies it.
type ImpressionPublisher interface {
	PublishImpressions(ctx context.Context, evt *events.ImpressionsServed) error
}

// Pinger reports store liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LiveHub is the optional WebSocket surface mounted at /recs/live.
type LiveHub interface {
	http.Handler
	ClientCount() int
}

// Handlers carries every dependency the HTTP surface touches. All fields
// except engine and catalog are optional; nil disables the feature and the
// handler degrades gracefully (cache bypass, no impressions, no live hub).
type Handlers struct {
	engine    Engine
	catalog   catalog.Store
	feedCache *cache.Cache
	profiles  *profile.Service
	recorder  Recorder
	publisher ImpressionPublisher
	resolver  *auth.Resolver
	hub       LiveHub
	db        Pinger

	started time.Time
}

// NewHandlers builds the handler set.
func NewHandlers(engine Engine, cat catalog.Store, feedCache *cache.Cache, profiles *profile.Service,
	recorder Recorder, publisher ImpressionPublisher, resolver *auth.Resolver, hub LiveHub, db Pinger,
) *Handlers {
	return &Handlers{
		engine:    engine,
		catalog:   cat,
		feedCache: feedCache,
		profiles:  profiles,
		recorder:  recorder,
		publisher: publisher,
		resolver:  resolver,
		hub:       hub,
		db:        db,
		started:   time.Now(),
	}
}

// ResolveIdentity resolves the caller once per request and stores it in
// the context. A malformed credential refuses the request instead of
// silently degrading to anonymous.
func (h *Handlers) ResolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.resolver.FromRequest(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

// RequireUser gates surfaces that only make sense for authenticated users.
func (h *Handlers) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.IdentityFromContext(r.Context()).UserID == "" {
			respondError(w, r, apperr.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// feedSpec describes one feed endpoint to the shared serving path.
type feedSpec struct {
	// strategy is the cache namespace and the meta.strategy echo.
	strategy string

	// personalized keys the cache per identity and publishes impressions
	// under the caller's identity.
	personalized bool

	// mutate fills strategy-specific query fields (seed, maker, path
	// category) before the cache key is derived.
	mutate func(*recommend.Query)

	// run produces the feed on a cache miss.
	run func(ctx context.Context, q recommend.Query, page recommend.Page) (*recommend.Feed, error)
}

// feedKeyParams is the cache fingerprint input. Field order is fixed;
// changing it invalidates every key, which is safe (cache is a hint).
type feedKeyParams struct {
	Strategy string   `json:"strategy"`
	Identity string   `json:"identity,omitempty"`
	Category string   `json:"category,omitempty"`
	Maker    string   `json:"maker,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Seed     string   `json:"seed,omitempty"`
	Window   int64    `json:"window,omitempty"`
	Sort     string   `json:"sort"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}

// serveFeed is the one serving path behind every feed endpoint:
// cache lookup, on miss the engine, a liveness post-filter either way,
// asynchronous impression write-back, respond.
func (h *Handlers) serveFeed(w http.ResponseWriter, r *http.Request, spec feedSpec) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q, err := h.queryFromRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if spec.mutate != nil {
		spec.mutate(&q)
	}

	key := h.feedKey(spec, q, page)
	if feed, ok := h.cachedFeed(key); ok {
		feed = h.filterLive(r.Context(), feed)
		h.publishImpressions(r.Context(), spec, q, feed, page)
		respondFeed(w, r, feed, page)
		return
	}

	feed, err := spec.run(r.Context(), q, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	feed = h.filterLive(r.Context(), feed)
	h.cacheFeed(key, spec, q, feed)
	h.publishImpressions(r.Context(), spec, q, feed, page)
	respondFeed(w, r, feed, page)
}

// queryFromRequest assembles the generator query common to all feed
// endpoints. Strategy-specific fields (seed, category, maker) are filled
// by the endpoint before running.
func (h *Handlers) queryFromRequest(r *http.Request) (recommend.Query, error) {
	window, err := parseTimeframe(r)
	if err != nil {
		return recommend.Query{}, err
	}
	id := auth.IdentityFromContext(r.Context())
	return recommend.Query{
		Identity:   id.Key(),
		UserID:     id.UserID,
		CategoryID: r.URL.Query().Get("category"),
		Tags:       parseTags(r),
		Window:     window,
	}, nil
}

// feedKey fingerprints the request. Neutral listings share one key across
// callers; personalized feeds key per identity.
func (h *Handlers) feedKey(spec feedSpec, q recommend.Query, page recommend.Page) string {
	params := feedKeyParams{
		Strategy: spec.strategy,
		Category: q.CategoryID,
		Maker:    q.MakerID,
		Seed:     q.SeedID,
		Window:   int64(q.Window),
		Sort:     string(page.Sort),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if len(q.Tags) > 0 {
		params.Tags = append([]string(nil), q.Tags...)
		sort.Strings(params.Tags)
	}
	if spec.personalized {
		params.Identity = q.Identity
	}
	return cache.GenerateKey(spec.strategy, params)
}

// cachedFeed reads a feed page from the cache. A nil cache means bypass.
func (h *Handlers) cachedFeed(key string) (*recommend.Feed, bool) {
	if h.feedCache == nil {
		return nil, false
	}
	v, ok := h.feedCache.Get(key)
	if !ok {
		return nil, false
	}
	feed, ok := v.(*recommend.Feed)
	return feed, ok
}

// cacheFeed stores a served page with its invalidation scope.
func (h *Handlers) cacheFeed(key string, spec feedSpec, q recommend.Query, feed *recommend.Feed) {
	if h.feedCache == nil || feed == nil {
		return
	}
	// Degraded pages are not worth pinning for a full TTL; the next
	// request should retry the failed components.
	if feed.Partial {
		return
	}
	scope := cache.Scope{
		Strategy:   spec.strategy,
		ProductIDs: productIDs(feed.Items),
	}
	if spec.personalized {
		scope.Identity = q.Identity
	}
	h.feedCache.Put(key, feed, scope)
}

// filterLive drops items whose product is no longer Published. The cache
// is a hint, never a source of truth, so this runs on hits and misses
// alike. The shared cached value is never mutated.
func (h *Handlers) filterLive(ctx context.Context, feed *recommend.Feed) *recommend.Feed {
	if feed == nil || len(feed.Items) == 0 {
		return feed
	}
	live, err := h.catalog.Products(ctx, productIDs(feed.Items))
	if err != nil {
		// Catalog outage: serving possibly-stale items beats serving
		// nothing; the generators already filtered at build time.
		logging.Ctx(ctx).Warn().Err(err).Msg("liveness recheck failed, serving unfiltered")
		return feed
	}
	alive := make(map[string]struct{}, len(live))
	for _, p := range live {
		if p.Published() {
			alive[p.ID] = struct{}{}
		}
	}
	if len(alive) == len(feed.Items) {
		return feed
	}

	filtered := *feed
	filtered.Items = make([]recommend.Candidate, 0, len(alive))
	for _, c := range feed.Items {
		if _, ok := alive[c.ProductID]; ok {
			filtered.Items = append(filtered.Items, c)
		}
	}
	filtered.Total -= len(feed.Items) - len(filtered.Items)
	if filtered.Total < len(filtered.Items) {
		filtered.Total = len(filtered.Items)
	}
	return &filtered
}

// publishImpressions records the served slots through the event bus.
// Best-effort: failures are logged and never reach the caller, and the
// publish happens off the request goroutine so a slow bus cannot delay
// the response.
func (h *Handlers) publishImpressions(ctx context.Context, spec feedSpec, q recommend.Query, feed *recommend.Feed, page recommend.Page) {
	if h.publisher == nil || feed == nil || len(feed.Items) == 0 {
		return
	}
	id := auth.IdentityFromContext(ctx)
	if !id.Resolved() {
		return
	}
	items := make([]events.ServedItem, len(feed.Items))
	for i, c := range feed.Items {
		items[i] = events.ServedItem{ProductID: c.ProductID, Position: page.Offset + i}
	}
	evt := events.NewImpressionsServed(id.UserID, id.ClientID, spec.strategy, items)

	detached := context.WithoutCancel(ctx)
	go func() {
		pctx, cancel := context.WithTimeout(detached, 5*time.Second)
		defer cancel()
		if err := h.publisher.PublishImpressions(pctx, evt); err != nil {
			logging.Ctx(pctx).Warn().Err(err).
				Str("strategy", spec.strategy).
				Msg("impression publish failed")
		}
	}()
}

func productIDs(items []recommend.Candidate) []string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ProductID
	}
	return ids
}

// Feed serves the blended feed. The blend parameter selects the policy;
// empty means standard.
func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	policy := r.URL.Query().Get("blend")
	strategy := "feed"
	if policy != "" {
		strategy = "feed:" + policy
	}
	h.serveFeed(w, r, feedSpec{
		strategy:     strategy,
		personalized: true,
		run: func(ctx context.Context, q recommend.Query, page recommend.Page) (*recommend.Feed, error) {
			return h.engine.Feed(ctx, q, policy, page)
		},
	})
}

// Trending serves the windowed trending feed.
func (h *Handlers) Trending(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, h.singleSpec(interaction.StrategyTrending, false))
}

// New serves recent arrivals.
func (h *Handlers) New(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, h.singleSpec(interaction.StrategyNew, false))
}

// Similar serves products similar to the seed in the path.
func (h *Handlers) Similar(w http.ResponseWriter, r *http.Request) {
	seed := chi.URLParam(r, "productId")
	spec := h.singleSpec(interaction.StrategySimilar, false)
	spec.mutate = func(q *recommend.Query) { q.SeedID = seed }
	h.serveFeed(w, r, spec)
}

// Category serves the category listing, including descendant categories.
func (h *Handlers) Category(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")
	spec := h.singleSpec(interaction.StrategyCategory, false)
	spec.mutate = func(q *recommend.Query) { q.CategoryID = categoryID }
	h.serveFeed(w, r, spec)
}

// Maker serves one maker's published products.
func (h *Handlers) Maker(w http.ResponseWriter, r *http.Request) {
	makerID := chi.URLParam(r, "makerId")
	spec := h.singleSpec(interaction.StrategyMaker, false)
	spec.mutate = func(q *recommend.Query) { q.MakerID = makerID }
	h.serveFeed(w, r, spec)
}

// Tags serves products matching the tags CSV parameter.
func (h *Handlers) Tags(w http.ResponseWriter, r *http.Request) {
	if len(parseTags(r)) == 0 {
		respondError(w, r, apperr.Validation("tags parameter is required"))
		return
	}
	h.serveFeed(w, r, h.singleSpec(interaction.StrategyTag, false))
}

// Interests serves the personalized feed; anonymous callers and empty
// profiles fall through to trending inside the generator.
func (h *Handlers) Interests(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, h.singleSpec(interaction.StrategyPersonalized, true))
}

// Collaborative serves the co-engagement feed.
func (h *Handlers) Collaborative(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, h.singleSpec(interaction.StrategyCollaborative, true))
}

// History serves similar-to-recently-engaged products. Authenticated only:
// anonymous history is too sparse to be useful and leaks across shared
// fingerprints.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, h.singleSpec(interaction.StrategyHistory, true))
}

// singleSpec is the serving spec for a one-strategy endpoint.
func (h *Handlers) singleSpec(s interaction.Strategy, personalized bool) feedSpec {
	return feedSpec{
		strategy:     s.String(),
		personalized: personalized,
		run: func(ctx context.Context, q recommend.Query, page recommend.Page) (*recommend.Feed, error) {
			return h.engine.Single(ctx, s, q, page)
		},
	}
}

// notFoundRoute and methodNotAllowed keep unknown-path errors in the same
// envelope as everything else.
func notFoundRoute(r *http.Request) error {
	return apperr.Newf(apperr.KindNotFound, "no route for %s", r.URL.Path)
}

func methodNotAllowed(r *http.Request) error {
	return apperr.Newf(apperr.KindValidation, "method %s not allowed", r.Method)
}
