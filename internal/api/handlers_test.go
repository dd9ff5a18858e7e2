// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/auth"
	"github.com/huntboard/huntboard/internal/cache"
	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/recommend"
)

func TestParsePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rawQuery   string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{name: "defaults", rawQuery: "", wantLimit: 20, wantOffset: 0},
		{name: "explicit", rawQuery: "limit=10&offset=30", wantLimit: 10, wantOffset: 30},
		{name: "limit clamped to max", rawQuery: "limit=500", wantLimit: 50},
		{name: "non-numeric limit", rawQuery: "limit=ten", wantErr: true},
		{name: "negative offset", rawQuery: "offset=-5", wantErr: true},
		{name: "bad sort", rawQuery: "sortBy=alphabetical", wantErr: true},
		{name: "valid sort", rawQuery: "sortBy=upvotes", wantLimit: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/recs/trending?"+tt.rawQuery, nil)
			page, err := parsePage(r)
			if tt.wantErr {
				if !apperr.IsKind(err, apperr.KindValidation) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePage: %v", err)
			}
			if page.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", page.Limit, tt.wantLimit)
			}
			if page.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", page.Offset, tt.wantOffset)
			}
		})
	}
}

func TestParseTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"ai", 1},
		{"ai,devtools, design ", 3},
		{" , ,", 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/recs/tags?tags="+url.QueryEscape(tt.raw), nil)
		if got := parseTags(r); len(got) != tt.want {
			t.Errorf("parseTags(%q) = %v, want %d tags", tt.raw, got, tt.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	p := paginate(45, recommend.Page{Limit: 20, Offset: 20}.Normalize())
	if p.Total != 45 || p.Page != 2 || p.Pages != 3 {
		t.Errorf("pagination = %+v, want total 45 page 2 pages 3", p)
	}
	if !p.HasNextPage || !p.HasPrevPage {
		t.Errorf("pagination flags = %+v, want both true", p)
	}

	first := paginate(5, recommend.Page{Limit: 20}.Normalize())
	if first.Pages != 1 || first.HasNextPage || first.HasPrevPage {
		t.Errorf("single page = %+v", first)
	}
}

func TestFeedKeySeparatesIdentitiesOnlyWhenPersonalized(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	page := recommend.Page{Limit: 20, Sort: recommend.SortScore}
	qa := recommend.Query{Identity: "user-a"}
	qb := recommend.Query{Identity: "user-b"}

	neutral := feedSpec{strategy: "trending"}
	if h.feedKey(neutral, qa, page) != h.feedKey(neutral, qb, page) {
		t.Error("neutral listings must share cache keys across identities")
	}

	personal := feedSpec{strategy: "personalized", personalized: true}
	if h.feedKey(personal, qa, page) == h.feedKey(personal, qb, page) {
		t.Error("personalized feeds must not share cache keys across identities")
	}

	if h.feedKey(neutral, qa, page) == h.feedKey(personal, qa, page) {
		t.Error("strategies must not collide")
	}
}

func TestFeedKeyTagOrderInsensitive(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	page := recommend.Page{Limit: 20, Sort: recommend.SortScore}
	a := recommend.Query{Tags: []string{"ai", "devtools"}}
	b := recommend.Query{Tags: []string{"devtools", "ai"}}
	spec := feedSpec{strategy: "tag"}
	if h.feedKey(spec, a, page) != h.feedKey(spec, b, page) {
		t.Error("tag order must not change the cache key")
	}
}

func TestFilterLiveDropsUnpublished(t *testing.T) {
	t.Parallel()

	store := catalog.NewMemoryStore()
	store.Replace([]catalog.Product{
		{ID: "p1", Slug: "one", Status: catalog.StatusPublished, CategoryID: "c", CreatedAt: time.Now()},
		{ID: "p2", Slug: "two", Status: catalog.StatusDelisted, CategoryID: "c", CreatedAt: time.Now()},
	}, nil)
	h := &Handlers{catalog: store}

	feed := &recommend.Feed{
		Items: []recommend.Candidate{
			{ProductID: "p1"}, {ProductID: "p2"}, {ProductID: "p-deleted"},
		},
		Total: 10,
	}
	got := h.filterLive(context.Background(), feed)
	if len(got.Items) != 1 || got.Items[0].ProductID != "p1" {
		t.Fatalf("items = %+v, want only p1", got.Items)
	}
	if got.Total != 8 {
		t.Errorf("Total = %d, want 8", got.Total)
	}
	// The input feed (possibly shared via the cache) must be untouched.
	if len(feed.Items) != 3 {
		t.Error("filterLive mutated the cached feed")
	}
}

func TestCacheFeedSkipsPartialPages(t *testing.T) {
	t.Parallel()

	c := cache.New(cache.Config{})
	h := &Handlers{feedCache: c}
	spec := feedSpec{strategy: "feed:standard", personalized: true}
	q := recommend.Query{Identity: "u1"}

	h.cacheFeed("k1", spec, q, &recommend.Feed{Partial: true})
	if _, ok := c.Get("k1"); ok {
		t.Error("partial feeds must not be cached")
	}

	h.cacheFeed("k2", spec, q, &recommend.Feed{Items: []recommend.Candidate{{ProductID: "p1"}}})
	if _, ok := c.Get("k2"); !ok {
		t.Error("complete feeds must be cached")
	}
	if n := c.InvalidateIdentity("u1"); n != 1 {
		t.Errorf("identity index invalidated %d keys, want 1", n)
	}
}

func TestRequireUserRefusesAnonymous(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	next := h.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Anonymous fingerprint only.
	r := httptest.NewRequest(http.MethodGet, "/recs/history", nil)
	r = r.WithContext(auth.ContextWithIdentity(r.Context(), auth.Identity{ClientID: "anon-1"}))
	w := httptest.NewRecorder()
	next.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Success || env.Error == nil || env.Error.Kind != string(apperr.KindUnauthorized) {
		t.Errorf("envelope = %+v, want unauthorized error", env)
	}
	if env.Error.ErrorID == "" {
		t.Error("error envelope missing errorId")
	}

	// Authenticated user passes.
	r = httptest.NewRequest(http.MethodGet, "/recs/history", nil)
	r = r.WithContext(auth.ContextWithIdentity(r.Context(), auth.Identity{UserID: "user-1"}))
	w = httptest.NewRecorder()
	next.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRespondErrorHidesInternalCauses(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/recs/feed", nil)
	w := httptest.NewRecorder()
	respondError(w, r, apperr.Wrap(context.DeadlineExceeded, apperr.KindInternal, "engine panicked on shard 3"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error.Message != "internal error" {
		t.Errorf("message = %q, internal detail leaked", env.Error.Message)
	}
}
