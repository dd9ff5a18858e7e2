// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package database

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/interaction"
)

// testDBSemaphore serializes test database lifecycles. Concurrent DuckDB
// CGO connections can hang under CI resource pressure, so only one test
// holds an open database at a time. None of these tests call t.Parallel.
var testDBSemaphore = make(chan struct{}, 1)

// newTestDB creates an in-memory database and holds the semaphore until the
// test completes. Creation runs with a timeout so a hung CGO call fails the
// test instead of stalling the whole package.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
	}

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(60 * time.Second):
		t.Fatalf("timeout: database creation took longer than 60s")
		return nil
	}
}

// appendRec stores one interaction and fails the test on error.
func appendRec(t *testing.T, db *DB, rec interaction.Record) interaction.Record {
	t.Helper()
	if err := db.AppendInteraction(context.Background(), &rec); err != nil {
		t.Fatalf("AppendInteraction(%s/%s): %v", rec.ProductID, rec.Kind, err)
	}
	return rec
}

func TestAppendInteractionFillsDefaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	pos := 3
	rec := interaction.Record{
		UserID:    "user-1",
		ProductID: "prod-1",
		Kind:      interaction.KindUpvote,
		Strategy:  interaction.StrategyTrending,
		Position:  &pos,
		Quality:   7.0,
		Metadata:  interaction.Metadata{Source: "feed", Device: "mobile"},
	}
	if err := db.AppendInteraction(ctx, &rec); err != nil {
		t.Fatalf("AppendInteraction: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected ID to be filled in")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be filled in")
	}

	got, err := db.InteractionsByIdentity(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("InteractionsByIdentity: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	r := got[0]
	if r.ID != rec.ID {
		t.Errorf("ID = %q, want %q", r.ID, rec.ID)
	}
	if r.UserID != "user-1" || r.ProductID != "prod-1" {
		t.Errorf("identity fields = (%q, %q), want (user-1, prod-1)", r.UserID, r.ProductID)
	}
	if r.Kind != interaction.KindUpvote || r.Strategy != interaction.StrategyTrending {
		t.Errorf("kind/strategy = (%s, %s)", r.Kind, r.Strategy)
	}
	if r.Position == nil || *r.Position != 3 {
		t.Errorf("Position = %v, want 3", r.Position)
	}
	if r.Quality != 7.0 {
		t.Errorf("Quality = %v, want 7.0", r.Quality)
	}
	if r.Metadata.Source != "feed" || r.Metadata.Device != "mobile" {
		t.Errorf("Metadata = %+v, want source=feed device=mobile", r.Metadata)
	}
}

func TestAppendInteractionKeepsExplicitTimestamp(t *testing.T) {
	db := newTestDB(t)

	stamp := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Millisecond)
	appendRec(t, db, interaction.Record{
		ClientID:  "anon-1",
		ProductID: "prod-1",
		Kind:      interaction.KindView,
		Quality:   2.0,
		CreatedAt: stamp,
	})

	got, err := db.InteractionsByIdentity(context.Background(), "anon-1", 10)
	if err != nil {
		t.Fatalf("InteractionsByIdentity: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if !got[0].CreatedAt.Equal(stamp) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, stamp)
	}
}

func TestAppendInteractionValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  *interaction.Record
	}{
		{"nil record", nil},
		{"missing product", &interaction.Record{UserID: "u", Kind: interaction.KindView}},
		{"unknown kind", &interaction.Record{UserID: "u", ProductID: "p", Kind: "teleport"}},
		{"missing identity", &interaction.Record{ProductID: "p", Kind: interaction.KindView}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.AppendInteraction(ctx, tt.rec)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

// seedHistory stores five interactions for "walker" one minute apart plus
// one unrelated record, and returns the base timestamp.
func seedHistory(t *testing.T, db *DB) time.Time {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	recs := []struct {
		product string
		kind    interaction.Kind
		quality float64
		offset  time.Duration
	}{
		{"prod-0", interaction.KindImpression, 1.0, 0},
		{"prod-1", interaction.KindView, 2.4, 1 * time.Minute},
		{"prod-2", interaction.KindClick, 3.0, 2 * time.Minute},
		{"prod-3", interaction.KindUpvote, 7.0, 3 * time.Minute},
		{"prod-4", interaction.KindBookmark, 8.0, 4 * time.Minute},
	}
	for _, r := range recs {
		appendRec(t, db, interaction.Record{
			UserID:    "walker",
			ProductID: r.product,
			Kind:      r.kind,
			Quality:   r.quality,
			CreatedAt: base.Add(r.offset),
		})
	}
	appendRec(t, db, interaction.Record{
		UserID:    "bystander",
		ProductID: "prod-9",
		Kind:      interaction.KindUpvote,
		Quality:   7.0,
		CreatedAt: base,
	})
	return base
}

func TestQueryByIdentityNewestFirst(t *testing.T) {
	db := newTestDB(t)
	seedHistory(t, db)

	got, err := db.QueryByIdentity(context.Background(), "walker", QueryOptions{})
	if err != nil {
		t.Fatalf("QueryByIdentity: %v", err)
	}
	want := []string{"prod-4", "prod-3", "prod-2", "prod-1", "prod-0"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].ProductID != w {
			t.Errorf("record %d: product = %q, want %q", i, got[i].ProductID, w)
		}
	}
}

func TestQueryByIdentityKindFilter(t *testing.T) {
	db := newTestDB(t)
	seedHistory(t, db)

	got, err := db.QueryByIdentity(context.Background(), "walker", QueryOptions{
		Kinds: []interaction.Kind{interaction.KindUpvote, interaction.KindBookmark},
	})
	if err != nil {
		t.Fatalf("QueryByIdentity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Kind != interaction.KindBookmark || got[1].Kind != interaction.KindUpvote {
		t.Errorf("kinds = (%s, %s), want (bookmark, upvote)", got[0].Kind, got[1].Kind)
	}
}

func TestQueryByIdentityTimeBounds(t *testing.T) {
	db := newTestDB(t)
	base := seedHistory(t, db)

	// Since is inclusive, until exclusive: offsets 2m and 3m qualify.
	got, err := db.QueryByIdentity(context.Background(), "walker", QueryOptions{
		Since: base.Add(2 * time.Minute),
		Until: base.Add(4 * time.Minute),
	})
	if err != nil {
		t.Fatalf("QueryByIdentity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ProductID != "prod-3" || got[1].ProductID != "prod-2" {
		t.Errorf("products = (%q, %q), want (prod-3, prod-2)", got[0].ProductID, got[1].ProductID)
	}
}

func TestQueryByIdentityPaginationRestarts(t *testing.T) {
	db := newTestDB(t)
	seedHistory(t, db)
	ctx := context.Background()

	full, err := db.QueryByIdentity(ctx, "walker", QueryOptions{})
	if err != nil {
		t.Fatalf("QueryByIdentity: %v", err)
	}

	// Walk in pages of two; the stitched walk must equal the full query.
	var walked []interaction.Record
	for offset := 0; ; offset += 2 {
		page, err := db.QueryByIdentity(ctx, "walker", QueryOptions{Limit: 2, Offset: offset})
		if err != nil {
			t.Fatalf("QueryByIdentity(offset=%d): %v", offset, err)
		}
		if len(page) == 0 {
			break
		}
		walked = append(walked, page...)
	}
	if len(walked) != len(full) {
		t.Fatalf("paged walk returned %d records, full query %d", len(walked), len(full))
	}
	for i := range full {
		if walked[i].ID != full[i].ID {
			t.Errorf("record %d: paged ID %q != full ID %q", i, walked[i].ID, full[i].ID)
		}
	}
}

func TestQueryByIdentityRequiresIdentity(t *testing.T) {
	db := newTestDB(t)

	_, err := db.QueryByIdentity(context.Background(), "", QueryOptions{})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAggregateByKind(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p1", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "b", ProductID: "p2", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p1", Kind: interaction.KindView, Quality: 2.4, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "b", ProductID: "p1", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})

	rows, err := db.Aggregate(context.Background(), "kind", time.Time{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	// Equal counts tie-break on the group value ascending.
	if rows[0].Group != "upvote" || rows[0].Count != 2 {
		t.Errorf("group 0 = %+v, want upvote count 2", rows[0])
	}
	if rows[1].Group != "view" || rows[1].Count != 2 {
		t.Errorf("group 1 = %+v, want view count 2", rows[1])
	}
	if math.Abs(rows[0].AvgQuality-7.0) > 1e-9 {
		t.Errorf("upvote avg quality = %v, want 7.0", rows[0].AvgQuality)
	}
	if math.Abs(rows[1].AvgQuality-2.2) > 1e-9 {
		t.Errorf("view avg quality = %v, want 2.2", rows[1].AvgQuality)
	}
}

func TestAggregateByProductOrdersBySize(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		appendRec(t, db, interaction.Record{
			UserID: "a", ProductID: "popular", Kind: interaction.KindView,
			Quality: 2.0, CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "quiet", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})

	rows, err := db.Aggregate(context.Background(), "product", time.Time{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	if rows[0].Group != "popular" || rows[0].Count != 3 {
		t.Errorf("group 0 = %+v, want popular count 3", rows[0])
	}
	if rows[1].Group != "quiet" || rows[1].Count != 1 {
		t.Errorf("group 1 = %+v, want quiet count 1", rows[1])
	}
}

func TestAggregateSinceFilter(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p1", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p1", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base.Add(10 * time.Minute)})

	rows, err := db.Aggregate(context.Background(), "kind", base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 1 {
		t.Fatalf("expected single group with count 1, got %+v", rows)
	}
}

func TestAggregateRejectsUnknownDimension(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Aggregate(context.Background(), "color", time.Time{})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRecentProductIDs(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	// prod-a touched twice; the later touch decides its order.
	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "prod-a", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "prod-b", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base.Add(1 * time.Minute)})
	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "prod-a", Kind: interaction.KindClick, Quality: 3.0, CreatedAt: base.Add(2 * time.Minute)})

	got, err := db.RecentProductIDs(context.Background(), "u", nil, 10)
	if err != nil {
		t.Fatalf("RecentProductIDs: %v", err)
	}
	want := []string{"prod-a", "prod-b"}
	if len(got) != len(want) {
		t.Fatalf("expected %d products, got %d (%v)", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("product %d = %q, want %q", i, got[i], w)
		}
	}

	upvotedOnly, err := db.RecentProductIDs(context.Background(), "u",
		[]interaction.Kind{interaction.KindUpvote}, 10)
	if err != nil {
		t.Fatalf("RecentProductIDs(upvote): %v", err)
	}
	if len(upvotedOnly) != 1 || upvotedOnly[0] != "prod-b" {
		t.Errorf("upvoted products = %v, want [prod-b]", upvotedOnly)
	}
}

func TestInteractedProductIDsExcludesImpressions(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "seen-only", Kind: interaction.KindImpression, Quality: 1.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "clicked", Kind: interaction.KindClick, Quality: 3.0, CreatedAt: base})

	got, err := db.InteractedProductIDs(context.Background(), "u", time.Time{})
	if err != nil {
		t.Fatalf("InteractedProductIDs: %v", err)
	}
	if len(got) != 1 || got[0] != "clicked" {
		t.Errorf("interacted products = %v, want [clicked]", got)
	}
}

func TestDismissedProductIDs(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "unwanted", Kind: interaction.KindDismiss, Quality: 0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "liked", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})

	got, err := db.DismissedProductIDs(context.Background(), "u", time.Time{})
	if err != nil {
		t.Fatalf("DismissedProductIDs: %v", err)
	}
	if len(got) != 1 || got[0] != "unwanted" {
		t.Errorf("dismissed products = %v, want [unwanted]", got)
	}
}

func TestProductEngagementCounters(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p1", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "b", ProductID: "p1", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p1", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p1", Kind: interaction.KindBookmark, Quality: 8.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "a", ProductID: "p2", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})

	got, err := db.ProductEngagement(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("ProductEngagement: %v", err)
	}
	p1 := got["p1"]
	if p1.Upvotes != 2 || p1.Views != 1 || p1.Bookmarks != 1 {
		t.Errorf("p1 engagement = %+v, want upvotes 2 views 1 bookmarks 1", p1)
	}
	p2 := got["p2"]
	if p2.Upvotes != 0 || p2.Views != 1 || p2.Bookmarks != 0 {
		t.Errorf("p2 engagement = %+v, want views 1 only", p2)
	}
}

func TestCoEngagementNeighborhood(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	// bob shares prod-shared with alice, so bob's other products surface.
	appendRec(t, db, interaction.Record{UserID: "alice", ProductID: "prod-shared", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "bob", ProductID: "prod-shared", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "bob", ProductID: "prod-strong", Kind: interaction.KindUpvote, Quality: 7.5, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "bob", ProductID: "prod-weak", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})

	// carol shares nothing with alice; her products must not surface.
	appendRec(t, db, interaction.Record{UserID: "carol", ProductID: "prod-stranger", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})

	// dave only dismissed the shared product; dismissals never make a neighbor.
	appendRec(t, db, interaction.Record{UserID: "dave", ProductID: "prod-shared", Kind: interaction.KindDismiss, Quality: 0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "dave", ProductID: "prod-dave", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base})

	rows, err := db.CoEngagement(context.Background(), "alice", time.Time{}, 0)
	if err != nil {
		t.Fatalf("CoEngagement: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d (%+v)", len(rows), rows)
	}
	if rows[0].ProductID != "prod-strong" || rows[0].Users != 1 {
		t.Errorf("row 0 = %+v, want prod-strong users 1", rows[0])
	}
	if math.Abs(rows[0].AvgQuality-7.5) > 1e-9 {
		t.Errorf("row 0 avg quality = %v, want 7.5", rows[0].AvgQuality)
	}
	if rows[1].ProductID != "prod-weak" {
		t.Errorf("row 1 = %+v, want prod-weak", rows[1])
	}
	for _, r := range rows {
		if r.ProductID == "prod-shared" {
			t.Error("co-engagement must exclude products the identity already touched")
		}
	}
}

func TestProfileRows(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "p1", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "p2", Kind: interaction.KindUpvote, Quality: 7.0, CreatedAt: base.Add(time.Minute)})

	rows, err := db.ProfileRows(context.Background(), "u", time.Time{})
	if err != nil {
		t.Fatalf("ProfileRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ProductID != "p2" || rows[0].Kind != interaction.KindUpvote || rows[0].Quality != 7.0 {
		t.Errorf("row 0 = %+v, want newest (p2 upvote 7.0)", rows[0])
	}
	if rows[1].ProductID != "p1" {
		t.Errorf("row 1 = %+v, want p1", rows[1])
	}
}

func TestCountInteractions(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "p1", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base})
	appendRec(t, db, interaction.Record{UserID: "u", ProductID: "p2", Kind: interaction.KindView, Quality: 2.0, CreatedAt: base.Add(10 * time.Minute)})

	total, err := db.CountInteractions(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("CountInteractions: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	recent, err := db.CountInteractions(context.Background(), base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("CountInteractions(since): %v", err)
	}
	if recent != 1 {
		t.Errorf("recent = %d, want 1", recent)
	}
}

func TestPurgeExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	appendRec(t, db, interaction.Record{
		UserID: "u", ProductID: "ancient", Kind: interaction.KindView, Quality: 2.0,
		CreatedAt: time.Now().UTC().Add(-interaction.RetentionWindow - 24*time.Hour),
	})
	appendRec(t, db, interaction.Record{
		UserID: "u", ProductID: "fresh", Kind: interaction.KindView, Quality: 2.0,
		CreatedAt: time.Now().UTC(),
	})

	// Raw count: retention-bounded queries would hide the ancient row.
	rawCount := func() int64 {
		var n int64
		if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n); err != nil {
			t.Fatalf("raw count: %v", err)
		}
		return n
	}
	if n := rawCount(); n != 2 {
		t.Fatalf("raw count before purge = %d, want 2", n)
	}

	purged, err := db.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if n := rawCount(); n != 1 {
		t.Errorf("raw count after purge = %d, want 1", n)
	}

	again, err := db.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired(second): %v", err)
	}
	if again != 0 {
		t.Errorf("second purge removed %d rows, want 0", again)
	}
}
