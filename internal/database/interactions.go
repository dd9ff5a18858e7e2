// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/database/query"
	"github.com/huntboard/huntboard/internal/interaction"
)

// Engagement holds windowed per-product counters used by trending.
type Engagement struct {
	Upvotes   int
	Views     int
	Bookmarks int
}

// CoEngagementRow is one co-engagement aggregate: how many overlapping
// users touched the product and how strongly.
type CoEngagementRow struct {
	ProductID  string
	Users      int
	AvgQuality float64
}

// Score is the collaborative relevance of the row.
func (r CoEngagementRow) Score() float64 {
	return float64(r.Users) * r.AvgQuality
}

// ProfileRow is the minimal interaction shape the profile builder consumes.
type ProfileRow struct {
	ProductID string
	Kind      interaction.Kind
	Quality   float64
	CreatedAt time.Time
}

// AppendInteraction validates and durably stores one interaction. Identity,
// product, and a valid kind are required; everything else is optional.
// The record's ID and CreatedAt are filled in when absent.
func (db *DB) AppendInteraction(ctx context.Context, rec *interaction.Record) error {
	if rec == nil {
		return apperr.Validation("interaction is required")
	}
	if rec.ProductID == "" {
		return apperr.Validation("productId is required")
	}
	if !rec.Kind.Valid() {
		return apperr.Newf(apperr.KindValidation, "unknown interaction kind %q", rec.Kind).
			WithDetail("kind", string(rec.Kind))
	}
	identity := rec.Identity()
	if identity == "" {
		return apperr.Validation("userId or clientId is required")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO interactions
			(id, user_id, client_id, identity, product_id, kind, strategy, position, quality, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullString(rec.UserID),
		nullString(rec.ClientID),
		identity,
		rec.ProductID,
		string(rec.Kind),
		string(rec.Strategy),
		nullInt(rec.Position),
		rec.Quality,
		string(metadata),
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// InteractionsByIdentity returns the identity's interactions, newest first,
// bounded by the retention window.
func (db *DB) InteractionsByIdentity(ctx context.Context, identity string, limit int) ([]interaction.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, client_id, product_id, kind, strategy, position, quality, metadata, created_at
		FROM interactions
		WHERE identity = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`,
		identity, retentionFloor(time.Time{}), limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// QueryOptions bounds an interaction history query. Zero values mean
// unbounded (within retention) except Limit, which defaults to 100.
type QueryOptions struct {
	Since  time.Time
	Until  time.Time
	Kinds  []interaction.Kind
	Limit  int
	Offset int
}

// QueryByIdentity returns the identity's interactions newest first, filtered
// by the options. Limit/Offset paginate, so a caller can restart a walk from
// where it left off.
func (db *DB) QueryByIdentity(ctx context.Context, identity string, opts QueryOptions) ([]interaction.Record, error) {
	if identity == "" {
		return nil, apperr.Validation("identity is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	wb := query.NewWhereBuilder().
		AddIdentity(identity).
		AddKinds(opts.Kinds).
		AddSince(retentionFloor(opts.Since)).
		AddUntil(opts.Until)
	where, args := wb.BuildWithPrefix()

	q := fmt.Sprintf(`
		SELECT id, user_id, client_id, product_id, kind, strategy, position, quality, metadata, created_at
		FROM interactions
		%s
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, where)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions by identity: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// RecentProductIDs returns distinct product IDs the identity touched with
// any of the given kinds, ordered by most recent touch.
func (db *DB) RecentProductIDs(ctx context.Context, identity string, kinds []interaction.Kind, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}

	wb := query.NewWhereBuilder().
		AddIdentity(identity).
		AddKinds(kinds).
		AddSince(retentionFloor(time.Time{}))
	where, args := wb.BuildWithPrefix()

	q := fmt.Sprintf(`
		SELECT product_id
		FROM interactions
		%s
		GROUP BY product_id
		ORDER BY MAX(created_at) DESC
		LIMIT ?`, where)
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent products: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// InteractedProductIDs returns every product the identity has touched since
// the given instant, for candidate exclusion. Impressions do not count as
// having interacted.
func (db *DB) InteractedProductIDs(ctx context.Context, identity string, since time.Time) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT product_id
		FROM interactions
		WHERE identity = ? AND created_at >= ? AND kind <> ?`,
		identity, retentionFloor(since), string(interaction.KindImpression))
	if err != nil {
		return nil, fmt.Errorf("query interacted products: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// DismissedProductIDs returns products the identity dismissed since the
// given instant. Dismissals suppress a product from every blended list.
func (db *DB) DismissedProductIDs(ctx context.Context, identity string, since time.Time) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT product_id
		FROM interactions
		WHERE identity = ? AND created_at >= ? AND kind = ?`,
		identity, retentionFloor(since), string(interaction.KindDismiss))
	if err != nil {
		return nil, fmt.Errorf("query dismissed products: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// ProductEngagement returns per-product upvote/view/bookmark counts inside
// the window starting at since.
func (db *DB) ProductEngagement(ctx context.Context, since time.Time) (map[string]Engagement, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT product_id,
			COUNT(*) FILTER (WHERE kind = 'upvote')   AS upvotes,
			COUNT(*) FILTER (WHERE kind = 'view')     AS views,
			COUNT(*) FILTER (WHERE kind = 'bookmark') AS bookmarks
		FROM interactions
		WHERE created_at >= ?
		GROUP BY product_id`,
		retentionFloor(since))
	if err != nil {
		return nil, fmt.Errorf("query product engagement: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Engagement)
	for rows.Next() {
		var id string
		var e Engagement
		if err := rows.Scan(&id, &e.Upvotes, &e.Views, &e.Bookmarks); err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		out[id] = e
	}
	return out, rows.Err()
}

// CoEngagement finds products engaged by users who share products with the
// identity. Per product, only the perItemCap most recent distinct users are
// counted, so a single viral product cannot dominate the neighborhood.
// Products the identity already touched are excluded. Rows come back
// ordered by Users*AvgQuality descending with product ID as tiebreak.
func (db *DB) CoEngagement(ctx context.Context, identity string, since time.Time, perItemCap int) ([]CoEngagementRow, error) {
	if perItemCap <= 0 {
		perItemCap = 200
	}
	floor := retentionFloor(since)

	rows, err := db.conn.QueryContext(ctx, `
		WITH per_user AS (
			SELECT identity, product_id, MAX(quality) AS quality, MAX(created_at) AS last_at
			FROM interactions
			WHERE created_at >= ? AND kind <> 'dismiss' AND quality > 0
			GROUP BY identity, product_id
		),
		mine AS (
			SELECT product_id FROM per_user WHERE identity = ?
		),
		neighbors AS (
			SELECT DISTINCT identity
			FROM per_user
			WHERE product_id IN (SELECT product_id FROM mine) AND identity <> ?
		),
		capped AS (
			SELECT product_id, quality,
				ROW_NUMBER() OVER (PARTITION BY product_id ORDER BY last_at DESC) AS rn
			FROM per_user
			WHERE identity IN (SELECT identity FROM neighbors)
				AND product_id NOT IN (SELECT product_id FROM mine)
		)
		SELECT product_id, COUNT(*) AS users, AVG(quality) AS avg_quality
		FROM capped
		WHERE rn <= ?
		GROUP BY product_id
		ORDER BY COUNT(*) * AVG(quality) DESC, product_id
		LIMIT 500`,
		floor, identity, identity, perItemCap)
	if err != nil {
		return nil, fmt.Errorf("query co-engagement: %w", err)
	}
	defer rows.Close()

	var out []CoEngagementRow
	for rows.Next() {
		var r CoEngagementRow
		if err := rows.Scan(&r.ProductID, &r.Users, &r.AvgQuality); err != nil {
			return nil, fmt.Errorf("scan co-engagement: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProfileRows returns the identity's interactions since the given instant
// in the light shape the profile builder consumes, newest first.
func (db *DB) ProfileRows(ctx context.Context, identity string, since time.Time) ([]ProfileRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT product_id, kind, quality, created_at
		FROM interactions
		WHERE identity = ? AND created_at >= ?
		ORDER BY created_at DESC`,
		identity, retentionFloor(since))
	if err != nil {
		return nil, fmt.Errorf("query profile rows: %w", err)
	}
	defer rows.Close()

	var out []ProfileRow
	for rows.Next() {
		var r ProfileRow
		var kind string
		if err := rows.Scan(&r.ProductID, &kind, &r.Quality, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		r.Kind = interaction.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountInteractions returns the number of stored interactions since the
// given instant (zero time counts the whole retained log).
func (db *DB) CountInteractions(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE created_at >= ?`,
		retentionFloor(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return count, nil
}

// AggregateRow is one group from Aggregate: the group value with its count
// and average engagement quality.
type AggregateRow struct {
	Group      string
	Count      int64
	AvgQuality float64
}

// aggregateColumns whitelists the groupable dimensions. Group keys never
// reach the SQL text unvalidated.
var aggregateColumns = map[string]string{
	"product":  "product_id",
	"kind":     "kind",
	"strategy": "strategy",
	"identity": "identity",
}

// Aggregate returns interaction counts and average quality grouped by one of
// product, kind, strategy, or identity, for rows at or after since. Groups
// come back largest first.
func (db *DB) Aggregate(ctx context.Context, groupBy string, since time.Time) ([]AggregateRow, error) {
	column, ok := aggregateColumns[groupBy]
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "unknown aggregate dimension %q", groupBy).
			WithDetail("groupBy", groupBy)
	}

	q := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS n, AVG(quality) AS avg_quality
		FROM interactions
		WHERE created_at >= ?
		GROUP BY %s
		ORDER BY n DESC, %s`, column, column, column)

	rows, err := db.conn.QueryContext(ctx, q, retentionFloor(since))
	if err != nil {
		return nil, fmt.Errorf("aggregate interactions by %s: %w", groupBy, err)
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var r AggregateRow
		if err := rows.Scan(&r.Group, &r.Count, &r.AvgQuality); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// retentionFloor clamps a window start to the retention boundary. Aggregates
// must never read expired rows even if the purger has not caught up yet.
func retentionFloor(since time.Time) time.Time {
	floor := time.Now().UTC().Add(-interaction.RetentionWindow)
	if since.IsZero() || since.Before(floor) {
		return floor
	}
	return since.UTC()
}

func scanRecords(rows *sql.Rows) ([]interaction.Record, error) {
	var out []interaction.Record
	for rows.Next() {
		var (
			rec      interaction.Record
			userID   sql.NullString
			clientID sql.NullString
			kind     string
			strategy string
			position sql.NullInt32
			metadata sql.NullString
		)
		if err := rows.Scan(&rec.ID, &userID, &clientID, &rec.ProductID, &kind, &strategy,
			&position, &rec.Quality, &metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		rec.UserID = userID.String
		rec.ClientID = clientID.String
		rec.Kind = interaction.Kind(kind)
		rec.Strategy = interaction.Strategy(strategy)
		if position.Valid {
			p := int(position.Int32)
			rec.Position = &p
		}
		if metadata.Valid && metadata.String != "" {
			// Malformed stored metadata degrades to an empty bag.
			_ = json.Unmarshal([]byte(metadata.String), &rec.Metadata)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt32 {
	if p == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*p), Valid: true} //nolint:gosec // positions are small
}
