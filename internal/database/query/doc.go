// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package query provides SQL query building utilities for the interactions
// table.
//
// This package reduces code duplication and provides type-safe query
// construction for parameterized SQL WHERE clauses. It ensures consistent
// parameter handling and prevents SQL injection vulnerabilities.
//
// # Overview
//
// The WhereBuilder is the primary component, providing a fluent interface for
// constructing WHERE clauses with properly parameterized queries:
//
//	wb := query.NewWhereBuilder()
//	wb.AddIdentity("u-42")
//	wb.AddKinds([]interaction.Kind{interaction.KindView, interaction.KindUpvote})
//	wb.AddSince(since)
//	whereClause, args := wb.Build()
//	// Result: "identity = ? AND kind IN (?, ?) AND created_at >= ?"
//	// Args: ["u-42", "view", "upvote", since]
//
// # Usage Example
//
// Building a query with multiple filters:
//
//	func recentByKind(ctx context.Context, identity string, kinds []interaction.Kind) ([]Row, error) {
//	    wb := query.NewWhereBuilder().
//	        AddIdentity(identity).
//	        AddKinds(kinds).
//	        AddSince(retentionFloor(time.Time{}))
//
//	    whereClause, args := wb.BuildWithPrefix()
//
//	    sql := fmt.Sprintf(`
//	        SELECT product_id, kind, quality, created_at
//	        FROM interactions
//	        %s
//	        ORDER BY created_at DESC
//	        LIMIT ?
//	    `, whereClause)
//	    args = append(args, limit)
//
//	    rows, err := db.QueryContext(ctx, sql, args...)
//	    // ...
//	}
//
// Adding custom clauses:
//
//	wb := query.NewWhereBuilder()
//	wb.AddClause("quality >= ?", 5.0)
//	wb.AddClause("position IS NOT NULL")
//
// # Available Filter Methods
//
// The WhereBuilder provides methods for the dominant filter dimensions:
//
//   - AddIdentity: Filters to one acting identity (user or client)
//   - AddProduct: Filters to one product
//   - AddKinds: Filters by interaction kind list (IN clause)
//   - AddStrategies: Filters by originating strategy list (IN clause)
//   - AddSince / AddUntil: Bounds created_at
//   - AddClause: Adds custom WHERE clause with parameters
//
// # SQL Injection Prevention
//
// All methods use parameterized queries with ? placeholders:
//
//	// Safe - parameters are properly escaped by the database driver
//	wb.AddKinds(clientKinds)  // Generates: "kind IN (?, ?)"
//
//	// The generated SQL is safe regardless of input content
//	// Never concatenate user input directly into SQL strings
//
// # Thread Safety
//
// WhereBuilder instances are not thread-safe. Create a new instance per query
// or protect concurrent access with appropriate synchronization.
//
// # Performance
//
//   - Zero allocations for empty builders (returns "1=1")
//   - Efficient string building using slices
//   - No reflection or dynamic SQL parsing
//
// # See Also
//
//   - internal/database: Main database package using this builder
//   - internal/interaction: Kind and Strategy types used with the builder
package query
