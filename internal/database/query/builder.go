// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package query provides SQL fragment building for the interactions table.
// It keeps parameter handling consistent across the aggregate queries.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/huntboard/huntboard/internal/interaction"
)

// WhereBuilder constructs WHERE clauses with parameterized arguments.
//
// Example:
//
//	wb := query.NewWhereBuilder().
//		AddIdentity("u-1").
//		AddKinds([]interaction.Kind{interaction.KindView}).
//		AddSince(since)
//	where, args := wb.BuildWithPrefix()
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw condition with its arguments. For conditions not
// covered by the helpers.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddIdentity filters to one identity. Empty identity is skipped.
func (wb *WhereBuilder) AddIdentity(identity string) *WhereBuilder {
	if identity != "" {
		wb.clauses = append(wb.clauses, "identity = ?")
		wb.args = append(wb.args, identity)
	}
	return wb
}

// AddProduct filters to one product. Empty ID is skipped.
func (wb *WhereBuilder) AddProduct(productID string) *WhereBuilder {
	if productID != "" {
		wb.clauses = append(wb.clauses, "product_id = ?")
		wb.args = append(wb.args, productID)
	}
	return wb
}

// AddKinds filters to the given interaction kinds with an IN clause. An
// empty slice is skipped.
func (wb *WhereBuilder) AddKinds(kinds []interaction.Kind) *WhereBuilder {
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, kind := range kinds {
			placeholders[i] = "?"
			wb.args = append(wb.args, string(kind))
		}
		wb.clauses = append(wb.clauses, fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ", ")))
	}
	return wb
}

// AddStrategies filters to the given serving strategies with an IN clause.
func (wb *WhereBuilder) AddStrategies(strategies []interaction.Strategy) *WhereBuilder {
	if len(strategies) > 0 {
		placeholders := make([]string, len(strategies))
		for i, s := range strategies {
			placeholders[i] = "?"
			wb.args = append(wb.args, string(s))
		}
		wb.clauses = append(wb.clauses, fmt.Sprintf("strategy IN (%s)", strings.Join(placeholders, ", ")))
	}
	return wb
}

// AddSince keeps rows created at or after the instant. Zero time is skipped.
func (wb *WhereBuilder) AddSince(since time.Time) *WhereBuilder {
	if !since.IsZero() {
		wb.clauses = append(wb.clauses, "created_at >= ?")
		wb.args = append(wb.args, since)
	}
	return wb
}

// AddUntil keeps rows created before the instant. Zero time is skipped.
func (wb *WhereBuilder) AddUntil(until time.Time) *WhereBuilder {
	if !until.IsZero() {
		wb.clauses = append(wb.clauses, "created_at < ?")
		wb.args = append(wb.args, until)
	}
	return wb
}

// Build returns the WHERE clause body (no "WHERE" keyword) and arguments.
// Returns ("1=1", []) when no clauses were added.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the clause with the "WHERE " prefix.
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	clause, args := wb.Build()
	return "WHERE " + clause, args
}

// Count returns the number of clauses added.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty reports whether no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
