// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package interaction

import "strings"

// Strategy names the recommendation surface an interaction originated from.
type Strategy string

const (
	StrategyPersonalized  Strategy = "personalized"
	StrategyTrending      Strategy = "trending"
	StrategyNew           Strategy = "new"
	StrategyCategory      Strategy = "category"
	StrategyTag           Strategy = "tag"
	StrategyHistory       Strategy = "history"
	StrategyCollaborative Strategy = "collaborative"
	StrategyMaker         Strategy = "maker"
	StrategySimilar       Strategy = "similar"
	StrategyHybrid        Strategy = "hybrid"
	StrategyFeed          Strategy = "feed"
	StrategyDirect        Strategy = "direct"
	StrategyUnknown       Strategy = "unknown"
)

var canonicalStrategies = map[Strategy]struct{}{
	StrategyPersonalized:  {},
	StrategyTrending:      {},
	StrategyNew:           {},
	StrategyCategory:      {},
	StrategyTag:           {},
	StrategyHistory:       {},
	StrategyCollaborative: {},
	StrategyMaker:         {},
	StrategySimilar:       {},
	StrategyHybrid:        {},
	StrategyFeed:          {},
	StrategyDirect:        {},
	StrategyUnknown:       {},
}

// strategyAliases maps values emitted by older clients onto the canonical
// set. Kept permanently: the producer fleet upgrades slowly.
var strategyAliases = map[string]Strategy{
	"similar-products": StrategySimilar,
	"view_similar":     StrategySimilar,
	"history-based":    StrategyHistory,
	"diversified":      StrategyHybrid,
	"diversified-feed": StrategyHybrid,
}

// CoerceStrategy normalizes a client-supplied strategy string. Unrecognized
// values coerce to StrategyUnknown rather than failing, so new client
// surfaces never break ingestion.
func CoerceStrategy(s string) Strategy {
	normalized := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if normalized == "" {
		return StrategyUnknown
	}
	if _, ok := canonicalStrategies[normalized]; ok {
		return normalized
	}
	if canon, ok := strategyAliases[string(normalized)]; ok {
		return canon
	}
	return StrategyUnknown
}

// Valid reports whether s is already canonical.
func (s Strategy) Valid() bool {
	_, ok := canonicalStrategies[s]
	return ok
}

func (s Strategy) String() string { return string(s) }
