// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package api serves the recommendation HTTP surface under /api/v1.
//
// The serving path for every feed endpoint is the same: normalize the
// query, consult the feed cache, on a miss drive the engine, post-filter
// the page against catalog liveness, write position-tagged impressions
// back through the event bus, cache, respond. Identity resolution happens
// once in middleware; handlers read it from the request context.
//
// Responses use one envelope: {success, data, pagination, meta} on
// success, {success:false, error:{kind, message, details, errorId}} on
// failure. The errorId also appears in the server log, so a client report
// can be matched to the exact failure without exposing internals.
package api
