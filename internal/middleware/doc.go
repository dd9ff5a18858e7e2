// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package middleware provides the HTTP middleware shared by every route:
// request ID correlation, Prometheus instrumentation, and response
// compression. Identity resolution lives in the api package because it
// needs access to the error envelope; everything here is envelope-free
// and composes with any chi router.
package middleware
