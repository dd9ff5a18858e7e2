// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package auth resolves the acting identity on every request. The
// marketplace issues JWTs; this service only verifies them (HS256 with a
// shared secret) and reads the subject as the user ID. Requests without
// a token resolve to the anonymous client fingerprint header, an opaque
// string the client mints and keeps stable.
//
// There is no session state, no login surface, and no role model here.
// Endpoints that need an identity check Identity.Resolved or
// Identity.Anonymous themselves.
package auth
