// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package supervisor owns the process lifecycle as a suture v4 tree.
//
// The tree has three child layers so failures stay contained:
//
//   - data: retention purger, badger GC, profile refresher
//   - messaging: event router, dead-letter buffer, live hub, ingress janitor
//   - api: the HTTP server
//
// A crash-looping data service backs off on its own layer; the API keeps
// serving cached feeds meanwhile. Services are plain suture.Service
// implementations (Serve(ctx) error) owned by their packages; this package
// only arranges them and bridges suture's slog events into zerolog.
package supervisor
