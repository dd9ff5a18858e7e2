// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package profile

import (
	"context"
	"time"

	"github.com/huntboard/huntboard/internal/logging"
)

// refreshBatch caps how many identities one tick rebuilds, so a burst of
// stale marks cannot monopolize the log and catalog.
const refreshBatch = 64

// Refresher rebuilds stale-marked profiles in the background. Interaction
// events and budget-exhausted reads mark identities; each tick drains a
// batch. Runs under the supervisor's data layer.
type Refresher struct {
	svc      *Service
	interval time.Duration
}

// NewRefresher creates a refresher with the given tick interval.
func NewRefresher(svc *Service, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{svc: svc, interval: interval}
}

// Serve implements suture.Service.
func (r *Refresher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Refresher) String() string {
	return "profile-refresher"
}

func (r *Refresher) sweep(ctx context.Context) {
	identities := r.svc.takeStale(refreshBatch)
	if len(identities) == 0 {
		return
	}

	refreshed := 0
	for _, identity := range identities {
		if ctx.Err() != nil {
			// Shutdown mid-batch: requeue what we did not get to.
			r.svc.MarkStale(identity)
			continue
		}

		rctx, cancel := context.WithTimeout(ctx, rebuildTimeout)
		err := r.svc.Refresh(rctx, identity)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Str("identity", identity).Msg("background profile refresh failed")
			continue
		}
		refreshed++
	}

	logging.Debug().
		Int("refreshed", refreshed).
		Int("batch", len(identities)).
		Msg("profile refresh sweep completed")
}
