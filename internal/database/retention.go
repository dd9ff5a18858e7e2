// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/huntboard/huntboard/internal/interaction"
	"github.com/huntboard/huntboard/internal/logging"
)

// PurgeExpired hard-deletes interactions older than the retention window
// and returns the number of rows removed.
func (db *DB) PurgeExpired(ctx context.Context) (int64, error) {
	floor := time.Now().UTC().Add(-interaction.RetentionWindow)

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM interactions WHERE created_at < ?`, floor)
	if err != nil {
		return 0, fmt.Errorf("purge expired interactions: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge row count: %w", err)
	}
	return rows, nil
}

// Purger periodically enforces the retention window. It runs under the
// supervisor's data layer.
type Purger struct {
	db       *DB
	interval time.Duration
}

// NewPurger creates a purger with the given sweep interval.
func NewPurger(db *DB, interval time.Duration) *Purger {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Purger{db: db, interval: interval}
}

// Serve implements suture.Service. It sweeps once at startup and then on
// every tick until the context is canceled.
func (p *Purger) Serve(ctx context.Context) error {
	p.sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (p *Purger) String() string {
	return "retention-purger"
}

func (p *Purger) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	removed, err := p.db.PurgeExpired(sweepCtx)
	if err != nil {
		logging.Warn().Err(err).Msg("retention sweep failed")
		return
	}
	if removed > 0 {
		logging.Info().Int64("removed", removed).Msg("retention sweep purged expired interactions")
	}
}
