// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package ingress

import (
	"testing"
	"time"
)

func TestIdentityLimiterBudget(t *testing.T) {
	t.Parallel()

	l := newIdentityLimiter(3)

	for i := 0; i < 3; i++ {
		if !l.Allow("u-1") {
			t.Fatalf("Allow() #%d = false, want burst of 3", i+1)
		}
	}
	if l.Allow("u-1") {
		t.Error("Allow() over budget = true, want false")
	}

	// Budgets are per identity.
	if !l.Allow("u-2") {
		t.Error("Allow() for fresh identity = false, want true")
	}
}

func TestIdentityLimiterDefaultsBudget(t *testing.T) {
	t.Parallel()

	l := newIdentityLimiter(0)
	if l.burst != 60 {
		t.Errorf("burst = %d, want default 60", l.burst)
	}
}

func TestIdentityLimiterSweep(t *testing.T) {
	t.Parallel()

	l := newIdentityLimiter(10)
	l.Allow("u-1")
	l.Allow("u-2")

	if got := l.size(); got != 2 {
		t.Fatalf("size() = %d, want 2", got)
	}

	// A threshold in the past keeps everything.
	if got := l.sweep(time.Now().Add(-time.Minute)); got != 2 {
		t.Errorf("sweep(past) left %d buckets, want 2", got)
	}

	// A threshold after the last touch drops everything.
	if got := l.sweep(time.Now().Add(time.Minute)); got != 0 {
		t.Errorf("sweep(future) left %d buckets, want 0", got)
	}

	// A swept identity starts over with a full bucket.
	if !l.Allow("u-1") {
		t.Error("Allow() after sweep = false, want true")
	}
}
