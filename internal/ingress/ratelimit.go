// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package ingress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketIdleAfter is how long an untouched identity keeps its bucket. An
// idle bucket refills to full burst long before this elapses, so sweeping
// it never changes admission.
const bucketIdleAfter = time.Hour

// identityLimiter holds one token bucket per acting identity. Buckets are
// created on first touch; the janitor sweeps the idle ones.
type identityLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIdentityLimiter builds a registry admitting perMinute events per
// identity: burst capacity perMinute, refilled evenly across the minute.
func newIdentityLimiter(perMinute int) *identityLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &identityLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
	}
}

// Allow reports whether the identity has budget for one more event.
func (l *identityLimiter) Allow(identity string) bool {
	l.mu.Lock()
	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[identity] = b
	}
	b.lastSeen = time.Now()
	limiter := b.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// sweep drops buckets idle since before the threshold and returns how
// many identities remain tracked.
func (l *identityLimiter) sweep(threshold time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for identity, b := range l.buckets {
		if b.lastSeen.Before(threshold) {
			delete(l.buckets, identity)
		}
	}
	return len(l.buckets)
}

// size returns the number of tracked identities.
func (l *identityLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
