// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package interaction

import "math"

// Quality bounds. Every scored interaction lands in [MinQuality, MaxQuality].
const (
	MinQuality = 0.0
	MaxQuality = 10.0
)

// Engagement adjustment caps.
const (
	timeOnPageCap     = 4.0 // at >= 4 minutes on page
	timeOnPageDivisor = 60.0
	scrollDepthFactor = 3.0
	sessionCap        = 3.0 // at >= 15 minutes in session
	sessionDivisor    = 300.0
	clickCountCap     = 2.0
)

// BaseScore returns the intent weight for a kind. Unknown kinds score like a
// generic positive signal rather than failing, so a new client event type
// degrades gracefully.
func BaseScore(kind Kind) float64 {
	switch kind {
	case KindConversion:
		return 10
	case KindBookmark:
		return 8
	case KindUpvote:
		return 7
	case KindComment:
		return 6
	case KindShare:
		return 5
	case KindClick:
		return 3
	case KindView:
		return 2
	case KindImpression:
		return 1
	case KindDismiss:
		return 0
	default:
		return 1
	}
}

// Score computes the quality of an interaction from its kind and metadata.
// It is pure and total: no I/O, no error path. Malformed or missing
// engagement fields contribute nothing, leaving the base score.
func Score(kind Kind, md Metadata) float64 {
	score := BaseScore(kind)
	score += timeOnPageAdjustment(md.TimeOnPage)
	score += scrollDepthAdjustment(md.ScrollDepth)
	score += sessionAdjustment(md.SessionDuration)
	score += clickAdjustment(md.ClickCount)

	if score < MinQuality {
		return MinQuality
	}
	if score > MaxQuality {
		return MaxQuality
	}
	return score
}

func timeOnPageAdjustment(seconds float64) float64 {
	if !validPositive(seconds) {
		return 0
	}
	return math.Min(seconds/timeOnPageDivisor, timeOnPageCap)
}

func scrollDepthAdjustment(depth float64) float64 {
	// Depth is a fraction; anything outside [0,1] is producer garbage.
	if math.IsNaN(depth) || depth < 0 || depth > 1 {
		return 0
	}
	return depth * scrollDepthFactor
}

func sessionAdjustment(seconds float64) float64 {
	if !validPositive(seconds) {
		return 0
	}
	return math.Min(seconds/sessionDivisor, sessionCap)
}

func clickAdjustment(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(float64(count), clickCountCap)
}

func validPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
