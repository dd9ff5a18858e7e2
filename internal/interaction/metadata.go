// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package interaction

import (
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Metadata is the per-event context bag. A shared header (source, session,
// referrer, device) applies to every kind; the engagement fields are
// meaningful for view/click kinds and the render fields for impressions.
// Unknown keys round-trip opaquely through Extra so newer clients never lose
// data on older servers.
//
// Decoding is deliberately lenient: a malformed known field decodes to its
// zero value (the scorer then ignores it) and the raw value is preserved in
// Extra. Decoding never fails on value types.
type Metadata struct {
	Source    string `json:"source,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	Device    string `json:"device,omitempty"`

	// Engagement fields (view, click).
	TimeOnPage      float64 `json:"timeOnPage,omitempty"`      // seconds
	ScrollDepth     float64 `json:"scrollDepth,omitempty"`     // fraction in [0,1]
	SessionDuration float64 `json:"sessionDuration,omitempty"` // seconds
	ClickCount      int     `json:"clickCount,omitempty"`

	// Render fields (impression).
	MatchedTags   []string `json:"matchedTags,omitempty"`
	ScoreAtRender float64  `json:"scoreAtRender,omitempty"`
	ExperimentID  string   `json:"experimentId,omitempty"`
	Variant       string   `json:"variant,omitempty"`

	// Extra holds unrecognized keys verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownMetadataKeys are handled by the typed fields above.
var knownMetadataKeys = map[string]struct{}{
	"source": {}, "sessionId": {}, "referrer": {}, "device": {},
	"timeOnPage": {}, "scrollDepth": {}, "sessionDuration": {}, "clickCount": {},
	"matchedTags": {}, "scoreAtRender": {}, "experimentId": {}, "variant": {},
}

// UnmarshalJSON decodes leniently. Only a top-level shape error (not an
// object) is reported; malformed values for known keys degrade to zero
// values and are kept raw in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Metadata{}
	for key, val := range raw {
		switch key {
		case "source":
			m.Source, _ = lenientString(val)
		case "sessionId":
			m.SessionID, _ = lenientString(val)
		case "referrer":
			m.Referrer, _ = lenientString(val)
		case "device":
			m.Device, _ = lenientString(val)
		case "timeOnPage":
			m.TimeOnPage, _ = lenientFloat(val)
		case "scrollDepth":
			m.ScrollDepth, _ = lenientFloat(val)
		case "sessionDuration":
			m.SessionDuration, _ = lenientFloat(val)
		case "clickCount":
			m.ClickCount, _ = lenientInt(val)
		case "matchedTags":
			m.MatchedTags, _ = lenientStrings(val)
		case "scoreAtRender":
			m.ScoreAtRender, _ = lenientFloat(val)
		case "experimentId":
			m.ExperimentID, _ = lenientString(val)
		case "variant":
			m.Variant, _ = lenientString(val)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]json.RawMessage)
			}
			m.Extra[key] = val
			continue
		}

		// Keep the raw value of a known key too when it failed to decode,
		// so malformed producer data survives the round trip.
		if !decoded(key, m, val) {
			if m.Extra == nil {
				m.Extra = make(map[string]json.RawMessage)
			}
			m.Extra[key] = val
		}
	}
	return nil
}

// decoded reports whether the known key's value was representable.
func decoded(key string, m *Metadata, val json.RawMessage) bool {
	switch key {
	case "source", "sessionId", "referrer", "device", "experimentId", "variant":
		_, ok := lenientString(val)
		return ok
	case "timeOnPage", "scrollDepth", "sessionDuration", "scoreAtRender":
		_, ok := lenientFloat(val)
		return ok
	case "clickCount":
		_, ok := lenientInt(val)
		return ok
	case "matchedTags":
		_, ok := lenientStrings(val)
		return ok
	}
	return true
}

// MarshalJSON merges typed fields with Extra. Typed fields win on collision.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+12)
	for key, val := range m.Extra {
		if _, known := knownMetadataKeys[key]; known {
			continue
		}
		out[key] = val
	}

	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.SessionID != "" {
		out["sessionId"] = m.SessionID
	}
	if m.Referrer != "" {
		out["referrer"] = m.Referrer
	}
	if m.Device != "" {
		out["device"] = m.Device
	}
	if m.TimeOnPage != 0 {
		out["timeOnPage"] = m.TimeOnPage
	}
	if m.ScrollDepth != 0 {
		out["scrollDepth"] = m.ScrollDepth
	}
	if m.SessionDuration != 0 {
		out["sessionDuration"] = m.SessionDuration
	}
	if m.ClickCount != 0 {
		out["clickCount"] = m.ClickCount
	}
	if len(m.MatchedTags) > 0 {
		out["matchedTags"] = m.MatchedTags
	}
	if m.ScoreAtRender != 0 {
		out["scoreAtRender"] = m.ScoreAtRender
	}
	if m.ExperimentID != "" {
		out["experimentId"] = m.ExperimentID
	}
	if m.Variant != "" {
		out["variant"] = m.Variant
	}

	return json.Marshal(out)
}

// lenientString accepts JSON strings and bare scalars.
func lenientString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "", false
}

// lenientFloat accepts JSON numbers and numeric strings; rejects NaN/Inf.
func lenientFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}

// lenientInt accepts JSON integers, floats with integral value, and numeric
// strings.
func lenientInt(raw json.RawMessage) (int, bool) {
	if f, ok := lenientFloat(raw); ok {
		return int(f), true
	}
	return 0, false
}

// lenientStrings accepts arrays of strings, skipping non-string members.
func lenientStrings(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := lenientString(item); ok {
			out = append(out, s)
		}
	}
	return out, true
}
