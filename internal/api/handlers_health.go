// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// HealthComponent is one subsystem's health line.
type HealthComponent struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Uptime     string                     `json:"uptime"`
	Components map[string]HealthComponent `json:"components"`
}

// Health reports component status. The interaction log is the only hard
// dependency: without it ingestion loses durability, so a failed ping
// degrades the whole report and the endpoint returns 503 for probes.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     "ok",
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: make(map[string]HealthComponent),
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["interaction_log"] = HealthComponent{Status: "down", Detail: err.Error()}
		} else {
			resp.Components["interaction_log"] = HealthComponent{Status: "ok"}
		}
	}

	if h.feedCache != nil {
		stats := h.feedCache.GetStats()
		resp.Components["feed_cache"] = HealthComponent{
			Status: "ok",
			Detail: "entries=" + strconv.Itoa(int(stats.TotalKeys)),
		}
	}

	if h.hub != nil {
		resp.Components["live_hub"] = HealthComponent{
			Status: "ok",
			Detail: "clients=" + strconv.Itoa(h.hub.ClientCount()),
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, Envelope{Success: resp.Status == "ok", Data: resp})
}
