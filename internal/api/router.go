// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/middleware"
)

// Router builds the chi handler tree around a Handlers set.
type Router struct {
	handler *Handlers
	cfg     *config.Config
}

// NewRouter pairs the handlers with server configuration.
func NewRouter(handler *Handlers, cfg *config.Config) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup wires every route. The stack is: request-id and recovery globally,
// CORS globally (OPTIONS preflight must never be rate-limited), then per
// group an IP rate limit, security headers, Prometheus instrumentation,
// and identity resolution.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Id", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and metrics stay outside auth and compression so probes and
	// scrapers see them even when the engine is degraded.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/health", rt.handler.Health)
	})
	if rt.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1/recs", func(r chi.Router) {
		r.Use(httprate.LimitByIP(600, time.Minute))
		r.Use(securityHeaders)
		r.Use(middleware.Metrics)
		r.Use(middleware.Compression)
		r.Use(rt.handler.ResolveIdentity)

		// Feed surfaces; identity optional.
		r.Get("/feed", rt.handler.Feed)
		r.Get("/trending", rt.handler.Trending)
		r.Get("/new", rt.handler.New)
		r.Get("/similar/{productId}", rt.handler.Similar)
		r.Get("/category/{categoryId}", rt.handler.Category)
		r.Get("/maker/{makerId}", rt.handler.Maker)
		r.Get("/tags", rt.handler.Tags)
		r.Get("/interests", rt.handler.Interests)
		r.Get("/collaborative", rt.handler.Collaborative)

		// The live hub upgrades the connection; compression middleware
		// skips upgrade requests.
		if rt.handler.hub != nil {
			r.Get("/live", rt.handler.hub.ServeHTTP)
		}

		// Authenticated surfaces.
		r.Group(func(r chi.Router) {
			r.Use(rt.handler.RequireUser)
			r.Get("/history", rt.handler.History)
			r.Get("/preferences", rt.handler.PreferencesGet)
			r.Put("/preferences", rt.handler.PreferencesPut)
			r.Post("/feedback", rt.handler.Feedback)
			r.Post("/dismiss", rt.handler.Dismiss)
		})

		// Interaction ingest accepts anonymous identities but requires
		// that one resolves; the handler refuses otherwise.
		r.Post("/interaction", rt.handler.Interaction)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, notFoundRoute(r))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "GET, POST, PUT, OPTIONS")
		respondError(w, r, methodNotAllowed(r))
	})

	return r
}

// securityHeaders sets the API-wide response headers. The API serves JSON
// only, so the policy can deny everything.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
