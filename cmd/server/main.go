// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package main is the entry point for the Huntboard recommendation server.
//
// Huntboard serves personalized product feeds for a product discovery
// marketplace: trending, new arrivals, similarity, interest-based and
// collaborative recommendations, blended per user and kept fresh by an
// interaction event pipeline.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered env/file/defaults via Koanf v2
//  2. Interaction log: DuckDB, with 90-day retention purging
//  3. Key-value store: BadgerDB for profiles and dedup markers
//  4. Catalog: in-memory snapshot behind a circuit breaker, optionally
//     seeded from a JSON file
//  5. Profiles: affinity builder, store, and background refresher
//  6. Event bus: in-process watermill channels, or NATS JetStream with
//     the nats build tag
//  7. Engine: candidate generators and the feed blender
//  8. HTTP API: chi router under /api/v1/recs
//
// Everything long-running sits in a suture supervision tree with three
// layers (data, messaging, api) so a crashing loop restarts alone instead
// of taking the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables prefixed HUNTBOARD_, an optional
// config.yaml, and built-in defaults.
//
// For JWT identity resolution (default):
//   - HUNTBOARD_AUTH_JWT_SECRET: 32+ character HMAC secret shared with
//     the marketplace's token issuer
//
// Anonymous visitors are identified by the X-Client-Id header.
//
// # Build Tags
//
//	go build -tags "nats" ./cmd/server   # NATS JetStream event bus
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// stops accepting connections and drains in-flight requests, then the
// messaging and data layers stop in supervisor order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/huntboard/huntboard/internal/api"
	"github.com/huntboard/huntboard/internal/auth"
	"github.com/huntboard/huntboard/internal/cache"
	"github.com/huntboard/huntboard/internal/catalog"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/database"
	"github.com/huntboard/huntboard/internal/events"
	"github.com/huntboard/huntboard/internal/ingress"
	"github.com/huntboard/huntboard/internal/kvstore"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/profile"
	"github.com/huntboard/huntboard/internal/realtime"
	"github.com/huntboard/huntboard/internal/recommend"
	"github.com/huntboard/huntboard/internal/recommend/blend"
	"github.com/huntboard/huntboard/internal/recommend/generators"
	"github.com/huntboard/huntboard/internal/supervisor"

	gobreaker "github.com/sony/gobreaker/v2"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Auth.Mode).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting Huntboard")

	if cfg.Auth.Mode == "none" {
		logging.Warn().Msg("Identity resolution is DISABLED (AUTH_MODE=none); every caller is anonymous")
	}

	// Interaction log.
	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open interaction log")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing interaction log")
		}
	}()

	// Badger backs the profile store and the ingress dedup index.
	kv, err := kvstore.Open(cfg.Profile.StorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open key-value store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing key-value store")
		}
	}()

	// Catalog snapshot, optionally seeded, always behind the breaker so a
	// sick refresh path fails fast instead of stalling feed requests.
	memStore := catalog.NewMemoryStore()
	if cfg.Catalog.SeedFile != "" {
		if err := catalog.LoadSeedFile(cfg.Catalog.SeedFile, memStore); err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Catalog.SeedFile).Msg("Failed to load catalog seed")
		}
		logging.Info().Int("products", memStore.Len()).Msg("Catalog seeded")
	}
	catalogStore := catalog.NewBreakerStore(memStore, gobreaker.Settings{
		MaxRequests: cfg.Catalog.Breaker.MaxRequests,
		Interval:    cfg.Catalog.Breaker.Interval,
		Timeout:     cfg.Catalog.Breaker.Timeout,
	})

	// Profiles.
	builder := profile.NewBuilder(db, catalogStore, cfg.Profile)
	profileStore := profile.NewStore(kv, 0, cfg.Profile.FreshFor)
	profiles := profile.NewService(profileStore, builder, cfg.Profile.FreshFor, cfg.Profile.BuildBudget)

	// Feed cache.
	feedCache := cache.New(cache.Config{
		DefaultTTL:      cfg.Cache.DefaultTTL,
		TrendingTTL:     cfg.Cache.TrendingTTL,
		SimilarTTL:      cfg.Cache.SimilarTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		MaxEntries:      cfg.Cache.MaxEntries,
	})

	// Event bus: in-process channels by default, JetStream with the nats
	// build tag.
	bus := events.NewBus(cfg.Events)
	if cfg.NATS.Enabled {
		natsBus, err := events.NewNATSBus(cfg.NATS, cfg.Events)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect NATS event bus")
		}
		bus = natsBus
		logging.Info().Str("url", cfg.NATS.URL).Msg("NATS event bus connected")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// Live updates over WebSocket.
	var hub *realtime.Hub
	if cfg.Realtime.Enabled {
		hub = realtime.NewHub(cfg.Realtime, realtime.NewRegistry())
	}

	// Interaction ingress. Impression write-backs flow through the bus and
	// land here via the event router.
	recorder := ingress.NewService(cfg.Ingress, db, bus, kv)

	// Event fan-out: cache invalidation, profile staleness, live pushes,
	// impression persistence.
	var notifier events.Notifier
	if hub != nil {
		notifier = hub
	}
	eventHandlers := events.NewHandlers(feedCache, profiles, notifier, recorder)
	eventRouter, err := events.NewRouter(cfg.Events, bus, eventHandlers)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build event router")
	}
	deadLetter := events.NewDeadLetter(cfg.Events, bus)

	// Engine and generators.
	engine := recommend.NewEngine(cfg.Engine, catalogStore, db, profiles, blend.New())
	trending := generators.NewTrending(catalogStore, db, cfg.Engine.Trending)
	engine.Register(trending)
	engine.Register(generators.NewArrivals(catalogStore, cfg.Engine.New))
	engine.Register(generators.NewSimilar(catalogStore))
	engine.Register(generators.NewCategory(catalogStore))
	engine.Register(generators.NewMaker(catalogStore))
	engine.Register(generators.NewTag(catalogStore))
	engine.Register(generators.NewHistory(catalogStore, db, cfg.Engine.History))
	engine.Register(generators.NewCollaborative(catalogStore, db, cfg.Engine.Collaborative))
	engine.Register(generators.NewInterests(catalogStore, trending, cfg.Engine.Alpha))

	// HTTP surface.
	resolver := auth.NewResolver(cfg.Auth)
	var liveHub api.LiveHub
	if hub != nil {
		liveHub = hub
	}
	handlers := api.NewHandlers(engine, catalogStore, feedCache, profiles, recorder, bus, resolver, liveHub, db)
	httpServer := api.NewServer(cfg.Server, api.NewRouter(handlers, cfg).Setup())

	// Supervision tree: data, messaging, and api layers restart
	// independently.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddData(database.NewPurger(db, cfg.Database.PurgeInterval))
	tree.AddData(kvstore.NewGC(kv, 0))
	tree.AddData(profile.NewRefresher(profiles, cfg.Profile.RefreshInterval))
	tree.AddData(feedCache)

	tree.AddMessaging(eventRouter)
	tree.AddMessaging(deadLetter)
	tree.AddMessaging(recorder)
	if hub != nil {
		tree.AddMessaging(hub)
	}

	tree.AddAPI(supervisor.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", httpServer.Addr).
		Msg("Huntboard listening")

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree stopped")
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}

	logging.Info().Msg("Huntboard stopped")
}
