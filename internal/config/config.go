// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package config loads and validates Huntboard configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Built-in defaults
//  2. YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the Huntboard server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Auth     AuthConfig     `koanf:"auth"`
	Database DatabaseConfig `koanf:"database"`
	Profile  ProfileConfig  `koanf:"profile"`
	Engine   EngineConfig   `koanf:"engine"`
	Cache    CacheConfig    `koanf:"cache"`
	Ingress  IngressConfig  `koanf:"ingress"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Events   EventsConfig   `koanf:"events"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	NATS     NATSConfig     `koanf:"nats"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	Environment     string        `koanf:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AuthConfig holds identity resolution settings.
//
// Huntboard never issues tokens; it verifies bearer tokens minted by the
// marketplace and otherwise falls back to the anonymous client fingerprint
// header.
type AuthConfig struct {
	// Mode is "jwt" or "none". With "none" every request resolves to the
	// anonymous fingerprint only.
	Mode string `koanf:"mode"`

	// JWTSecret is the HMAC secret shared with the token issuer (32+ chars).
	JWTSecret string `koanf:"jwt_secret"`

	// ClientIDHeader carries the anonymous client fingerprint.
	ClientIDHeader string `koanf:"client_id_header"`
}

// DatabaseConfig holds interaction log (DuckDB) settings.
type DatabaseConfig struct {
	// Path of the DuckDB file. Empty means in-memory (tests, dev).
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads 0 means the DuckDB default (all cores).
	Threads int `koanf:"threads"`
	// PurgeInterval is how often expired interactions are purged.
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

// ProfileConfig holds user profile builder and store settings.
type ProfileConfig struct {
	// StorePath is the BadgerDB directory. Empty means in-memory.
	StorePath string `koanf:"store_path"`

	// HalfLife is the interaction decay half-life. A contribution loses half
	// its weight after this much time.
	HalfLife time.Duration `koanf:"half_life"`

	// FreshFor is how long a rebuilt profile is considered fresh.
	FreshFor time.Duration `koanf:"fresh_for"`

	// BuildBudget bounds synchronous rebuild time; on timeout the stale
	// profile is served and a background refresh is scheduled.
	BuildBudget time.Duration `koanf:"build_budget"`

	TopCategories int `koanf:"top_categories"`
	TopTags       int `koanf:"top_tags"`

	// RefreshInterval is the background refresher tick.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// EngineConfig holds recommendation engine settings.
type EngineConfig struct {
	// GeneratorBudget bounds each candidate generator.
	GeneratorBudget time.Duration `koanf:"generator_budget"`
	// QueryBudget bounds a whole blended query.
	QueryBudget time.Duration `koanf:"query_budget"`
	// Alpha weights tag affinity relative to category affinity in the
	// interests generator.
	Alpha float64 `koanf:"alpha"`

	Trending      TrendingConfig      `koanf:"trending"`
	New           NewConfig           `koanf:"new"`
	History       HistoryConfig       `koanf:"history"`
	Collaborative CollaborativeConfig `koanf:"collaborative"`
	Blender       BlenderConfig       `koanf:"blender"`
}

// TrendingConfig holds trending generator settings.
type TrendingConfig struct {
	WindowDays     int     `koanf:"window_days"`
	UpvoteWeight   float64 `koanf:"upvote_weight"`
	ViewWeight     float64 `koanf:"view_weight"`
	BookmarkWeight float64 `koanf:"bookmark_weight"`
}

// NewConfig holds new-arrivals generator settings.
type NewConfig struct {
	WindowDays int `koanf:"window_days"`
}

// HistoryConfig holds history generator settings.
type HistoryConfig struct {
	SeedCount int `koanf:"seed_count"`
}

// CollaborativeConfig holds collaborative generator settings.
type CollaborativeConfig struct {
	Window          time.Duration `koanf:"window"`
	MaxUsersPerItem int           `koanf:"max_users_per_item"`
}

// BlenderConfig holds feed blender settings.
type BlenderConfig struct {
	// MaxPerCategory caps consecutive same-category items.
	MaxPerCategory int `koanf:"max_per_category"`
	// MakerCapFraction caps one maker's share of a feed page.
	MakerCapFraction float64 `koanf:"maker_cap_fraction"`
	// Overfetch is the per-generator request multiplier.
	Overfetch float64 `koanf:"overfetch"`
	// CrossSourceBoost is applied when multiple generators agree on an item.
	CrossSourceBoost float64 `koanf:"cross_source_boost"`
}

// CacheConfig holds recommendation cache settings.
type CacheConfig struct {
	DefaultTTL      time.Duration `koanf:"default_ttl"`
	TrendingTTL     time.Duration `koanf:"trending_ttl"`
	SimilarTTL      time.Duration `koanf:"similar_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	MaxEntries      int           `koanf:"max_entries"`
}

// IngressConfig holds interaction ingress settings.
type IngressConfig struct {
	// RatePerMinute is the per-identity interaction budget.
	RatePerMinute int `koanf:"rate_per_minute"`
	// DedupWindow is the duplicate-impression suppression window.
	DedupWindow time.Duration `koanf:"dedup_window"`
}

// CatalogConfig holds product catalog collaborator settings.
type CatalogConfig struct {
	// SeedFile optionally points at a JSON product snapshot loaded at boot.
	SeedFile string        `koanf:"seed_file"`
	Breaker  BreakerConfig `koanf:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the catalog client.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// RealtimeConfig holds WebSocket hub settings.
type RealtimeConfig struct {
	Enabled        bool          `koanf:"enabled"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	PongTimeout    time.Duration `koanf:"pong_timeout"`
	PingInterval   time.Duration `koanf:"ping_interval"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBuffer     int           `koanf:"send_buffer"`

	// TrendingInterval is how often the hub pushes a velocity leaderboard
	// to all connected clients.
	TrendingInterval time.Duration `koanf:"trending_interval"`
}

// EventsConfig holds event bus and router settings.
type EventsConfig struct {
	// Buffer is the per-topic channel buffer of the in-process bus.
	Buffer int `koanf:"buffer"`

	CloseTimeout time.Duration `koanf:"close_timeout"`

	// MaxRetries bounds redelivery of a failing message before it is
	// routed to the dead-letter topic.
	MaxRetries       int           `koanf:"max_retries"`
	RetryInterval    time.Duration `koanf:"retry_interval"`
	RetryMaxInterval time.Duration `koanf:"retry_max_interval"`

	// DedupTTL is how long a delivered event ID is remembered.
	DedupTTL     time.Duration `koanf:"dedup_ttl"`
	DedupEntries int           `koanf:"dedup_entries"`

	// DeadLetterMax caps the in-memory dead-letter buffer; the oldest
	// entry is evicted when full.
	DeadLetterMax       int           `koanf:"dead_letter_max"`
	DeadLetterRetention time.Duration `koanf:"dead_letter_retention"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// NATSConfig holds optional JetStream transport settings (nats build tag).
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
}

// defaultConfig returns a Config with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Auth: AuthConfig{
			Mode:           "jwt",
			JWTSecret:      "",
			ClientIDHeader: "X-Client-Id",
		},
		Database: DatabaseConfig{
			Path:          "/data/huntboard.duckdb",
			MaxMemory:     "1GB",
			Threads:       0,
			PurgeInterval: time.Hour,
		},
		Profile: ProfileConfig{
			StorePath:       "/data/profiles",
			HalfLife:        14 * 24 * time.Hour,
			FreshFor:        15 * time.Minute,
			BuildBudget:     250 * time.Millisecond,
			TopCategories:   64,
			TopTags:         256,
			RefreshInterval: time.Minute,
		},
		Engine: EngineConfig{
			GeneratorBudget: 400 * time.Millisecond,
			QueryBudget:     1200 * time.Millisecond,
			Alpha:           0.5,
			Trending: TrendingConfig{
				WindowDays:     7,
				UpvoteWeight:   3.0,
				ViewWeight:     0.1,
				BookmarkWeight: 2.0,
			},
			New: NewConfig{
				WindowDays: 14,
			},
			History: HistoryConfig{
				SeedCount: 20,
			},
			Collaborative: CollaborativeConfig{
				Window:          30 * 24 * time.Hour,
				MaxUsersPerItem: 200,
			},
			Blender: BlenderConfig{
				MaxPerCategory:   2,
				MakerCapFraction: 0.15,
				Overfetch:        1.5,
				CrossSourceBoost: 0.10,
			},
		},
		Cache: CacheConfig{
			DefaultTTL:      300 * time.Second,
			TrendingTTL:     120 * time.Second,
			SimilarTTL:      600 * time.Second,
			CleanupInterval: time.Minute,
			MaxEntries:      10000,
		},
		Ingress: IngressConfig{
			RatePerMinute: 60,
			DedupWindow:   30 * time.Second,
		},
		Catalog: CatalogConfig{
			SeedFile: "",
			Breaker: BreakerConfig{
				MaxRequests:      3,
				Interval:         60 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
		},
		Realtime: RealtimeConfig{
			Enabled:          true,
			WriteTimeout:     10 * time.Second,
			PongTimeout:      60 * time.Second,
			PingInterval:     54 * time.Second,
			MaxMessageSize:   1024,
			SendBuffer:       64,
			TrendingInterval: 30 * time.Second,
		},
		Events: EventsConfig{
			Buffer:              256,
			CloseTimeout:        30 * time.Second,
			MaxRetries:          5,
			RetryInterval:       100 * time.Millisecond,
			RetryMaxInterval:    5 * time.Second,
			DedupTTL:            5 * time.Minute,
			DedupEntries:        10000,
			DeadLetterMax:       1000,
			DeadLetterRetention: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/nats/jetstream",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}

	switch strings.ToLower(c.Auth.Mode) {
	case "jwt":
		if len(c.Auth.JWTSecret) > 0 && len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth.jwt_secret must be at least 32 characters, got %d", len(c.Auth.JWTSecret))
		}
		if c.Server.Environment == "production" && c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required in production with auth.mode=jwt")
		}
	case "none":
	default:
		return fmt.Errorf("auth.mode must be jwt or none, got %q", c.Auth.Mode)
	}

	if c.Profile.HalfLife <= 0 {
		return fmt.Errorf("profile.half_life must be positive, got %v", c.Profile.HalfLife)
	}
	if c.Profile.BuildBudget <= 0 {
		return fmt.Errorf("profile.build_budget must be positive, got %v", c.Profile.BuildBudget)
	}
	if c.Profile.TopCategories < 1 || c.Profile.TopTags < 1 {
		return fmt.Errorf("profile.top_categories and profile.top_tags must be at least 1")
	}

	if c.Engine.GeneratorBudget <= 0 || c.Engine.QueryBudget <= 0 {
		return fmt.Errorf("engine budgets must be positive")
	}
	if c.Engine.GeneratorBudget > c.Engine.QueryBudget {
		return fmt.Errorf("engine.generator_budget %v exceeds engine.query_budget %v",
			c.Engine.GeneratorBudget, c.Engine.QueryBudget)
	}
	if c.Engine.Alpha < 0 || c.Engine.Alpha > 1 {
		return fmt.Errorf("engine.alpha must be in [0,1], got %v", c.Engine.Alpha)
	}
	if c.Engine.Trending.WindowDays < 1 || c.Engine.Trending.WindowDays > 30 {
		return fmt.Errorf("engine.trending.window_days must be 1-30, got %d", c.Engine.Trending.WindowDays)
	}
	if c.Engine.Collaborative.MaxUsersPerItem < 1 {
		return fmt.Errorf("engine.collaborative.max_users_per_item must be at least 1")
	}
	if c.Engine.Blender.MaxPerCategory < 1 {
		return fmt.Errorf("engine.blender.max_per_category must be at least 1")
	}
	if c.Engine.Blender.MakerCapFraction <= 0 || c.Engine.Blender.MakerCapFraction > 1 {
		return fmt.Errorf("engine.blender.maker_cap_fraction must be in (0,1], got %v",
			c.Engine.Blender.MakerCapFraction)
	}
	if c.Engine.Blender.Overfetch < 1 {
		return fmt.Errorf("engine.blender.overfetch must be at least 1, got %v", c.Engine.Blender.Overfetch)
	}

	if c.Cache.DefaultTTL <= 0 || c.Cache.TrendingTTL <= 0 || c.Cache.SimilarTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if c.Ingress.RatePerMinute < 1 {
		return fmt.Errorf("ingress.rate_per_minute must be at least 1, got %d", c.Ingress.RatePerMinute)
	}
	if c.Ingress.DedupWindow <= 0 {
		return fmt.Errorf("ingress.dedup_window must be positive, got %v", c.Ingress.DedupWindow)
	}

	if c.Events.MaxRetries < 0 {
		return fmt.Errorf("events.max_retries must not be negative, got %d", c.Events.MaxRetries)
	}
	if c.Events.DedupTTL <= 0 {
		return fmt.Errorf("events.dedup_ttl must be positive, got %v", c.Events.DedupTTL)
	}
	if c.Events.DeadLetterMax < 1 {
		return fmt.Errorf("events.dead_letter_max must be at least 1, got %d", c.Events.DeadLetterMax)
	}

	return nil
}
