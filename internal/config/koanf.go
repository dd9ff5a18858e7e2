// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/huntboard/config.yaml",
	"/etc/huntboard/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in struct defaults
//  2. Config file: optional YAML (if found)
//  3. Environment variables: highest priority
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, TRENDING_WINDOW_DAYS -> engine.trending.window_days
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so unrelated environment noise cannot leak
// into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":          "server.host",
		"http_port":          "server.port",
		"http_read_timeout":  "server.read_timeout",
		"http_write_timeout": "server.write_timeout",
		"shutdown_timeout":   "server.shutdown_timeout",
		"cors_origins":       "server.cors_origins",
		"environment":        "server.environment",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Auth
		"auth_mode":        "auth.mode",
		"jwt_secret":       "auth.jwt_secret",
		"client_id_header": "auth.client_id_header",

		// Interaction log (DuckDB)
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",
		"purge_interval":    "database.purge_interval",

		// Profiles
		"profile_store_path":       "profile.store_path",
		"profile_half_life":        "profile.half_life",
		"profile_fresh_for":        "profile.fresh_for",
		"profile_build_budget":     "profile.build_budget",
		"profile_top_categories":   "profile.top_categories",
		"profile_top_tags":         "profile.top_tags",
		"profile_refresh_interval": "profile.refresh_interval",

		// Engine
		"generator_budget":         "engine.generator_budget",
		"query_budget":             "engine.query_budget",
		"interests_alpha":          "engine.alpha",
		"trending_window_days":     "engine.trending.window_days",
		"trending_upvote_weight":   "engine.trending.upvote_weight",
		"trending_view_weight":     "engine.trending.view_weight",
		"trending_bookmark_weight": "engine.trending.bookmark_weight",
		"new_window_days":          "engine.new.window_days",
		"history_seed_count":       "engine.history.seed_count",
		"collab_window":            "engine.collaborative.window",
		"collab_max_users":         "engine.collaborative.max_users_per_item",
		"blend_max_per_category":   "engine.blender.max_per_category",
		"blend_maker_cap":          "engine.blender.maker_cap_fraction",
		"blend_overfetch":          "engine.blender.overfetch",
		"blend_cross_boost":        "engine.blender.cross_source_boost",

		// Cache
		"cache_default_ttl":      "cache.default_ttl",
		"cache_trending_ttl":     "cache.trending_ttl",
		"cache_similar_ttl":      "cache.similar_ttl",
		"cache_cleanup_interval": "cache.cleanup_interval",
		"cache_max_entries":      "cache.max_entries",

		// Ingress
		"ingress_rate_per_minute": "ingress.rate_per_minute",
		"ingress_dedup_window":    "ingress.dedup_window",

		// Catalog
		"catalog_seed_file":         "catalog.seed_file",
		"catalog_breaker_requests":  "catalog.breaker.max_requests",
		"catalog_breaker_interval":  "catalog.breaker.interval",
		"catalog_breaker_timeout":   "catalog.breaker.timeout",
		"catalog_breaker_threshold": "catalog.breaker.failure_threshold",

		// Realtime
		"realtime_enabled":       "realtime.enabled",
		"realtime_write_timeout": "realtime.write_timeout",
		"realtime_pong_timeout":  "realtime.pong_timeout",
		"realtime_ping_interval": "realtime.ping_interval",

		// Metrics
		"metrics_enabled": "metrics.enabled",

		// NATS (nats build tag)
		"nats_enabled":   "nats.enabled",
		"nats_url":       "nats.url",
		"nats_embedded":  "nats.embedded_server",
		"nats_store_dir": "nats.store_dir",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile sets up a file watcher for hot reload. The caller is
// responsible for mutex protection when swapping configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
