// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeedFile(t *testing.T) {
	t.Parallel()

	seed := `{
		"categories": [
			{"id": "cat-dev", "slug": "developer-tools", "name": "Developer Tools"},
			{"id": "cat-dev-ci", "slug": "ci-cd", "name": "CI/CD", "parentId": "cat-dev"}
		],
		"products": [
			{"id": "p1", "slug": "shipfast", "name": "ShipFast", "makerId": "m1", "categoryId": "cat-dev-ci", "tags": ["AI"], "createdAt": "2026-08-01T10:00:00Z"},
			{"id": "p2", "slug": "orphan", "name": "Orphan", "makerId": "m1", "categoryId": "cat-unknown"},
			{"id": "", "name": "Nameless"}
		]
	}`

	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	store := NewMemoryStore()
	if err := LoadSeedFile(path, store); err != nil {
		t.Fatalf("LoadSeedFile() error = %v", err)
	}

	if store.Len() != 1 {
		t.Errorf("store has %d products, want 1 (orphan and invalid skipped)", store.Len())
	}
}

func TestLoadSeedFileErrors(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	if err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.json"), store); err == nil {
		t.Error("LoadSeedFile(missing) error = nil, want read error")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if err := LoadSeedFile(bad, store); err == nil {
		t.Error("LoadSeedFile(malformed) error = nil, want parse error")
	}
}
