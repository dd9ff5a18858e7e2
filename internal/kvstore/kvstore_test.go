// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func TestOpenInMemory(t *testing.T) {
	t.Parallel()

	db, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("profile:u1"), []byte(`{"identity":"u1"}`))
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	var got []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("profile:u1"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			got = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"identity":"u1"}` {
		t.Errorf("value = %q", got)
	}
}

func TestOpenOnDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(%q): %v", dir, err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTTLEntryExpires(t *testing.T) {
	t.Parallel()

	db, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	err = db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte("dedup:k"), []byte{1}).WithTTL(50 * time.Millisecond)
		return txn.SetEntry(entry)
	})
	if err != nil {
		t.Fatalf("set entry: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("dedup:k"))
		return err
	})
	if !errors.Is(err, badger.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after TTL, got %v", err)
	}
}

func TestGCServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	db, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	gc := NewGC(db, 10*time.Millisecond)
	if gc.String() != "kvstore-gc" {
		t.Errorf("String() = %q", gc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- gc.Serve(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
