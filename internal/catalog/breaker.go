// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package catalog

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/logging"
)

// BreakerStore wraps a Store with a circuit breaker. When the catalog
// backend degrades, the breaker opens and calls fail fast with a
// DependencyUnavailable error instead of piling up on a sick dependency.
// Generators treat that like any other generator failure, so the blender
// degrades gracefully.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[interface{}]
}

var _ Store = (*BreakerStore)(nil)

// NewBreakerStore wraps a store with breaker settings.
func NewBreakerStore(inner Store, settings gobreaker.Settings) *BreakerStore {
	if settings.Name == "" {
		settings.Name = "catalog"
	}
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("catalog breaker state change")
		}
	}
	if settings.IsSuccessful == nil {
		// A NotFound is a healthy negative answer, not a backend failure.
		settings.IsSuccessful = func(err error) bool {
			return err == nil || apperr.IsKind(err, apperr.KindNotFound)
		}
	}

	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[interface{}](settings),
	}
}

// Product implements Store.
func (s *BreakerStore) Product(ctx context.Context, id string) (*Product, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Product(ctx, id)
	})
	if err != nil {
		return nil, classifyBreakerErr(err)
	}
	return out.(*Product), nil
}

// Products implements Store.
func (s *BreakerStore) Products(ctx context.Context, ids []string) ([]*Product, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Products(ctx, ids)
	})
	if err != nil {
		return nil, classifyBreakerErr(err)
	}
	return out.([]*Product), nil
}

// List implements Store.
func (s *BreakerStore) List(ctx context.Context, f Filter) ([]*Product, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.List(ctx, f)
	})
	if err != nil {
		return nil, classifyBreakerErr(err)
	}
	return out.([]*Product), nil
}

// Category implements Store.
func (s *BreakerStore) Category(ctx context.Context, id string) (*Category, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Category(ctx, id)
	})
	if err != nil {
		return nil, classifyBreakerErr(err)
	}
	return out.(*Category), nil
}

// Categories implements Store.
func (s *BreakerStore) Categories(ctx context.Context) ([]*Category, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Categories(ctx)
	})
	if err != nil {
		return nil, classifyBreakerErr(err)
	}
	return out.([]*Category), nil
}

// State returns the breaker state for health reporting.
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}

// classifyBreakerErr maps breaker-open failures to DependencyUnavailable
// while passing through errors from the store itself (a NotFound is not a
// breaker trip).
func classifyBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(err, apperr.KindUnavailable, "catalog unavailable")
	}
	return err
}
