// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

//go:build !nats

package events

import (
	"errors"

	"github.com/huntboard/huntboard/internal/config"
)

// ErrNATSNotEnabled is returned when the JetStream transport is
// requested without the nats build tag.
var ErrNATSNotEnabled = errors.New("NATS transport not enabled (build with -tags nats)")

// NewNATSBus is a stub for builds without the nats tag.
func NewNATSBus(config.NATSConfig, config.EventsConfig) (*Bus, error) {
	return nil, ErrNATSNotEnabled
}
