// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/huntboard/huntboard/internal/interaction"
)

// SchemaVersion is stamped on every payload so consumers can reject
// events from a newer producer instead of misreading them.
const SchemaVersion = 1

// Topics. NATS builds map them onto JetStream subjects unchanged.
const (
	TopicInteractions = "interactions.recorded"
	TopicCatalog      = "catalog.product.updated"
	TopicProfiles     = "profiles.updated"
	TopicImpressions  = "recs.impressions"

	// TopicDeadLetter receives messages the router surrendered after
	// exhausting retries.
	TopicDeadLetter = "dlq.events"
)

// metaRequeuedFrom marks a message republished out of the dead-letter
// buffer with the original message ID.
const metaRequeuedFrom = "requeued_from"

// ProductUpdated change kinds.
const (
	ChangeUpserted = "upserted"
	ChangeDelisted = "delisted"
)

// ProfileUpdated triggers.
const (
	TriggerRebuild     = "rebuild"
	TriggerPreferences = "preferences"
)

// InteractionRecorded is published after an interaction has been appended
// to the log. Consumers must treat it as a fact, not a request: the
// record already exists.
type InteractionRecorded struct {
	SchemaVersion int       `json:"schemaVersion"`
	EventID       string    `json:"eventId"`
	InteractionID string    `json:"interactionId"`
	Identity      string    `json:"identity"`
	Anonymous     bool      `json:"anonymous"`
	ProductID     string    `json:"productId"`
	Kind          string    `json:"kind"`
	Strategy      string    `json:"strategy,omitempty"`
	Quality       float64   `json:"quality"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// NewInteractionRecorded builds the event for a freshly appended record.
func NewInteractionRecorded(rec *interaction.Record) *InteractionRecorded {
	return &InteractionRecorded{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		InteractionID: rec.ID,
		Identity:      rec.Identity(),
		Anonymous:     rec.Anonymous(),
		ProductID:     rec.ProductID,
		Kind:          string(rec.Kind),
		Strategy:      string(rec.Strategy),
		Quality:       rec.Quality,
		RecordedAt:    rec.CreatedAt,
	}
}

// Validate checks the payload for the fields every consumer relies on.
func (e *InteractionRecorded) Validate() error {
	if e.SchemaVersion > SchemaVersion {
		return fmt.Errorf("interaction event: schema version %d ahead of %d", e.SchemaVersion, SchemaVersion)
	}
	if e.EventID == "" {
		return fmt.Errorf("interaction event: missing eventId")
	}
	if e.Identity == "" {
		return fmt.Errorf("interaction event: missing identity")
	}
	if e.ProductID == "" {
		return fmt.Errorf("interaction event: missing productId")
	}
	if !interaction.Kind(e.Kind).Valid() {
		return fmt.Errorf("interaction event: invalid kind %q", e.Kind)
	}
	return nil
}

// Significant reports whether the action must invalidate the identity's
// personalized caches immediately.
func (e *InteractionRecorded) Significant() bool {
	return interaction.Kind(e.Kind).Significant()
}

// ProductUpdated is published when a catalog sync upserts or delists a
// product. Any cached feed that could contain the product is stale.
type ProductUpdated struct {
	SchemaVersion int       `json:"schemaVersion"`
	EventID       string    `json:"eventId"`
	ProductID     string    `json:"productId"`
	Change        string    `json:"change"`
	ChangedAt     time.Time `json:"changedAt"`
}

// NewProductUpdated builds the event for a catalog change.
func NewProductUpdated(productID, change string) *ProductUpdated {
	return &ProductUpdated{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		ProductID:     productID,
		Change:        change,
		ChangedAt:     time.Now().UTC(),
	}
}

// Validate checks the payload for the fields every consumer relies on.
func (e *ProductUpdated) Validate() error {
	if e.SchemaVersion > SchemaVersion {
		return fmt.Errorf("product event: schema version %d ahead of %d", e.SchemaVersion, SchemaVersion)
	}
	if e.EventID == "" {
		return fmt.Errorf("product event: missing eventId")
	}
	if e.ProductID == "" {
		return fmt.Errorf("product event: missing productId")
	}
	switch e.Change {
	case ChangeUpserted, ChangeDelisted:
	default:
		return fmt.Errorf("product event: invalid change %q", e.Change)
	}
	return nil
}

// ProfileUpdated is published after a taste profile has been rebuilt or
// its settings changed, so cached personalized feeds for the identity can
// be dropped.
type ProfileUpdated struct {
	SchemaVersion int       `json:"schemaVersion"`
	EventID       string    `json:"eventId"`
	Identity      string    `json:"identity"`
	Trigger       string    `json:"trigger"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewProfileUpdated builds the event for a profile change.
func NewProfileUpdated(identity, trigger string) *ProfileUpdated {
	return &ProfileUpdated{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Identity:      identity,
		Trigger:       trigger,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Validate checks the payload for the fields every consumer relies on.
func (e *ProfileUpdated) Validate() error {
	if e.SchemaVersion > SchemaVersion {
		return fmt.Errorf("profile event: schema version %d ahead of %d", e.SchemaVersion, SchemaVersion)
	}
	if e.EventID == "" {
		return fmt.Errorf("profile event: missing eventId")
	}
	if e.Identity == "" {
		return fmt.Errorf("profile event: missing identity")
	}
	switch e.Trigger {
	case TriggerRebuild, TriggerPreferences:
	default:
		return fmt.Errorf("profile event: invalid trigger %q", e.Trigger)
	}
	return nil
}

// ServedItem is one product slot of a delivered feed page.
type ServedItem struct {
	ProductID string `json:"productId"`
	Position  int    `json:"position"`
}

// ImpressionsServed is published after a feed page has been delivered, so
// served slots enter the interaction log without a client round-trip.
type ImpressionsServed struct {
	SchemaVersion int          `json:"schemaVersion"`
	EventID       string       `json:"eventId"`
	UserID        string       `json:"userId,omitempty"`
	ClientID      string       `json:"clientId,omitempty"`
	Strategy      string       `json:"strategy"`
	Items         []ServedItem `json:"items"`
	ServedAt      time.Time    `json:"servedAt"`
}

// NewImpressionsServed builds the event for a delivered feed page.
func NewImpressionsServed(userID, clientID, strategy string, items []ServedItem) *ImpressionsServed {
	return &ImpressionsServed{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		UserID:        userID,
		ClientID:      clientID,
		Strategy:      strategy,
		Items:         items,
		ServedAt:      time.Now().UTC(),
	}
}

// Identity returns the acting identity, mirroring interaction records.
func (e *ImpressionsServed) Identity() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.ClientID
}

// Validate checks the payload for the fields every consumer relies on.
func (e *ImpressionsServed) Validate() error {
	if e.SchemaVersion > SchemaVersion {
		return fmt.Errorf("impression event: schema version %d ahead of %d", e.SchemaVersion, SchemaVersion)
	}
	if e.EventID == "" {
		return fmt.Errorf("impression event: missing eventId")
	}
	if e.Identity() == "" {
		return fmt.Errorf("impression event: missing identity")
	}
	if len(e.Items) == 0 {
		return fmt.Errorf("impression event: no items")
	}
	for i, item := range e.Items {
		if item.ProductID == "" {
			return fmt.Errorf("impression event: item %d missing productId", i)
		}
	}
	return nil
}

// Encode validates and marshals a payload for the wire.
func Encode(e interface{ Validate() error }) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// DecodeInteraction unmarshals and validates an interactions.recorded
// payload.
func DecodeInteraction(data []byte) (*InteractionRecorded, error) {
	var e InteractionRecorded
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal interaction event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodeProductUpdated unmarshals and validates a catalog.product.updated
// payload.
func DecodeProductUpdated(data []byte) (*ProductUpdated, error) {
	var e ProductUpdated
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal product event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodeProfileUpdated unmarshals and validates a profiles.updated
// payload.
func DecodeProfileUpdated(data []byte) (*ProfileUpdated, error) {
	var e ProfileUpdated
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal profile event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodeImpressions unmarshals and validates a recs.impressions payload.
func DecodeImpressions(data []byte) (*ImpressionsServed, error) {
	var e ImpressionsServed
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal impression event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
