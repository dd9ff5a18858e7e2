// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package auth

import "context"

// Identity is the acting principal resolved from a request: an
// authenticated user, an anonymous client fingerprint, or neither.
type Identity struct {
	UserID   string
	ClientID string
}

// Key returns the identity string the rest of the system keys on: the
// user ID when authenticated, otherwise the client fingerprint.
func (id Identity) Key() string {
	if id.UserID != "" {
		return id.UserID
	}
	return id.ClientID
}

// Anonymous reports whether no authenticated user is attached.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}

// Resolved reports whether any identity is attached at all.
func (id Identity) Resolved() bool {
	return id.UserID != "" || id.ClientID != ""
}

type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity returns a context carrying the identity.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity stored by the middleware, or
// the zero identity when none was resolved.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityContextKey).(Identity); ok {
		return id
	}
	return Identity{}
}
