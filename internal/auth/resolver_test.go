// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func jwtConfig() config.AuthConfig {
	return config.AuthConfig{
		Mode:           "jwt",
		JWTSecret:      testSecret,
		ClientIDHeader: "X-Client-Id",
	}
}

func mintToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()

	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/api/v1/recs/feed", nil)
}

func TestResolveAnonymousFingerprint(t *testing.T) {
	t.Parallel()

	r := NewResolver(jwtConfig())
	req := newRequest(t)
	req.Header.Set("X-Client-Id", "fp-abc")

	id, err := r.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if id.UserID != "" || id.ClientID != "fp-abc" {
		t.Errorf("identity = %+v, want anonymous fp-abc", id)
	}
	if !id.Anonymous() || !id.Resolved() {
		t.Errorf("Anonymous() = %v, Resolved() = %v, want true, true", id.Anonymous(), id.Resolved())
	}
	if id.Key() != "fp-abc" {
		t.Errorf("Key() = %q, want fp-abc", id.Key())
	}
}

func TestResolveNoIdentity(t *testing.T) {
	t.Parallel()

	r := NewResolver(jwtConfig())

	id, err := r.FromRequest(newRequest(t))
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if id.Resolved() {
		t.Errorf("identity = %+v, want unresolved", id)
	}
}

func TestResolveBearerToken(t *testing.T) {
	t.Parallel()

	r := NewResolver(jwtConfig())
	req := newRequest(t)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "u-42", time.Hour))
	req.Header.Set("X-Client-Id", "fp-abc")

	id, err := r.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if id.UserID != "u-42" {
		t.Errorf("UserID = %q, want u-42", id.UserID)
	}
	if id.ClientID != "fp-abc" {
		t.Errorf("ClientID = %q, want fingerprint preserved", id.ClientID)
	}
	if id.Anonymous() {
		t.Error("Anonymous() = true for authenticated identity")
	}
	if id.Key() != "u-42" {
		t.Errorf("Key() = %q, want the user ID to win", id.Key())
	}
}

func TestResolveCookieFallback(t *testing.T) {
	t.Parallel()

	r := NewResolver(jwtConfig())
	req := newRequest(t)
	req.AddCookie(&http.Cookie{Name: "token", Value: mintToken(t, testSecret, "u-7", time.Hour)})

	id, err := r.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if id.UserID != "u-7" {
		t.Errorf("UserID = %q, want u-7 from cookie", id.UserID)
	}
}

func TestResolveRefusals(t *testing.T) {
	t.Parallel()

	r := NewResolver(jwtConfig())

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name      string
		authorize func(req *http.Request)
	}{
		{
			name: "expired token",
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "u-1", -time.Minute))
			},
		},
		{
			name: "wrong secret",
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+mintToken(t, strings.Repeat("x", 32), "u-1", time.Hour))
			},
		},
		{
			name: "alg none",
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+noneToken)
			},
		},
		{
			name: "no subject",
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "", time.Hour))
			},
		},
		{
			name: "garbage token",
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer not.a.jwt")
			},
		},
		{
			name: "wrong scheme",
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := newRequest(t)
			req.Header.Set("X-Client-Id", "fp-abc")
			tt.authorize(req)

			id, err := r.FromRequest(req)
			if !apperr.IsKind(err, apperr.KindUnauthorized) {
				t.Fatalf("FromRequest() error = %v, want kind %s", err, apperr.KindUnauthorized)
			}
			if id.UserID != "" {
				t.Errorf("UserID = %q after refusal, want empty", id.UserID)
			}
		})
	}
}

func TestModeNoneIgnoresTokens(t *testing.T) {
	t.Parallel()

	r := NewResolver(config.AuthConfig{Mode: "none", ClientIDHeader: "X-Client-Id"})
	req := newRequest(t)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "u-1", time.Hour))
	req.Header.Set("X-Client-Id", "fp-abc")

	id, err := r.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if id.UserID != "" || id.ClientID != "fp-abc" {
		t.Errorf("identity = %+v, want fingerprint only in mode none", id)
	}
}

func TestJWTModeWithoutSecretRefusesTokens(t *testing.T) {
	t.Parallel()

	r := NewResolver(config.AuthConfig{Mode: "jwt", ClientIDHeader: "X-Client-Id"})
	req := newRequest(t)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "u-1", time.Hour))

	_, err := r.FromRequest(req)
	if !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("FromRequest() error = %v, want kind %s", err, apperr.KindUnauthorized)
	}
}

func TestFingerprintSanitized(t *testing.T) {
	t.Parallel()

	r := NewResolver(jwtConfig())
	req := newRequest(t)
	req.Header.Set("X-Client-Id", "  "+strings.Repeat("f", 500)+"  ")

	id, err := r.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if len(id.ClientID) != maxFingerprintLength {
		t.Errorf("ClientID length = %d, want capped at %d", len(id.ClientID), maxFingerprintLength)
	}
	if strings.ContainsAny(id.ClientID, " \t") {
		t.Error("ClientID retains surrounding whitespace")
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	t.Parallel()

	want := Identity{UserID: "u-1", ClientID: "fp-abc"}
	ctx := ContextWithIdentity(context.Background(), want)

	if got := IdentityFromContext(ctx); got != want {
		t.Errorf("IdentityFromContext() = %+v, want %+v", got, want)
	}
	if got := IdentityFromContext(context.Background()); got.Resolved() {
		t.Errorf("IdentityFromContext(empty) = %+v, want zero", got)
	}
}
