// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/logging"
)

// maxFingerprintLength caps the anonymous fingerprint. Anything longer
// is a misbehaving client; the prefix is still a stable key.
const maxFingerprintLength = 128

// Resolver turns an incoming request into an Identity. Token issuance
// lives with the marketplace; this side only verifies.
type Resolver struct {
	mode           string
	secret         []byte
	clientIDHeader string
}

// NewResolver builds a resolver from the auth configuration. In jwt mode
// without a secret, bearer tokens are refused rather than trusted.
func NewResolver(cfg config.AuthConfig) *Resolver {
	r := &Resolver{
		mode:           cfg.Mode,
		clientIDHeader: cfg.ClientIDHeader,
	}
	if r.clientIDHeader == "" {
		r.clientIDHeader = "X-Client-Id"
	}
	if cfg.Mode == "jwt" {
		if cfg.JWTSecret != "" {
			r.secret = []byte(cfg.JWTSecret)
		} else {
			logging.Warn().Msg("auth mode is jwt but no secret is configured, bearer tokens will be refused")
		}
	}
	return r
}

// FromRequest resolves the acting identity. A verifiable bearer token
// wins; otherwise the anonymous fingerprint header is used. A supplied
// but unverifiable token is refused even on optional-auth surfaces, so a
// client with a broken token hears about it instead of silently
// degrading to anonymous.
func (r *Resolver) FromRequest(req *http.Request) (Identity, error) {
	id := Identity{ClientID: r.fingerprint(req)}

	if r.mode != "jwt" {
		return id, nil
	}

	token, supplied, err := bearerToken(req)
	if err != nil {
		return id, err
	}
	if !supplied {
		return id, nil
	}
	if r.secret == nil {
		return id, apperr.Unauthorized("bearer tokens are not accepted by this deployment")
	}

	userID, err := r.verify(token)
	if err != nil {
		return id, err
	}
	id.UserID = userID
	return id, nil
}

// verify checks the token signature and liveness and returns its subject.
func (r *Resolver) verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindUnauthorized, "invalid bearer token")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", apperr.Unauthorized("invalid bearer token")
	}
	if claims.Subject == "" {
		return "", apperr.Unauthorized("bearer token carries no subject")
	}
	return claims.Subject, nil
}

// fingerprint returns the sanitized anonymous client fingerprint: an
// opaque string minted by the client, trusted only for continuity.
func (r *Resolver) fingerprint(req *http.Request) string {
	fp := strings.TrimSpace(req.Header.Get(r.clientIDHeader))
	if len(fp) > maxFingerprintLength {
		fp = fp[:maxFingerprintLength]
	}
	return fp
}

// bearerToken extracts a token from the Authorization header, falling
// back to the token cookie web clients carry. An Authorization header
// with a different scheme is refused rather than ignored.
func bearerToken(req *http.Request) (token string, supplied bool, err error) {
	header := req.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false, apperr.Unauthorized("authorization header must be a bearer token")
		}
		return parts[1], true, nil
	}

	if cookie, err := req.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value, true, nil
	}
	return "", false, nil
}
