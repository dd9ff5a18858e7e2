// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package middleware

import (
	"net/http"

	"github.com/huntboard/huntboard/internal/logging"
)

// requestIDHeader is honored when an upstream proxy already tagged the
// request, and always set on the response for client-side correlation.
const requestIDHeader = "X-Request-ID"

// RequestID tags every request with a unique ID and threads it through
// the logging context, so one ID follows a request from the access log
// to any event it published.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
