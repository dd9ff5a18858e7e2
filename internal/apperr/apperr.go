// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package apperr defines the error taxonomy shared by the engine, the HTTP
// layer, and the CLI. Every failure surfaced to a caller is classified by a
// Kind; the API layer maps kinds to HTTP status codes and the CLI maps them
// to exit codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindNotFound       Kind = "NotFound"
	KindUnauthorized   Kind = "Unauthorized"
	KindRateLimited    Kind = "RateLimited"
	KindConflict       Kind = "Conflict"
	KindUnavailable    Kind = "DependencyUnavailable"
	KindBudgetExceeded Kind = "BudgetExceeded"
	KindInternal       Kind = "Internal"
)

// Error is a classified error with optional structured details.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches one structured detail and returns the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. Returns nil when err is nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, cause: err}
}

// Validation creates a ValidationError.
func Validation(message string) *Error { return New(KindValidation, message) }

// NotFound creates a NotFound error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Unauthorized creates an Unauthorized error.
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// RateLimited creates a RateLimited error.
func RateLimited(message string) *Error { return New(KindRateLimited, message) }

// Conflict creates a Conflict error.
func Conflict(message string) *Error { return New(KindConflict, message) }

// Unavailable creates a DependencyUnavailable error.
func Unavailable(message string) *Error { return New(KindUnavailable, message) }

// Internal creates an Internal error.
func Internal(message string) *Error { return New(KindInternal, message) }

// KindOf extracts the Kind from an error chain.
// Unclassified errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable, KindBudgetExceeded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CLI exit codes.
const (
	ExitOK          = 0
	ExitValidation  = 2
	ExitNotFound    = 3
	ExitRateLimited = 4
	ExitInternal    = 5
)

// ExitCode maps an error to a CLI exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindValidation:
		return ExitValidation
	case KindNotFound:
		return ExitNotFound
	case KindRateLimited:
		return ExitRateLimited
	default:
		return ExitInternal
	}
}
