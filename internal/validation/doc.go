// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with user-friendly error messages. It integrates
// with the apperr taxonomy so every surface (HTTP, CLI) reports field failures
// the same way.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Comprehensive error translation to human-readable messages
//   - apperr conversion (kind=ValidationError with field details)
//   - Built-in validator support (oneof, datetime, min/max, etc.)
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type InteractionRequest struct {
//	    ProductID string `validate:"required"`
//	    Kind      string `validate:"required"`
//	    Position  *int   `validate:"omitempty,min=0"`
//	    Timestamp string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req InteractionRequest
//	    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
//	        // handle decode error
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        respondError(w, verr.ToAppError())
//	        return
//	    }
//
//	    // proceed with valid request
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - datetime=layout: Valid timestamp in the given layout
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//   - min=n: Minimum value n
//   - max=n: Maximum value n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Error Types
//
// ValidationError represents a single field validation failure:
//
//	type ValidationError struct {
//	    Field()   string      // Struct field name
//	    Tag()     string      // Validation tag that failed
//	    Param()   string      // Tag parameter (e.g., "50" for max=50)
//	    Value()   interface{} // Actual value that failed
//	    Error()   string      // Human-readable message
//	}
//
// RequestValidationError aggregates multiple field errors:
//
//	type RequestValidationError struct {
//	    Errors() []ValidationError
//	    Error()  string                // Combined message
//	    ToAppError() *apperr.Error     // Convert to the error taxonomy
//	}
//
// # Error Envelope Integration
//
// The ToAppError method produces classified errors that the API layer
// serializes into the standard envelope:
//
//	// Single field error
//	{
//	    "success": false,
//	    "error": {
//	        "kind": "ValidationError",
//	        "message": "ProductID is required",
//	        "details": {"field": "ProductID", "tag": "required"}
//	    }
//	}
//
//	// Multiple field errors
//	{
//	    "success": false,
//	    "error": {
//	        "kind": "ValidationError",
//	        "message": "ProductID: is required; Limit: must be at most 50",
//	        "details": {
//	            "fields": [
//	                {"field": "ProductID", "tag": "required", "message": "..."},
//	                {"field": "Limit", "tag": "max", "message": "..."}
//	            ]
//	        }
//	    }
//	}
//
// # Error Message Translation
//
// Human-readable messages are generated for common validation tags:
//
//	required   -> "ProductID is required"
//	datetime   -> "Timestamp must be a valid date/time in RFC3339 format"
//	min=1      -> "Limit must be at least 1"
//	max=50     -> "Limit must be at most 50"
//	gte=0      -> "Offset must be greater than or equal to 0"
//	oneof=a b  -> "Blend must be one of: a b"
//
// # Struct Tag Examples
//
// Recommendation query validation:
//
//	type FeedRequest struct {
//	    Limit  int    `validate:"min=1,max=50"`
//	    Offset int    `validate:"min=0"`
//	    Blend  string `validate:"omitempty,oneof=standard trending discovery personalized"`
//	    SortBy string `validate:"omitempty,oneof=score created upvotes trending"`
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # Performance
//
// The validator caches struct reflection information:
//   - First validation of a struct type: ~1ms (reflection + caching)
//   - Subsequent validations: ~10us (cached)
//   - Memory: ~500 bytes per cached struct type
//
// # See Also
//
//   - internal/ingress: Interaction event validation
//   - internal/api: Query parameter validation
//   - github.com/go-playground/validator/v10: Underlying library
package validation
