// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package validation

import (
	"strings"
	"testing"

	"github.com/huntboard/huntboard/internal/apperr"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}

	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

// feedQuery mirrors the recommendation query surface.
type feedQuery struct {
	Limit  int    `validate:"min=1,max=50"`
	Offset int    `validate:"min=0"`
	Blend  string `validate:"omitempty,oneof=standard trending discovery personalized"`
	SortBy string `validate:"omitempty,oneof=score created upvotes trending"`
}

// interactionEvent mirrors the ingress surface.
type interactionEvent struct {
	ProductID string `validate:"required"`
	Kind      string `validate:"required"`
	Position  *int   `validate:"omitempty,min=0"`
	Timestamp string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	pos := 3
	tests := []struct {
		name  string
		input interface{}
	}{
		{
			name:  "feed query defaults",
			input: &feedQuery{Limit: 20, Offset: 0},
		},
		{
			name:  "feed query full",
			input: &feedQuery{Limit: 50, Offset: 100, Blend: "personalized", SortBy: "score"},
		},
		{
			name:  "interaction minimal",
			input: &interactionEvent{ProductID: "p-1", Kind: "view"},
		},
		{
			name: "interaction full",
			input: &interactionEvent{
				ProductID: "p-1",
				Kind:      "upvote",
				Position:  &pos,
				Timestamp: "2026-08-25T12:00:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateStruct(tt.input); err != nil {
				t.Errorf("ValidateStruct() returned unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	t.Parallel()

	neg := -1
	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{
			name:      "limit too low",
			input:     &feedQuery{Limit: 0},
			wantField: "Limit",
			wantTag:   "min",
		},
		{
			name:      "limit too high",
			input:     &feedQuery{Limit: 500},
			wantField: "Limit",
			wantTag:   "max",
		},
		{
			name:      "unknown blend",
			input:     &feedQuery{Limit: 20, Blend: "chronological"},
			wantField: "Blend",
			wantTag:   "oneof",
		},
		{
			name:      "missing product",
			input:     &interactionEvent{Kind: "view"},
			wantField: "ProductID",
			wantTag:   "required",
		},
		{
			name:      "negative position",
			input:     &interactionEvent{ProductID: "p-1", Kind: "view", Position: &neg},
			wantField: "Position",
			wantTag:   "min",
		},
		{
			name:      "bad timestamp",
			input:     &interactionEvent{ProductID: "p-1", Kind: "view", Timestamp: "yesterday"},
			wantField: "Timestamp",
			wantTag:   "datetime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verr := ValidateStruct(tt.input)
			if verr == nil {
				t.Fatal("ValidateStruct() should have returned an error")
			}

			found := false
			for _, fe := range verr.Errors() {
				if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error on field %s tag %s, got %v", tt.wantField, tt.wantTag, verr)
			}
		})
	}
}

func TestValidateStruct_MultipleErrors(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&feedQuery{Limit: 0, Offset: -1, Blend: "bogus"})
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	if len(verr.Errors()) != 3 {
		t.Errorf("expected 3 field errors, got %d: %v", len(verr.Errors()), verr)
	}

	msg := verr.Error()
	for _, want := range []string{"Limit", "Offset", "Blend"} {
		if !strings.Contains(msg, want) {
			t.Errorf("combined message missing %s: %s", want, msg)
		}
	}
}

func TestToAppError_SingleField(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&interactionEvent{Kind: "view"})
	if verr == nil {
		t.Fatal("expected validation error")
	}

	appErr := verr.ToAppError()
	if appErr.Kind != apperr.KindValidation {
		t.Errorf("kind = %s, want %s", appErr.Kind, apperr.KindValidation)
	}
	if appErr.Details["field"] != "ProductID" {
		t.Errorf("field detail = %v, want ProductID", appErr.Details["field"])
	}
	if appErr.Details["tag"] != "required" {
		t.Errorf("tag detail = %v, want required", appErr.Details["tag"])
	}
}

func TestToAppError_MultipleFields(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&feedQuery{Limit: 0, Blend: "bogus"})
	if verr == nil {
		t.Fatal("expected validation errors")
	}

	appErr := verr.ToAppError()
	if appErr.Kind != apperr.KindValidation {
		t.Errorf("kind = %s, want %s", appErr.Kind, apperr.KindValidation)
	}

	fields, ok := appErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("fields detail has wrong type: %T", appErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 field entries, got %d", len(fields))
	}
}

func TestTranslateError_Messages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{
			name:  "required",
			input: &interactionEvent{},
			want:  "ProductID is required",
		},
		{
			name:  "max numeric",
			input: &feedQuery{Limit: 99},
			want:  "Limit must be at most 50",
		},
		{
			name:  "oneof",
			input: &feedQuery{Limit: 20, SortBy: "alphabetical"},
			want:  "SortBy must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verr := ValidateStruct(tt.input)
			if verr == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(verr.Error(), tt.want) {
				t.Errorf("message %q does not contain %q", verr.Error(), tt.want)
			}
		})
	}
}
