// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestToolError_ErrorWithoutHint(t *testing.T) {
	t.Parallel()

	err := Validation("missing required flag --run")
	if err.Error() != "missing required flag --run" {
		t.Errorf("Error() = %q, want %q", err.Error(), "missing required flag --run")
	}
}

func TestToolError_ErrorWithHint(t *testing.T) {
	t.Parallel()

	err := Validation("missing required flag --run").
		WithHint("Pass --run <id> or --file <capture>.")

	want := "missing required flag --run\n\nPass --run <id> or --file <capture>."
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestToolError_WithHintReturnsReceiver(t *testing.T) {
	t.Parallel()

	original := Validation("bad input")
	chained := original.WithHint("fix it")
	if original != chained {
		t.Error("WithHint should return the same pointer")
	}
}

func TestToolError_HintSurvivesErrorsAs(t *testing.T) {
	t.Parallel()

	inner := NotFound("run %q not found", "run-42").
		WithHint("Run 'parley runs' to list available runs.")
	wrapped := fmt.Errorf("replay failed: %w", inner)

	var toolErr *ToolError
	if !errors.As(wrapped, &toolErr) {
		t.Fatal("errors.As should find ToolError in wrapped chain")
	}
	if toolErr.Hint != "Run 'parley runs' to list available runs." {
		t.Errorf("Hint = %q after unwrap, want the original hint", toolErr.Hint)
	}
	if toolErr.Category != CategoryNotFound {
		t.Errorf("Category = %q, want %q", toolErr.Category, CategoryNotFound)
	}
}

func TestToolError_EmptyHintNotAppended(t *testing.T) {
	t.Parallel()

	err := Internal("unexpected failure")
	if strings.Contains(err.Error(), "\n\n") {
		t.Error("empty hint should not add blank line to error message")
	}
}

func TestToolError_AllCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ToolError
		category ErrorCategory
	}{
		{"Validation", Validation("bad"), CategoryValidation},
		{"NotFound", NotFound("missing"), CategoryNotFound},
		{"Forbidden", Forbidden("denied"), CategoryForbidden},
		{"Conflict", Conflict("duplicate"), CategoryConflict},
		{"Transient", Transient("timeout"), CategoryTransient},
		{"Internal", Internal("bug"), CategoryInternal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.err.Category != test.category {
				t.Errorf("Category = %q, want %q", test.err.Category, test.category)
			}
		})
	}
}

func TestToolError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("root cause")
	err := Internal("wrapping: %w", sentinel)

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should reach the wrapped sentinel through ToolError")
	}
}

func TestErrorCategory_ExitCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		category ErrorCategory
		want     int
	}{
		{CategoryInternal, 1},
		{CategoryValidation, 2},
		{CategoryNotFound, 3},
		{CategoryForbidden, 4},
		{CategoryConflict, 5},
		{CategoryTransient, 6},
		{ErrorCategory("bogus"), 1},
	}
	for _, test := range tests {
		if got := test.category.ExitCode(); got != test.want {
			t.Errorf("%s.ExitCode() = %d, want %d", test.category, got, test.want)
		}
	}
}

func TestErrorCategory_ExitCodesDistinct(t *testing.T) {
	t.Parallel()

	categories := []ErrorCategory{
		CategoryValidation,
		CategoryNotFound,
		CategoryForbidden,
		CategoryConflict,
		CategoryTransient,
		CategoryInternal,
	}
	seen := make(map[int]ErrorCategory)
	for _, category := range categories {
		code := category.ExitCode()
		if previous, duplicate := seen[code]; duplicate {
			t.Errorf("categories %s and %s share exit code %d", previous, category, code)
		}
		seen[code] = category
	}
}
