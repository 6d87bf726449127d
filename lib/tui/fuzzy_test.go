// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"testing"
)

func TestFuzzyMatchBasic(t *testing.T) {
	t.Parallel()

	result := FuzzyMatch("Summarize quarterly incident reports", []rune("incident"), nil)
	if result.Score <= 0 {
		t.Fatal("expected positive score for substring match")
	}
	if len(result.Positions) != len("incident") {
		t.Fatalf("expected %d match positions, got %d", len("incident"), len(result.Positions))
	}
	// The contiguous occurrence starts at rune 20; optimal alignment
	// must prefer it over any scattered match.
	if result.Positions[0] != 20 {
		t.Errorf("first position = %d, want 20", result.Positions[0])
	}
	for i := 1; i < len(result.Positions); i++ {
		if result.Positions[i] != result.Positions[i-1]+1 {
			t.Fatalf("positions not contiguous: %v", result.Positions)
		}
	}
}

func TestFuzzyMatchNonContiguous(t *testing.T) {
	t.Parallel()

	// "cle" matches "classify and escalate" without being a substring.
	result := FuzzyMatch("classify and escalate", []rune("cle"), nil)
	if result.Score <= 0 {
		t.Fatal("expected positive score for non-contiguous fuzzy match")
	}
	if len(result.Positions) != 3 {
		t.Fatalf("expected 3 positions, got %v", result.Positions)
	}
}

func TestFuzzyMatchNoMatch(t *testing.T) {
	t.Parallel()

	result := FuzzyMatch("triage-escalation", []rune("xyz"), nil)
	if result.Score != 0 {
		t.Errorf("expected zero score for no match, got %d", result.Score)
	}
	if len(result.Positions) != 0 {
		t.Errorf("expected empty positions for no match, got %v", result.Positions)
	}
}

func TestFuzzyMatchCaseInsensitive(t *testing.T) {
	t.Parallel()

	// Uppercase pattern against lowercase text: the wrapper lowercases
	// the pattern before matching.
	result := FuzzyMatch("run-7 triage-escalation", []rune("RUN"), nil)
	if result.Score <= 0 {
		t.Fatalf("expected case-insensitive match, got score=%d", result.Score)
	}

	// Lowercase pattern against all-caps text.
	result = FuzzyMatch("SSE TRANSPORT FAILURE", []rune("sse"), nil)
	if result.Score <= 0 {
		t.Fatalf("expected match for 'sse' in all-caps text, got score=%d", result.Score)
	}
}

func TestFuzzyMatchEmptyPattern(t *testing.T) {
	t.Parallel()

	result := FuzzyMatch("anything", []rune{}, nil)
	if result.Score != 0 {
		t.Errorf("expected zero score for empty pattern, got %d", result.Score)
	}
	if len(result.Positions) != 0 {
		t.Errorf("expected no positions for empty pattern, got %v", result.Positions)
	}
}

func TestFuzzyMatchPositionsAscending(t *testing.T) {
	t.Parallel()

	text := "load historical run events"
	result := FuzzyMatch(text, []rune("lhre"), nil)
	if result.Score <= 0 {
		t.Fatal("expected match")
	}
	runes := []rune(text)
	for i, position := range result.Positions {
		if position < 0 || position >= len(runes) {
			t.Fatalf("position %d out of bounds for %q", position, text)
		}
		if i > 0 && position <= result.Positions[i-1] {
			t.Fatalf("positions not strictly ascending: %v", result.Positions)
		}
	}
}

func TestFuzzyMatchSlabReuse(t *testing.T) {
	t.Parallel()

	slab := NewSlab()
	candidates := []string{
		"triage-escalation",
		"quarterly-report",
		"incident-summary",
		"triage-escalation",
	}
	var first FuzzyResult
	for index, candidate := range candidates {
		result := FuzzyMatch(candidate, []rune("tri"), slab)
		if index == 0 {
			first = result
			continue
		}
		if candidate == candidates[0] && result.Score != first.Score {
			t.Errorf("slab reuse changed score: got %d, want %d", result.Score, first.Score)
		}
	}

	// Scores must agree with slab-free matching.
	withSlab := FuzzyMatch("triage-escalation", []rune("esc"), slab)
	withoutSlab := FuzzyMatch("triage-escalation", []rune("esc"), nil)
	if withSlab.Score != withoutSlab.Score {
		t.Errorf("slab vs nil score mismatch: %d vs %d", withSlab.Score, withoutSlab.Score)
	}
}
