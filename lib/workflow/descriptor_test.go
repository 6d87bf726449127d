// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const descriptorJSONC = `{
	// Triage and response workflow for the support tenant.
	"key": "triage-escalation",
	"name": "Triage and escalate",
	"stages": [
		{
			"name": "triage",
			"steps": [
				{"name": "classify", "agent": "classifier"},
				{"name": "search-web", "agent": "researcher", "parallel_group": "research"},
				{"name": "search-docs", "agent": "librarian", "parallel_group": "research"},
			],
		},
		{
			"name": "respond",
			"steps": [
				{"name": "draft", "agent": "writer"},
				{"name": "review", "agent": "reviewer"},
			],
		},
	],
}`

func TestParseJSONC(t *testing.T) {
	t.Parallel()

	descriptor, err := Parse([]byte(descriptorJSONC))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if descriptor.Key != "triage-escalation" {
		t.Errorf("Key = %q, want triage-escalation", descriptor.Key)
	}
	if len(descriptor.Stages) != 2 {
		t.Fatalf("got %d stages, want 2", len(descriptor.Stages))
	}
	if got := descriptor.Stages[0].Steps[1].ParallelGroup; got != "research" {
		t.Errorf("ParallelGroup = %q, want research", got)
	}
	if issues := descriptor.Validate(); len(issues) != 0 {
		t.Errorf("Validate returned issues for a valid descriptor: %v", issues)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte(`{"key": "x", "stages": [`)); err == nil {
		t.Fatal("Parse accepted truncated input")
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "triage-escalation.jsonc")
	if err := os.WriteFile(path, []byte(descriptorJSONC), 0o644); err != nil {
		t.Fatal(err)
	}

	descriptor, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if descriptor.Key != "triage-escalation" {
		t.Errorf("Key = %q, want triage-escalation", descriptor.Key)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonc")); err == nil {
		t.Fatal("ReadFile succeeded on a missing file")
	}
}

func TestKeyFromPath(t *testing.T) {
	t.Parallel()

	if got := KeyFromPath("workflows/triage-escalation.jsonc"); got != "triage-escalation" {
		t.Errorf("KeyFromPath = %q, want triage-escalation", got)
	}
}

func TestValidateIssues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		descriptor Descriptor
		wantIssue  string
	}{
		{
			name:       "missing key",
			descriptor: Descriptor{Stages: []Stage{{Name: "a", Steps: []Step{{Name: "s"}}}}},
			wantIssue:  "no key",
		},
		{
			name:       "no stages",
			descriptor: Descriptor{Key: "k"},
			wantIssue:  "no stages",
		},
		{
			name: "unnamed stage",
			descriptor: Descriptor{Key: "k", Stages: []Stage{
				{Steps: []Step{{Name: "s"}}},
			}},
			wantIssue: "stage name is required",
		},
		{
			name: "duplicate stage",
			descriptor: Descriptor{Key: "k", Stages: []Stage{
				{Name: "a", Steps: []Step{{Name: "s"}}},
				{Name: "a", Steps: []Step{{Name: "t"}}},
			}},
			wantIssue: "duplicate stage name",
		},
		{
			name: "empty stage",
			descriptor: Descriptor{Key: "k", Stages: []Stage{
				{Name: "a"},
			}},
			wantIssue: "no steps",
		},
		{
			name: "unnamed step",
			descriptor: Descriptor{Key: "k", Stages: []Stage{
				{Name: "a", Steps: []Step{{}}},
			}},
			wantIssue: "step name is required",
		},
		{
			name: "duplicate step in stage",
			descriptor: Descriptor{Key: "k", Stages: []Stage{
				{Name: "a", Steps: []Step{{Name: "s"}, {Name: "s"}}},
			}},
			wantIssue: "duplicate step name",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			issues := test.descriptor.Validate()
			if len(issues) == 0 {
				t.Fatalf("Validate returned no issues, want one containing %q", test.wantIssue)
			}
			found := false
			for _, issue := range issues {
				if strings.Contains(issue, test.wantIssue) {
					found = true
				}
			}
			if !found {
				t.Errorf("issues %v do not mention %q", issues, test.wantIssue)
			}
		})
	}
}
