// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// Descriptor is the static topology of one workflow: ordered stages,
// each an ordered list of steps. Descriptors are stored as JSON by the
// tenant API and authored on disk as JSONC files (JSON extended with
// comments and trailing commas).
type Descriptor struct {
	// Key identifies the workflow. Envelopes carry the same key in
	// their workflow metadata.
	Key string `json:"key"`

	// Name is the human-readable title shown in the console. Optional;
	// the key is used when empty.
	Name string `json:"name,omitempty"`

	Stages []Stage `json:"stages"`
}

// Stage is one sequential phase of a workflow.
type Stage struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Step is one unit of work inside a stage. Consecutive steps that
// share a non-empty ParallelGroup execute as parallel branches; the
// branch index of each is its position within that run, starting at
// zero.
type Step struct {
	Name          string `json:"name"`
	Agent         string `json:"agent,omitempty"`
	ParallelGroup string `json:"parallel_group,omitempty"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Descriptor.
func Parse(data []byte) (*Descriptor, error) {
	stripped := jsonc.ToJSON(data)

	var descriptor Descriptor
	if err := json.Unmarshal(stripped, &descriptor); err != nil {
		return nil, fmt.Errorf("parsing workflow descriptor: %w", err)
	}

	return &descriptor, nil
}

// ReadFile reads a JSONC workflow descriptor from disk and parses it.
func ReadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	descriptor, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return descriptor, nil
}

// KeyFromPath extracts a workflow key from a file path by stripping
// the directory prefix and the file extension. For example,
// "workflows/triage-escalation.jsonc" returns "triage-escalation".
func KeyFromPath(path string) string {
	base := filepath.Base(path)
	extension := filepath.Ext(base)
	return strings.TrimSuffix(base, extension)
}

// Validate checks a Descriptor for structural issues. Returns a list
// of human-readable issue descriptions. An empty list means the
// descriptor is valid.
//
// Structural checks include:
//   - Key is required
//   - At least one stage, each with a non-empty unique name
//   - Each stage has at least one step, each with a non-empty name
//   - Step names are unique within their stage
func (d *Descriptor) Validate() []string {
	var issues []string

	if d.Key == "" {
		issues = append(issues, "descriptor has no key")
	}
	if len(d.Stages) == 0 {
		issues = append(issues, "descriptor has no stages (at least one is required)")
	}

	stageNames := make(map[string]int, len(d.Stages))
	for stageIndex, stage := range d.Stages {
		prefix := fmt.Sprintf("stages[%d]", stageIndex)
		if stage.Name == "" {
			issues = append(issues, prefix+": stage name is required")
		} else if firstIndex, exists := stageNames[stage.Name]; exists {
			issues = append(issues, fmt.Sprintf(
				"%s %q: duplicate stage name (first used at stages[%d])",
				prefix, stage.Name, firstIndex,
			))
		} else {
			stageNames[stage.Name] = stageIndex
		}

		if len(stage.Steps) == 0 {
			issues = append(issues, fmt.Sprintf("%s %q: stage has no steps", prefix, stage.Name))
		}

		// Duplicate step names within one stage would make the
		// step+stage coordinate ambiguous, silently highlighting the
		// wrong node.
		stepNames := make(map[string]int, len(stage.Steps))
		for stepIndex, step := range stage.Steps {
			stepPrefix := fmt.Sprintf("%s.steps[%d]", prefix, stepIndex)
			if step.Name == "" {
				issues = append(issues, stepPrefix+": step name is required")
				continue
			}
			if firstIndex, exists := stepNames[step.Name]; exists {
				issues = append(issues, fmt.Sprintf(
					"%s %q: duplicate step name (first used at steps[%d])",
					stepPrefix, step.Name, firstIndex,
				))
			} else {
				stepNames[step.Name] = stepIndex
			}
		}
	}

	return issues
}
