// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/projection"
	"github.com/parley-ops/parley/lib/workflow"
)

// Snapshot is a consistent read-only view of the controller, taken
// under its lock. Every field is a copy; holding a snapshot never
// blocks or observes later mutation.
type Snapshot struct {
	ConversationID string
	Phase          Phase

	// RunStatus is the most recent lifecycle status string from the
	// producer, empty before the first lifecycle envelope.
	RunStatus string

	// StreamID is the live stream currently applying, empty when idle
	// or replaying.
	StreamID string

	Entries    []Entry
	Reasoning  []projection.ReasoningSlot
	Tools      []projection.ToolStream
	Guardrails []envelope.GuardrailResult

	// Result and Usage are set by the final envelope of a completed
	// run.
	Result *envelope.FinalResult
	Usage  envelope.Usage

	// ActiveNode and AnimatedEdge mirror the workflow store's
	// highlight; nil without a workflow or before the first matched
	// coordinate.
	ActiveNode   *workflow.Node
	AnimatedEdge *workflow.Edge

	// EventCount is how many envelopes have been applied this run.
	EventCount int

	// Suppressed counts envelopes dropped for carrying a stale stream
	// ID.
	Suppressed int

	// Err is the recoverable error that put the controller in
	// PhaseFailed, nil otherwise.
	Err error
}

// Snapshot captures the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := Snapshot{
		ConversationID: c.conversationID,
		Phase:          c.phase,
		RunStatus:      c.runStatus,
		StreamID:       c.activeStreamID,
		Entries:        c.transcript.Entries(),
		Reasoning:      c.reasoning.Project(),
		Tools:          c.tools.Streams(),
		Result:         c.result.Clone(),
		Usage:          c.usage,
		EventCount:     len(c.events),
		Suppressed:     c.suppressed,
		Err:            c.lastErr,
	}

	if len(c.guardrails) > 0 {
		snapshot.Guardrails = make([]envelope.GuardrailResult, len(c.guardrails))
		copy(snapshot.Guardrails, c.guardrails)
	}

	if c.workflowStore != nil {
		if node, ok := c.workflowStore.ActiveNode(); ok {
			snapshot.ActiveNode = &node
		}
		if edge, ok := c.workflowStore.AnimatedEdge(); ok {
			snapshot.AnimatedEdge = &edge
		}
	}

	return snapshot
}
