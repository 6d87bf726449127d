// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the protocol version tag carried in every envelope's
// schema field. Producers bump this when the envelope layout changes
// incompatibly; consumers log a warning on mismatch but still apply the
// envelope (forward compatibility is handled per kind, not per schema).
const SchemaVersion = "tenant.events.v1"

// Kind discriminates the payload of an envelope. The set is closed on
// the consumer side: kinds not listed here are preserved through decode
// and ignored by every reducer, so older consoles keep working against
// newer producers.
type Kind string

const (
	// KindLifecycle reports a coarse session transition: the producer
	// accepted the request, started generating, or is shutting the
	// stream down. Payload: Status.
	KindLifecycle Kind = "lifecycle"

	// KindMessageDelta appends a text fragment to the transcript entry
	// (or tool sub-stream) identified by ItemID. Payload: Delta,
	// OutputIndex, ItemID, ContentIndex.
	KindMessageDelta Kind = "message.delta"

	// KindOutputItemAdded opens a new output item: a transcript entry,
	// or a tool sub-stream when the envelope carries an agent_tool
	// scope. Payload: OutputIndex, ItemID, ItemType, Role, Status.
	KindOutputItemAdded Kind = "output_item.added"

	// KindOutputItemDone closes the output item identified by ItemID.
	// The payload carries the authoritative final Text for the item;
	// accumulated deltas are replaced, not extended.
	KindOutputItemDone Kind = "output_item.done"

	// KindReasoningPartAdded opens a reasoning summary slot. Payload:
	// OutputIndex, ItemID, SummaryIndex, PartType, and the slot's
	// initial Text (usually empty).
	KindReasoningPartAdded Kind = "reasoning_summary.part.added"

	// KindReasoningDelta appends reasoning text to the slot identified
	// by (OutputIndex, ItemID, SummaryIndex). Payload: Delta plus the
	// key fields.
	KindReasoningDelta Kind = "reasoning_summary.delta"

	// KindReasoningPartDone finalizes a reasoning slot with its
	// authoritative Text. A done slot never changes again; late deltas
	// for it are dropped.
	KindReasoningPartDone Kind = "reasoning_summary.part.done"

	// KindGuardrailResult reports a guardrail evaluation attached to
	// the current response. Payload: Guardrail.
	KindGuardrailResult Kind = "guardrail_result"

	// KindFinal terminates a response: the transcript entry for
	// ResponseID is closed and the structured result (output, usage)
	// is captured. Payload: Final.
	KindFinal Kind = "final"
)

// Known reports whether the kind is one this consumer understands.
// Unknown kinds are applied as no-ops, never rejected.
func (k Kind) Known() bool {
	switch k {
	case KindLifecycle, KindMessageDelta, KindOutputItemAdded,
		KindOutputItemDone, KindReasoningPartAdded, KindReasoningDelta,
		KindReasoningPartDone, KindGuardrailResult, KindFinal:
		return true
	}
	return false
}

// Item status values carried on *.added / lifecycle envelopes.
const (
	// StatusStreaming marks an item that is still accumulating deltas.
	StatusStreaming = "streaming"
	// StatusDone marks an item whose text is final.
	StatusDone = "done"
)

// Item types carried on output_item envelopes.
const (
	// ItemTypeMessage is ordinary agent output text.
	ItemTypeMessage = "message"
	// ItemTypeReasoning is a reasoning container item; its text
	// arrives through the reasoning_summary.* kinds instead.
	ItemTypeReasoning = "reasoning"
)

// ScopeAgentTool is the Scope.Type value tagging an envelope as part of
// a nested tool-call sub-conversation.
const ScopeAgentTool = "agent_tool"

// Scope tags an envelope as belonging to a nested tool invocation.
// Envelopes without a scope belong to the top-level conversation and
// must never be attributed to any tool sub-stream.
type Scope struct {
	// Type discriminates the scope. The only value this consumer
	// routes on is [ScopeAgentTool].
	Type string `json:"type"`

	// ToolCallID identifies one tool invocation; it keys the tool
	// sub-stream accumulator.
	ToolCallID string `json:"tool_call_id"`

	// ToolName is the invoked tool, for display.
	ToolName string `json:"tool_name,omitempty"`

	// Agent is the agent running inside the tool call.
	Agent string `json:"agent,omitempty"`
}

// WorkflowMeta carries the workflow coordinates of an envelope produced
// inside a workflow run. The node stream store matches these against
// the static workflow descriptor to drive execution highlighting.
type WorkflowMeta struct {
	WorkflowKey   string `json:"workflow_key,omitempty"`
	WorkflowRunID string `json:"workflow_run_id,omitempty"`
	StageName     string `json:"stage_name,omitempty"`
	StepName      string `json:"step_name,omitempty"`
	StepAgent     string `json:"step_agent,omitempty"`

	// ParallelGroup and BranchIndex locate a step inside a fan-out
	// when stage/step names are absent. BranchIndex is only
	// meaningful when ParallelGroup is non-empty (zero is a valid
	// branch).
	ParallelGroup string `json:"parallel_group,omitempty"`
	BranchIndex   int    `json:"branch_index,omitempty"`
}

// GuardrailResult is the payload of a guardrail_result envelope.
type GuardrailResult struct {
	// Name identifies the guardrail that ran.
	Name string `json:"name"`
	// Stage is where it ran: "input" or "output".
	Stage string `json:"stage,omitempty"`
	// Passed reports the verdict.
	Passed bool `json:"passed"`
	// Message explains a failed verdict.
	Message string `json:"message,omitempty"`
}

// Usage is the token accounting attached to a final envelope.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// FinalResult is the payload of a final envelope: the structured
// outcome of one response.
type FinalResult struct {
	// Status is the terminal state: "completed", "failed", "cancelled".
	Status string `json:"status"`

	// Output is the producer's structured result, preserved verbatim.
	Output json.RawMessage `json:"output,omitempty"`

	// Error describes a failed response.
	Error string `json:"error,omitempty"`

	// Usage is the token accounting for the response.
	Usage *Usage `json:"usage,omitempty"`
}

// Clone returns a deep copy, safe to hold in a snapshot after the
// original is released. Returns nil for a nil receiver.
func (f *FinalResult) Clone() *FinalResult {
	if f == nil {
		return nil
	}
	out := *f
	if f.Output != nil {
		out.Output = append(json.RawMessage(nil), f.Output...)
	}
	if f.Usage != nil {
		usage := *f.Usage
		out.Usage = &usage
	}
	return &out
}

// Envelope is one decoded protocol message. Not every field is present
// on every kind; the per-kind payload fields are documented on the Kind
// constants. Within a single StreamID, EventID is strictly increasing;
// there is no uniqueness guarantee across stream IDs (a reconnect or
// replay pass starts a new one).
type Envelope struct {
	// Schema is the protocol version tag, [SchemaVersion] for
	// producers this consumer was built against.
	Schema string `json:"schema"`

	// Kind discriminates the payload.
	Kind Kind `json:"kind"`

	// EventID orders envelopes within one StreamID.
	EventID int64 `json:"event_id"`

	// StreamID identifies one live connection or replay pass.
	StreamID string `json:"stream_id"`

	// ServerTimestamp is the producer's RFC 3339 timestamp, kept as
	// the verbatim wire string. Use [Envelope.Time] to parse it;
	// malformed values parse to the zero time without affecting
	// envelope application.
	ServerTimestamp string `json:"server_timestamp,omitempty"`

	// ConversationID is the conversation this envelope belongs to.
	ConversationID string `json:"conversation_id,omitempty"`

	// ResponseID groups the envelopes of one agent response.
	ResponseID string `json:"response_id,omitempty"`

	// Agent names the agent that produced this envelope.
	Agent string `json:"agent,omitempty"`

	// Workflow carries workflow coordinates; nil outside workflow runs.
	Workflow *WorkflowMeta `json:"workflow,omitempty"`

	// Scope tags a nested tool-call sub-conversation; nil for
	// top-level envelopes.
	Scope *Scope `json:"scope,omitempty"`

	// Kind-specific payload fields.

	// OutputIndex is the position of the output item within the
	// response.
	OutputIndex int `json:"output_index,omitempty"`

	// ItemID identifies one output item; transcripts and slots key
	// on it.
	ItemID string `json:"item_id,omitempty"`

	// ContentIndex is the position of a content part within an item.
	ContentIndex int `json:"content_index,omitempty"`

	// Delta is the text fragment of message.delta and
	// reasoning_summary.delta envelopes.
	Delta string `json:"delta,omitempty"`

	// SummaryIndex selects the reasoning summary slot within an item.
	SummaryIndex int `json:"summary_index,omitempty"`

	// PartType describes a reasoning part ("summary_text").
	PartType string `json:"part_type,omitempty"`

	// Text is the authoritative text on *.done envelopes and the
	// initial text on reasoning part.added.
	Text string `json:"text,omitempty"`

	// ItemType describes an output item ("message", "reasoning").
	ItemType string `json:"item_type,omitempty"`

	// Role is the speaker of an output item ("assistant", "tool").
	Role string `json:"role,omitempty"`

	// Status is the lifecycle/item status ("streaming", "done").
	Status string `json:"status,omitempty"`

	// Guardrail is the payload of guardrail_result envelopes.
	Guardrail *GuardrailResult `json:"guardrail,omitempty"`

	// Final is the payload of final envelopes.
	Final *FinalResult `json:"final,omitempty"`
}

// Time parses ServerTimestamp. Returns the zero time when the field is
// absent or malformed; display code treats zero as "no timestamp".
func (e *Envelope) Time() time.Time {
	if e.ServerTimestamp == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, e.ServerTimestamp)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// Scoped reports whether the envelope belongs to a tool-call
// sub-conversation. Only agent_tool scopes with a tool call ID count;
// anything else is treated as top-level.
func (e *Envelope) Scoped() bool {
	return e.Scope != nil && e.Scope.Type == ScopeAgentTool && e.Scope.ToolCallID != ""
}
