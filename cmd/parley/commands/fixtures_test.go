// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"log/slog"
	"testing"

	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// supportRunEvents builds a complete persisted run for a support
// conversation: lifecycle, a streamed reply, a tool sub-stream, a
// guardrail verdict, and a completed final.
func supportRunEvents() []*envelope.Envelope {
	base := func(kind envelope.Kind, eventID int64) *envelope.Envelope {
		return &envelope.Envelope{
			Schema:         envelope.SchemaVersion,
			Kind:           kind,
			EventID:        eventID,
			StreamID:       "stream-7",
			ConversationID: "support-7",
			ResponseID:     "resp-7",
			Agent:          "concierge",
		}
	}

	lifecycle := base(envelope.KindLifecycle, 1)
	lifecycle.Status = "in_progress"
	lifecycle.Workflow = &envelope.WorkflowMeta{
		WorkflowKey: "refund-flow",
		StageName:   "intake",
		StepName:    "classify",
	}

	added := base(envelope.KindOutputItemAdded, 2)
	added.ItemID = "msg-1"
	added.ItemType = envelope.ItemTypeMessage
	added.Role = "assistant"

	delta1 := base(envelope.KindMessageDelta, 3)
	delta1.ItemID = "msg-1"
	delta1.Delta = "Your refund "

	delta2 := base(envelope.KindMessageDelta, 4)
	delta2.ItemID = "msg-1"
	delta2.Delta = "was approved."

	toolDelta := base(envelope.KindMessageDelta, 5)
	toolDelta.ItemID = "tool-out-1"
	toolDelta.Delta = `{"order":"A-100"}`
	toolDelta.Scope = &envelope.Scope{
		Type:       envelope.ScopeAgentTool,
		ToolCallID: "call-9",
		ToolName:   "lookup_order",
	}

	done := base(envelope.KindOutputItemDone, 6)
	done.ItemID = "msg-1"
	done.ItemType = envelope.ItemTypeMessage
	done.Text = "Your refund was approved."

	guardrail := base(envelope.KindGuardrailResult, 7)
	guardrail.Guardrail = &envelope.GuardrailResult{Name: "pii", Stage: "output", Passed: true}

	final := base(envelope.KindFinal, 8)
	final.Final = &envelope.FinalResult{
		Status: "completed",
		Usage:  &envelope.Usage{InputTokens: 40, OutputTokens: 12, TotalTokens: 52},
	}

	return []*envelope.Envelope{lifecycle, added, delta1, delta2, toolDelta, done, guardrail, final}
}

// writeTestCapture writes the events to a plain capture file and
// returns the header it wrote.
func writeTestCapture(t *testing.T, path string, events []*envelope.Envelope) ledger.Header {
	t.Helper()

	header := ledger.Header{
		SchemaVersion:  envelope.SchemaVersion,
		ConversationID: "support-7",
		RunID:          "run-7",
		WorkflowKey:    "refund-flow",
		CapturedAt:     "2026-08-20T10:00:00Z",
	}
	err := ledger.WriteCaptureFile(path, header, events, ledger.WriterOptions{
		Compression: ledger.CompressionLZ4,
		BlockSize:   4,
	})
	if err != nil {
		t.Fatalf("writing capture fixture: %v", err)
	}
	return header
}
