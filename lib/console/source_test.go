// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/stream"
	"github.com/parley-ops/parley/lib/workflow"
)

func testStreamClient(t *testing.T) *stream.Client {
	t.Helper()
	client, err := stream.NewClient(stream.ClientConfig{
		BaseURL: "http://127.0.0.1:0",
		Token:   "tok-test",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// captureEvents is one complete assistant response: item opened, one
// delta, item closed with authoritative text, final with usage.
func captureEvents(conversationID string) []*envelope.Envelope {
	return []*envelope.Envelope{
		{
			Schema:         envelope.SchemaVersion,
			Kind:           envelope.KindOutputItemAdded,
			EventID:        1,
			StreamID:       "stream-1",
			ConversationID: conversationID,
			ResponseID:     "resp-1",
			Agent:          "triage-agent",
			ItemID:         "item-1",
			ItemType:       envelope.ItemTypeMessage,
			Role:           "assistant",
			Status:         envelope.StatusStreaming,
		},
		{
			Schema:         envelope.SchemaVersion,
			Kind:           envelope.KindMessageDelta,
			EventID:        2,
			StreamID:       "stream-1",
			ConversationID: conversationID,
			ResponseID:     "resp-1",
			ItemID:         "item-1",
			Delta:          "All clear",
		},
		{
			Schema:         envelope.SchemaVersion,
			Kind:           envelope.KindOutputItemDone,
			EventID:        3,
			StreamID:       "stream-1",
			ConversationID: conversationID,
			ResponseID:     "resp-1",
			ItemID:         "item-1",
			ItemType:       envelope.ItemTypeMessage,
			Text:           "All clear.",
			Status:         envelope.StatusDone,
		},
		{
			Schema:         envelope.SchemaVersion,
			Kind:           envelope.KindFinal,
			EventID:        4,
			StreamID:       "stream-1",
			ConversationID: conversationID,
			ResponseID:     "resp-1",
			Final: &envelope.FinalResult{
				Status: "completed",
				Usage:  &envelope.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
			},
		},
	}
}

func writeCapture(t *testing.T, path string, header ledger.Header, events []*envelope.Envelope) {
	t.Helper()
	if err := ledger.WriteCaptureFile(path, header, events, ledger.WriterOptions{}); err != nil {
		t.Fatalf("WriteCaptureFile: %v", err)
	}
}

func TestNewLiveSourceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewLiveSource(LiveSourceConfig{ConversationID: "conv-1"})
	if err == nil || !strings.Contains(err.Error(), "stream client") {
		t.Fatalf("missing stream client error = %v", err)
	}

	_, err = NewLiveSource(LiveSourceConfig{Stream: testStreamClient(t)})
	if err == nil || !strings.Contains(err.Error(), "conversation ID") {
		t.Fatalf("missing conversation ID error = %v", err)
	}
}

func TestLiveSourceBasics(t *testing.T) {
	t.Parallel()

	source, err := NewLiveSource(LiveSourceConfig{
		Stream:         testStreamClient(t),
		ConversationID: "conv-42",
	})
	if err != nil {
		t.Fatalf("NewLiveSource: %v", err)
	}

	if got, want := source.Title(), "conv-42"; got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}
	if source.Subscribe() == nil {
		t.Error("Subscribe() = nil, want channel")
	}
	if source.Controller() == nil {
		t.Error("Controller() = nil")
	}

	snapshot := source.Snapshot()
	if got, want := snapshot.ConversationID, "conv-42"; got != want {
		t.Errorf("Snapshot().ConversationID = %q, want %q", got, want)
	}
	if got, want := snapshot.Phase, conversation.PhaseIdle; got != want {
		t.Errorf("Snapshot().Phase = %v, want %v", got, want)
	}

	if _, _, ok := source.WorkflowGraph(); ok {
		t.Error("WorkflowGraph() ok = true without a workflow store")
	}

	if _, err := source.Runs(context.Background()); err == nil || !strings.Contains(err.Error(), "ledger client") {
		t.Errorf("Runs() without ledger = %v, want ledger client error", err)
	}
}

func TestLiveSourceWorkflowGraph(t *testing.T) {
	t.Parallel()

	store, err := workflow.NewNodeStore(&workflow.Descriptor{
		Key: "triage-escalation",
		Stages: []workflow.Stage{
			{Name: "intake", Steps: []workflow.Step{{Name: "classify", Agent: "classifier"}}},
			{Name: "resolve", Steps: []workflow.Step{{Name: "respond", Agent: "responder"}}},
		},
	})
	if err != nil {
		t.Fatalf("NewNodeStore: %v", err)
	}

	source, err := NewLiveSource(LiveSourceConfig{
		Stream:         testStreamClient(t),
		ConversationID: "conv-42",
		Workflow:       store,
	})
	if err != nil {
		t.Fatalf("NewLiveSource: %v", err)
	}

	nodes, edges, ok := source.WorkflowGraph()
	if !ok {
		t.Fatal("WorkflowGraph() ok = false, want true")
	}
	if len(nodes) != 2 {
		t.Fatalf("WorkflowGraph() nodes = %d, want 2", len(nodes))
	}
	if got, want := nodes[0].Step, "classify"; got != want {
		t.Errorf("nodes[0].Step = %q, want %q", got, want)
	}
	if got, want := nodes[1].Step, "respond"; got != want {
		t.Errorf("nodes[1].Step = %q, want %q", got, want)
	}
	if len(edges) != 1 {
		t.Errorf("WorkflowGraph() edges = %d, want 1", len(edges))
	}
}

func TestLiveSourceSignalCoalesces(t *testing.T) {
	t.Parallel()

	source, err := NewLiveSource(LiveSourceConfig{
		Stream:         testStreamClient(t),
		ConversationID: "conv-42",
	})
	if err != nil {
		t.Fatalf("NewLiveSource: %v", err)
	}

	// Many back-to-back signals collapse into one pending
	// notification and never block the caller.
	for range 5 {
		source.signal()
	}

	select {
	case <-source.Subscribe():
	default:
		t.Fatal("no notification pending after signal")
	}
	select {
	case <-source.Subscribe():
		t.Fatal("second notification pending, want coalesced single")
	default:
	}
}

func TestNewCaptureSourceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCaptureSource(CaptureSourceConfig{})
	if err == nil || !strings.Contains(err.Error(), "path") {
		t.Fatalf("missing path error = %v", err)
	}

	_, err = NewCaptureSource(CaptureSourceConfig{
		Path: filepath.Join(t.TempDir(), "absent.plycap"),
	})
	if err == nil {
		t.Fatal("NewCaptureSource on missing file = nil error")
	}
}

func TestCaptureSourceReplay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "incident.plycap")
	header := ledger.Header{
		SchemaVersion:  envelope.SchemaVersion,
		ConversationID: "conv-cap",
		RunID:          "run-7",
		CapturedAt:     "2026-08-23T10:00:00Z",
	}
	writeCapture(t, path, header, captureEvents("conv-cap"))

	source, err := NewCaptureSource(CaptureSourceConfig{Path: path})
	if err != nil {
		t.Fatalf("NewCaptureSource: %v", err)
	}
	defer source.Close()

	if got, want := source.Title(), "incident.plycap"; got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}

	// The initial replay completes before the constructor returns, so
	// the snapshot and one pending notification are ready immediately.
	select {
	case <-source.Subscribe():
	default:
		t.Error("no notification pending after initial replay")
	}

	snapshot := source.Snapshot()
	if got, want := snapshot.ConversationID, "conv-cap"; got != want {
		t.Errorf("Snapshot().ConversationID = %q, want %q", got, want)
	}
	if got, want := snapshot.Phase, conversation.PhaseIdle; got != want {
		t.Errorf("Snapshot().Phase = %v, want %v", got, want)
	}
	if got, want := snapshot.EventCount, 4; got != want {
		t.Errorf("Snapshot().EventCount = %d, want %d", got, want)
	}
	if len(snapshot.Entries) != 1 {
		t.Fatalf("Snapshot().Entries = %d, want 1", len(snapshot.Entries))
	}
	entry := snapshot.Entries[0]
	if got, want := entry.Role, conversation.RoleAssistant; got != want {
		t.Errorf("entry.Role = %q, want %q", got, want)
	}
	if got, want := entry.Text, "All clear."; got != want {
		t.Errorf("entry.Text = %q, want %q", got, want)
	}
	if snapshot.Result == nil {
		t.Fatal("Snapshot().Result = nil, want final result")
	}
	if got, want := snapshot.Result.Status, "completed"; got != want {
		t.Errorf("Result.Status = %q, want %q", got, want)
	}
	if got, want := snapshot.Usage.TotalTokens, int64(15); got != want {
		t.Errorf("Usage.TotalTokens = %d, want %d", got, want)
	}

	gotHeader := source.Header()
	if got, want := gotHeader.ConversationID, "conv-cap"; got != want {
		t.Errorf("Header().ConversationID = %q, want %q", got, want)
	}
	if got, want := gotHeader.RunID, "run-7"; got != want {
		t.Errorf("Header().RunID = %q, want %q", got, want)
	}

	if _, _, ok := source.WorkflowGraph(); ok {
		t.Error("WorkflowGraph() ok = true without a descriptor dir")
	}

	// Close twice; the second call must be a no-op.
	source.Close()
	source.Close()
}

func TestCaptureSourceWorkflowDescriptor(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	descriptorPath := filepath.Join(directory, "triage-escalation.jsonc")
	descriptor := `{
	// Trailing commas and comments exercise the JSONC reader.
	"key": "triage-escalation",
	"stages": [
		{"name": "intake", "steps": [{"name": "classify", "agent": "classifier"},]},
		{"name": "resolve", "steps": [{"name": "respond", "agent": "responder"},]},
	],
}`
	if err := os.WriteFile(descriptorPath, []byte(descriptor), 0o644); err != nil {
		t.Fatalf("writing descriptor: %v", err)
	}

	path := filepath.Join(directory, "run.plycap")
	header := ledger.Header{
		SchemaVersion:  envelope.SchemaVersion,
		ConversationID: "conv-wf",
		WorkflowKey:    "triage-escalation",
	}
	writeCapture(t, path, header, captureEvents("conv-wf"))

	source, err := NewCaptureSource(CaptureSourceConfig{
		Path:         path,
		WorkflowsDir: directory,
	})
	if err != nil {
		t.Fatalf("NewCaptureSource: %v", err)
	}
	defer source.Close()

	nodes, _, ok := source.WorkflowGraph()
	if !ok {
		t.Fatal("WorkflowGraph() ok = false, want descriptor-backed graph")
	}
	if len(nodes) != 2 {
		t.Fatalf("WorkflowGraph() nodes = %d, want 2", len(nodes))
	}
	if got, want := nodes[0].Stage, "intake"; got != want {
		t.Errorf("nodes[0].Stage = %q, want %q", got, want)
	}
	if got, want := source.Header().WorkflowKey, "triage-escalation"; got != want {
		t.Errorf("Header().WorkflowKey = %q, want %q", got, want)
	}
}

func TestCaptureSourceMissingDescriptorDegrades(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	path := filepath.Join(directory, "run.plycap")
	header := ledger.Header{
		SchemaVersion:  envelope.SchemaVersion,
		ConversationID: "conv-wf",
		WorkflowKey:    "no-such-workflow",
	}
	writeCapture(t, path, header, captureEvents("conv-wf"))

	source, err := NewCaptureSource(CaptureSourceConfig{
		Path:         path,
		WorkflowsDir: directory,
	})
	if err != nil {
		t.Fatalf("NewCaptureSource: %v", err)
	}
	defer source.Close()

	// The replay itself must survive the missing descriptor.
	if _, _, ok := source.WorkflowGraph(); ok {
		t.Error("WorkflowGraph() ok = true, want degraded no-graph view")
	}
	if len(source.Snapshot().Entries) != 1 {
		t.Errorf("Snapshot().Entries = %d, want 1", len(source.Snapshot().Entries))
	}
}

func TestCaptureSourceFollowsRewrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tail.plycap")
	header := ledger.Header{
		SchemaVersion:  envelope.SchemaVersion,
		ConversationID: "conv-tail",
	}
	events := captureEvents("conv-tail")
	writeCapture(t, path, header, events[:2])

	source, err := NewCaptureSource(CaptureSourceConfig{Path: path})
	if err != nil {
		t.Fatalf("NewCaptureSource: %v", err)
	}
	defer source.Close()

	// Drain the initial-replay notification so the next receive is
	// the rewrite's.
	select {
	case <-source.Subscribe():
	default:
		t.Fatal("no notification pending after initial replay")
	}
	if got, want := source.Snapshot().EventCount, 2; got != want {
		t.Fatalf("initial EventCount = %d, want %d", got, want)
	}

	// Atomic rewrite with the full event list, as the capture
	// recorder does on every flush.
	writeCapture(t, path, header, events)

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-source.Subscribe():
		case <-deadline:
			t.Fatalf("EventCount = %d after rewrite, want 4", source.Snapshot().EventCount)
		}
		if source.Snapshot().EventCount == 4 {
			break
		}
	}

	snapshot := source.Snapshot()
	if len(snapshot.Entries) != 1 {
		t.Fatalf("Entries after rewrite = %d, want 1", len(snapshot.Entries))
	}
	if got, want := snapshot.Entries[0].Text, "All clear."; got != want {
		t.Errorf("entry text after rewrite = %q, want %q", got, want)
	}
}
