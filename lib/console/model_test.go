// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/projection"
	"github.com/parley-ops/parley/lib/tui"
	"github.com/parley-ops/parley/lib/workflow"
)

// fakeSource is a read-only Source with a settable snapshot.
type fakeSource struct {
	snapshot conversation.Snapshot
	notify   chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{notify: make(chan struct{}, 1)}
}

func (source *fakeSource) Snapshot() conversation.Snapshot { return source.snapshot }
func (source *fakeSource) Subscribe() <-chan struct{}      { return source.notify }
func (source *fakeSource) Title() string                   { return "conv-test" }

// fakeLiveSource layers the optional capabilities (Sender, RunLister,
// WorkflowViewer) on top of fakeSource.
type fakeLiveSource struct {
	fakeSource
	sent     []string
	sendErr  error
	canceled int
	runs     []ledger.RunSummary
	runsErr  error
	loaded   []string
	loadErr  error
	nodes    []workflow.Node
	edges    []workflow.Edge
}

func newFakeLiveSource() *fakeLiveSource {
	return &fakeLiveSource{fakeSource: *newFakeSource()}
}

func (source *fakeLiveSource) Send(ctx context.Context, text string) error {
	source.sent = append(source.sent, text)
	return source.sendErr
}

func (source *fakeLiveSource) CancelStream() { source.canceled++ }

func (source *fakeLiveSource) Runs(ctx context.Context) ([]ledger.RunSummary, error) {
	return source.runs, source.runsErr
}

func (source *fakeLiveSource) LoadRun(ctx context.Context, runID string) error {
	source.loaded = append(source.loaded, runID)
	return source.loadErr
}

func (source *fakeLiveSource) WorkflowGraph() ([]workflow.Node, []workflow.Edge, bool) {
	if len(source.nodes) == 0 {
		return nil, nil, false
	}
	return source.nodes, source.edges, true
}

func sizedModel(t *testing.T, source Source, width, height int) Model {
	t.Helper()
	model := NewModel(ModelConfig{Source: source})
	updated, _ := model.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return updated.(Model)
}

func pressRune(t *testing.T, model Model, character rune) (Model, tea.Cmd) {
	t.Helper()
	updated, command := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{character}})
	return updated.(Model), command
}

func pressKey(t *testing.T, model Model, keyType tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	updated, command := model.Update(tea.KeyMsg{Type: keyType})
	return updated.(Model), command
}

func TestNewModelCapabilityDetection(t *testing.T) {
	t.Parallel()

	readOnly := NewModel(ModelConfig{Source: newFakeSource()})
	if readOnly.sender != nil {
		t.Error("read-only source should not produce a sender")
	}
	if readOnly.runLister != nil {
		t.Error("read-only source should not produce a run lister")
	}
	if readOnly.workflowNodes != nil {
		t.Error("read-only source should not produce workflow nodes")
	}

	live := newFakeLiveSource()
	live.nodes = []workflow.Node{{Stage: "triage", Step: "classify", Agent: "triage-agent"}}
	full := NewModel(ModelConfig{Source: live})
	if full.sender == nil {
		t.Error("live source should produce a sender")
	}
	if full.runLister == nil {
		t.Error("live source should produce a run lister")
	}
	if len(full.workflowNodes) != 1 {
		t.Errorf("workflow nodes = %d, want 1", len(full.workflowNodes))
	}
}

func TestModelViewBeforeSize(t *testing.T) {
	t.Parallel()

	model := NewModel(ModelConfig{Source: newFakeSource()})
	if view := model.View(); view != "Loading..." {
		t.Errorf("view before WindowSizeMsg = %q, want Loading...", view)
	}
}

func TestModelViewRendersSnapshot(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.snapshot = conversation.Snapshot{
		ConversationID: "conv-test",
		Phase:          conversation.PhaseIdle,
		Entries: []conversation.Entry{
			{ItemID: "msg-1", Role: conversation.RoleUser, Text: "summarize the incident", Status: envelope.StatusDone},
			{ItemID: "item-1", Role: conversation.RoleAssistant, Agent: "triage-agent", Text: "Working on it.", Status: envelope.StatusDone},
		},
		Reasoning: []projection.ReasoningSlot{
			{Key: projection.SlotKey{OutputIndex: 0, ItemID: "rs-1"}, Status: envelope.StatusDone, Text: "weighing the options"},
		},
		Tools: []projection.ToolStream{
			{ToolCallID: "call-1", ToolName: "web_search", Agent: "triage-agent", Text: "results..."},
		},
		EventCount: 12,
	}

	model := sizedModel(t, source, 120, 36)
	view := ansi.Strip(model.View())

	for _, want := range []string{
		"parley",
		"conv-test",
		"IDLE",
		"summarize the incident",
		"Working on it.",
		"Reasoning (1)",
		"weighing the options",
		"Tools (1)",
		"web_search",
		"12 events",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	// Read-only source: no composer, no workflow pane.
	if strings.Contains(view, "Workflow") {
		t.Error("view should not contain a workflow pane without a graph")
	}
}

func TestModelFocusCycle(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeSource(), 100, 30)
	if model.focusRegion != FocusTranscript {
		t.Fatalf("initial focus = %v, want FocusTranscript", model.focusRegion)
	}

	model, _ = pressKey(t, model, tea.KeyTab)
	if model.focusRegion != FocusReasoning {
		t.Errorf("focus after tab = %v, want FocusReasoning", model.focusRegion)
	}
	model, _ = pressKey(t, model, tea.KeyTab)
	if model.focusRegion != FocusTools {
		t.Errorf("focus after two tabs = %v, want FocusTools", model.focusRegion)
	}
	model, _ = pressKey(t, model, tea.KeyTab)
	if model.focusRegion != FocusTranscript {
		t.Errorf("focus after three tabs = %v, want FocusTranscript", model.focusRegion)
	}

	// Direct jumps.
	model, _ = pressRune(t, model, '3')
	if model.focusRegion != FocusTools {
		t.Errorf("focus after 3 = %v, want FocusTools", model.focusRegion)
	}
	model, _ = pressRune(t, model, '2')
	if model.focusRegion != FocusReasoning {
		t.Errorf("focus after 2 = %v, want FocusReasoning", model.focusRegion)
	}
	model, _ = pressRune(t, model, '1')
	if model.focusRegion != FocusTranscript {
		t.Errorf("focus after 1 = %v, want FocusTranscript", model.focusRegion)
	}
}

func TestModelComposeRequiresSender(t *testing.T) {
	t.Parallel()

	// Read-only source: the compose key is inert.
	model := sizedModel(t, newFakeSource(), 100, 30)
	model, _ = pressRune(t, model, 'i')
	if model.focusRegion == FocusComposer {
		t.Error("compose key should be ignored without a sender")
	}

	// Live source: compose focuses the composer.
	model = sizedModel(t, newFakeLiveSource(), 100, 30)
	model, _ = pressRune(t, model, 'i')
	if model.focusRegion != FocusComposer {
		t.Errorf("focus after i = %v, want FocusComposer", model.focusRegion)
	}
}

func TestModelQuit(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeSource(), 100, 30)
	_, command := pressRune(t, model, 'q')
	if command == nil {
		t.Fatal("q should return a command")
	}
	if _, isQuit := command().(tea.QuitMsg); !isQuit {
		t.Error("q should produce a QuitMsg")
	}
}

func TestModelComposerSendFlow(t *testing.T) {
	t.Parallel()

	source := newFakeLiveSource()
	model := sizedModel(t, source, 100, 30)

	model, _ = pressRune(t, model, 'i')
	for _, character := range "hello" {
		model, _ = pressRune(t, model, character)
	}
	if got := model.composer.Value(); got != "hello" {
		t.Fatalf("composer value = %q, want hello", got)
	}

	model, command := pressKey(t, model, tea.KeyEnter)
	if command == nil {
		t.Fatal("enter with text should return a send command")
	}
	if !model.sending {
		t.Error("sending flag should be set after submit")
	}
	if !model.composer.Empty() {
		t.Error("composer should clear on submit")
	}

	// The command performs the handshake against the source.
	message := command()
	result, ok := message.(sendResultMsg)
	if !ok {
		t.Fatalf("send command produced %T, want sendResultMsg", message)
	}
	if result.err != nil {
		t.Fatalf("send result error: %v", result.err)
	}
	if len(source.sent) != 1 || source.sent[0] != "hello" {
		t.Errorf("source.sent = %v, want [hello]", source.sent)
	}

	updated, _ := model.Update(result)
	model = updated.(Model)
	if model.sending {
		t.Error("sending flag should clear after the handshake result")
	}
}

func TestModelComposerEmptySubmit(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeLiveSource(), 100, 30)
	model, _ = pressRune(t, model, 'i')
	model, command := pressKey(t, model, tea.KeyEnter)
	if command != nil {
		t.Error("enter with an empty composer should not send")
	}
	if model.sending {
		t.Error("sending flag should stay clear for an empty submit")
	}
}

func TestModelComposerSendError(t *testing.T) {
	t.Parallel()

	source := newFakeLiveSource()
	source.sendErr = errors.New("stream handshake refused")
	model := sizedModel(t, source, 100, 30)

	model, _ = pressRune(t, model, 'i')
	model, _ = pressRune(t, model, 'x')
	model, command := pressKey(t, model, tea.KeyEnter)

	updated, _ := model.Update(command())
	model = updated.(Model)
	if model.sending {
		t.Error("sending flag should clear after a failed handshake")
	}
	if !strings.Contains(model.notice, "stream handshake refused") {
		t.Errorf("notice = %q, want the handshake error", model.notice)
	}
	if model.noticeLevel != slog.LevelError {
		t.Errorf("notice level = %v, want error", model.noticeLevel)
	}
}

func TestModelComposerEscape(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeLiveSource(), 100, 30)
	model, _ = pressRune(t, model, 'i')
	model, _ = pressKey(t, model, tea.KeyEscape)
	if model.focusRegion != FocusTranscript {
		t.Errorf("focus after escape = %v, want FocusTranscript", model.focusRegion)
	}
}

func TestModelComposerCtrlCQuits(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeLiveSource(), 100, 30)
	model, _ = pressRune(t, model, 'i')
	_, command := pressKey(t, model, tea.KeyCtrlC)
	if command == nil {
		t.Fatal("ctrl+c in the composer should return a command")
	}
	if _, isQuit := command().(tea.QuitMsg); !isQuit {
		t.Error("ctrl+c in the composer should produce a QuitMsg")
	}
}

func TestModelEscapeCancelsStream(t *testing.T) {
	t.Parallel()

	source := newFakeLiveSource()
	source.snapshot = conversation.Snapshot{Phase: conversation.PhaseStreaming}
	model := sizedModel(t, source, 100, 30)

	model, _ = pressKey(t, model, tea.KeyEscape)
	if source.canceled != 1 {
		t.Errorf("canceled = %d, want 1", source.canceled)
	}

	// Outside streaming, escape just resets focus.
	source.snapshot = conversation.Snapshot{Phase: conversation.PhaseIdle}
	model = sizedModel(t, source, 100, 30)
	model.focusRegion = FocusTools
	model, _ = pressKey(t, model, tea.KeyEscape)
	if source.canceled != 1 {
		t.Errorf("canceled = %d after idle escape, want still 1", source.canceled)
	}
	if model.focusRegion != FocusTranscript {
		t.Errorf("focus after idle escape = %v, want FocusTranscript", model.focusRegion)
	}
}

func TestModelSourceEventIgnitesHeat(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	model := sizedModel(t, source, 100, 30)

	source.snapshot = conversation.Snapshot{
		Phase: conversation.PhaseStreaming,
		Tools: []projection.ToolStream{
			{ToolCallID: "call-9", ToolName: "grep", Text: "partial output", IsStreaming: true},
		},
		Reasoning: []projection.ReasoningSlot{
			{Key: projection.SlotKey{ItemID: "rs-2"}, Status: envelope.StatusStreaming, Text: "thinking"},
		},
	}

	updated, command := model.Update(sourceEventMsg{})
	model = updated.(Model)
	if command == nil {
		t.Fatal("source event should return a command batch")
	}

	now := time.Now()
	if model.heatTracker.Heat("tool:call-9", now) <= 0 {
		t.Error("grown tool stream should be hot")
	}
	if model.heatTracker.Heat(reasoningHeatKey(projection.SlotKey{ItemID: "rs-2"}), now) <= 0 {
		t.Error("grown reasoning slot should be hot")
	}
	if !model.tickRunning {
		t.Error("animation tick should start on the first hot event")
	}
	if model.snapshot.Phase != conversation.PhaseStreaming {
		t.Errorf("snapshot phase = %v, want streaming", model.snapshot.Phase)
	}

	// Re-delivering the same snapshot ignites nothing new, and the
	// second event must not double-start the ticker.
	updated, _ = model.Update(sourceEventMsg{})
	model = updated.(Model)
	if !model.tickRunning {
		t.Error("tick should still be running")
	}
}

func TestModelSuppressedIgnitesAlert(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	model := sizedModel(t, source, 100, 30)

	source.snapshot = conversation.Snapshot{Suppressed: 2}
	updated, _ := model.Update(sourceEventMsg{})
	model = updated.(Model)

	now := time.Now()
	if model.heatTracker.Heat("status", now) <= 0 {
		t.Error("a suppressed-count increase should heat the status key")
	}
	if model.heatTracker.Kind("status") != tui.HeatAlert {
		t.Errorf("status heat kind = %v, want HeatAlert", model.heatTracker.Kind("status"))
	}

	// New reducer error alerts too.
	source.snapshot = conversation.Snapshot{Suppressed: 2, Err: errors.New("bad frame")}
	model.heatTracker.Reset()
	updated, _ = model.Update(sourceEventMsg{})
	model = updated.(Model)
	if model.heatTracker.Heat("status", now) <= 0 {
		t.Error("a new reducer error should heat the status key")
	}
}

func TestModelHeatTickStopsWhenCold(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	model := sizedModel(t, source, 100, 30)

	// Idle snapshot, nothing hot: a tick should stop the timer.
	model.tickRunning = true
	updated, command := model.Update(heatTickMsg{})
	model = updated.(Model)
	if command != nil {
		t.Error("cold idle tick should not reschedule")
	}
	if model.tickRunning {
		t.Error("tick flag should clear when cold and idle")
	}

	// A live stream keeps the tick alive even with no heat, so the
	// edge pulse can march between events.
	source.snapshot = conversation.Snapshot{Phase: conversation.PhaseStreaming}
	updated, _ = model.Update(sourceEventMsg{})
	model = updated.(Model)
	updated, command = model.Update(heatTickMsg{})
	model = updated.(Model)
	if command == nil {
		t.Error("streaming tick should reschedule")
	}
	if !model.tickRunning {
		t.Error("tick flag should stay set while streaming")
	}
}

func TestModelRunPickerFlow(t *testing.T) {
	t.Parallel()

	source := newFakeLiveSource()
	source.runs = []ledger.RunSummary{
		{RunID: "run-alpha", Title: "incident triage", WorkflowKey: "triage", Status: "completed", StartedAt: "2026-08-23T09:00:00Z"},
		{RunID: "run-beta", Title: "billing audit", WorkflowKey: "audit", Status: "completed", StartedAt: "2026-08-23T08:00:00Z"},
	}
	model := sizedModel(t, source, 100, 30)

	model, command := pressRune(t, model, 'r')
	if !model.runPicker.Active() {
		t.Fatal("r should open the run picker")
	}
	if command == nil {
		t.Fatal("opening the picker should fetch runs")
	}

	loaded, ok := command().(runsLoadedMsg)
	if !ok {
		t.Fatalf("fetch produced %T, want runsLoadedMsg", command())
	}
	if len(loaded.runs) != 2 {
		t.Fatalf("fetched %d runs, want 2", len(loaded.runs))
	}
	updated, _ := model.Update(loaded)
	model = updated.(Model)

	// Letters go to the filter query, not navigation.
	model, _ = pressRune(t, model, 'b')
	model, _ = pressRune(t, model, 'e')
	run, ok := model.runPicker.Selected()
	if !ok {
		t.Fatal("picker should have a selection after filtering")
	}
	if run.RunID != "run-beta" {
		t.Errorf("filtered selection = %s, want run-beta", run.RunID)
	}

	model, command = pressKey(t, model, tea.KeyEnter)
	if model.runPicker.Active() {
		t.Error("enter should close the picker")
	}
	if command == nil {
		t.Fatal("enter should return a load command")
	}

	result, ok := command().(runLoadedMsg)
	if !ok {
		t.Fatalf("load produced %T, want runLoadedMsg", command())
	}
	if result.err != nil {
		t.Fatalf("load error: %v", result.err)
	}
	if len(source.loaded) != 1 || source.loaded[0] != "run-beta" {
		t.Errorf("source.loaded = %v, want [run-beta]", source.loaded)
	}

	updated, _ = model.Update(result)
	model = updated.(Model)
	if !strings.Contains(model.notice, "run-beta") {
		t.Errorf("notice = %q, want replay confirmation", model.notice)
	}
}

func TestModelRunPickerEscape(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeLiveSource(), 100, 30)
	model, _ = pressRune(t, model, 'r')
	model, _ = pressKey(t, model, tea.KeyEscape)
	if model.runPicker.Active() {
		t.Error("escape should close the picker")
	}
}

func TestModelRunPickerRequiresLister(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeSource(), 100, 30)
	model, command := pressRune(t, model, 'r')
	if model.runPicker.Active() {
		t.Error("r should be inert without a run lister")
	}
	if command != nil {
		t.Error("r should not fetch without a run lister")
	}
}

func TestModelRunPickerOverlayInView(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeLiveSource(), 100, 30)
	model, _ = pressRune(t, model, 'r')
	view := ansi.Strip(model.View())
	if !strings.Contains(view, "Load Run") {
		t.Error("view should contain the picker overlay title")
	}
}

func TestModelLoadRunFailureNotice(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeLiveSource(), 100, 30)
	updated, _ := model.Update(runLoadedMsg{runID: "run-x", err: errors.New("ledger unreachable")})
	model = updated.(Model)
	if !strings.Contains(model.notice, "ledger unreachable") {
		t.Errorf("notice = %q, want the load error", model.notice)
	}
	if model.noticeLevel != slog.LevelError {
		t.Errorf("notice level = %v, want error", model.noticeLevel)
	}
}

func TestModelLogRecordNotice(t *testing.T) {
	t.Parallel()

	model := sizedModel(t, newFakeSource(), 100, 30)
	updated, command := model.Update(logRecordMsg{Summary: "reconnecting (attempt=2)", Level: slog.LevelWarn})
	model = updated.(Model)
	if model.notice != "reconnecting (attempt=2)" {
		t.Errorf("notice = %q", model.notice)
	}
	if command == nil {
		t.Fatal("a notice should arm its fade timer")
	}

	view := ansi.Strip(model.View())
	if !strings.Contains(view, "reconnecting (attempt=2)") {
		t.Error("view should surface the notice in the status line")
	}

	updated, _ = model.Update(logRecordFadeMsg{})
	model = updated.(Model)
	if model.notice != "" {
		t.Errorf("notice after fade = %q, want empty", model.notice)
	}
}

func TestModelToolToggle(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.snapshot = conversation.Snapshot{
		Tools: []projection.ToolStream{
			{ToolCallID: "call-1", ToolName: "web_search", Text: "line one\nline two"},
		},
	}
	model := sizedModel(t, source, 100, 30)

	model, _ = pressRune(t, model, '3')
	model, _ = pressKey(t, model, tea.KeyEnter)
	if !model.tools.expanded["call-1"] {
		t.Error("enter on a focused tool should expand it")
	}
	model, _ = pressKey(t, model, tea.KeyEnter)
	if model.tools.expanded["call-1"] {
		t.Error("enter again should collapse it")
	}
}

func TestModelWorkflowPaneVisible(t *testing.T) {
	t.Parallel()

	source := newFakeLiveSource()
	source.nodes = []workflow.Node{
		{Stage: "triage", Step: "classify", Agent: "classifier"},
		{Stage: "triage", Step: "route", Agent: "router"},
	}
	source.edges = []workflow.Edge{{From: 0, To: 1}}
	model := sizedModel(t, source, 120, 40)

	view := ansi.Strip(model.View())
	if !strings.Contains(view, "Workflow") {
		t.Error("view should contain the workflow pane header")
	}
	if !strings.Contains(view, "classify") {
		t.Error("view should contain the first workflow step")
	}
}

func TestModelStatusLineCounters(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.snapshot = conversation.Snapshot{
		EventCount: 42,
		Suppressed: 3,
		Err:        errors.New("decode failure"),
	}
	model := sizedModel(t, source, 120, 30)

	view := ansi.Strip(model.View())
	if !strings.Contains(view, "42 events") {
		t.Error("status line should show the event count")
	}
	if !strings.Contains(view, "3 stale") {
		t.Error("status line should show the suppressed count")
	}
	if !strings.Contains(view, "error") {
		t.Error("status line should flag the reducer error")
	}
}

func TestJustifyLine(t *testing.T) {
	t.Parallel()

	line := justifyLine("left", "right", 20)
	if got := ansi.StringWidth(line); got != 20 {
		t.Errorf("justified width = %d, want 20", got)
	}
	if !strings.HasPrefix(line, "left") || !strings.HasSuffix(line, "right") {
		t.Errorf("justified line = %q", line)
	}

	// Too narrow: the left side truncates, the right side survives.
	narrow := justifyLine("a very long left side", "right", 12)
	if !strings.HasSuffix(narrow, "right") {
		t.Errorf("narrow line = %q, right side should survive", narrow)
	}
}

func TestListenForSourceEventClosedChannel(t *testing.T) {
	t.Parallel()

	channel := make(chan struct{})
	close(channel)
	if message := listenForSourceEvent(channel)(); message != nil {
		t.Errorf("closed channel should yield nil, got %T", message)
	}
}
