// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/tui"
	"github.com/parley-ops/parley/lib/workflow"
)

// FocusRegion identifies which pane has keyboard focus.
type FocusRegion int

const (
	// FocusTranscript means navigation keys scroll the transcript.
	FocusTranscript FocusRegion = iota
	// FocusReasoning means navigation keys move the reasoning
	// slot selection.
	FocusReasoning
	// FocusTools means navigation keys move the tool selection and
	// enter toggles expansion.
	FocusTools
	// FocusComposer means keystrokes go to the message input.
	FocusComposer
)

// sourceEventMsg signals that the source state changed. Carries no
// payload: notifications coalesce, so the model re-snapshots
// wholesale on each one.
type sourceEventMsg struct{}

// heatTickMsg drives the heat decay and edge pulse animation. While
// anything is hot or a stream is live, a new tick is scheduled after
// each one.
type heatTickMsg struct{}

// runsLoadedMsg delivers the async run index fetch for the picker.
type runsLoadedMsg struct {
	runs []ledger.RunSummary
	err  error
}

// runLoadedMsg reports a completed (or failed) historical replay.
type runLoadedMsg struct {
	runID string
	err   error
}

// sendResultMsg reports the handshake outcome of a sent message.
// Stream progress after a successful handshake arrives through
// source notifications.
type sendResultMsg struct {
	err error
}

// fetchRunsTimeout bounds the run index fetch.
const fetchRunsTimeout = 15 * time.Second

// loadRunTimeout bounds a full historical replay, fetch included.
const loadRunTimeout = 60 * time.Second

// snapshotDigest remembers per-item sizes from the previous snapshot
// so a refresh can ignite heat for exactly what changed.
type snapshotDigest struct {
	toolTextLen map[string]int
	slotTextLen map[string]int
	suppressed  int
	hasErr      bool
}

// Model is the bubbletea model for the Parley console: a transcript
// pane on the left, reasoning, tool, and workflow panes stacked on
// the right, a composer line in live mode, and a status bar.
type Model struct {
	source    Source
	sender    Sender
	runLister RunLister
	theme     tui.Theme
	keys      KeyMap

	width  int
	height int
	ready  bool

	snapshot conversation.Snapshot
	digest   snapshotDigest

	focusRegion FocusRegion

	transcript   TranscriptPane
	reasoning    ReasoningPane
	tools        ToolsPane
	workflowPane WorkflowPane
	composer     Composer
	runPicker    RunPicker

	workflowNodes []workflow.Node

	// Live update animation.
	heatTracker  *tui.HeatTracker
	eventChannel <-chan struct{}
	tickRunning  bool

	// sending is true between a composer submit and its handshake
	// result, so a second enter cannot double-send.
	sending bool

	// Status bar notice: a log record or an operation outcome,
	// cleared by the fade timer.
	notice      string
	noticeLevel slog.Level
}

// ModelConfig assembles a console [Model].
type ModelConfig struct {
	// Source provides conversation state. Required. Optional
	// capabilities (Sender, RunLister, WorkflowViewer) are detected
	// by type assertion.
	Source Source

	// Theme defaults to the dark theme when zero.
	Theme tui.Theme

	// SyntaxTheme is the chroma style for code blocks. Defaults to
	// "monokai".
	SyntaxTheme string
}

// NewModel creates a console model over the given source.
func NewModel(config ModelConfig) Model {
	theme := config.Theme
	if theme == (tui.Theme{}) {
		theme = tui.DefaultTheme
	}
	syntaxTheme := config.SyntaxTheme
	if syntaxTheme == "" {
		syntaxTheme = "monokai"
	}

	model := Model{
		source:       config.Source,
		theme:        theme,
		keys:         DefaultKeyMap,
		transcript:   NewTranscriptPane(theme, syntaxTheme),
		reasoning:    NewReasoningPane(theme),
		tools:        NewToolsPane(theme),
		workflowPane: NewWorkflowPane(theme),
		composer:     NewComposer(theme),
		runPicker:    NewRunPicker(theme),
		heatTracker:  tui.NewHeatTracker(),
		eventChannel: config.Source.Subscribe(),
	}

	model.sender, _ = config.Source.(Sender)
	model.runLister, _ = config.Source.(RunLister)
	if viewer, ok := config.Source.(WorkflowViewer); ok {
		if nodes, _, ok := viewer.WorkflowGraph(); ok {
			model.workflowNodes = nodes
		}
	}

	model.snapshot = config.Source.Snapshot()
	model.digest = digestSnapshot(model.snapshot)
	model.transcript.SetSnapshot(model.snapshot)

	return model
}

// Init implements tea.Model. Starts listening for source changes.
func (model Model) Init() tea.Cmd {
	if model.eventChannel == nil {
		return nil
	}
	return listenForSourceEvent(model.eventChannel)
}

// listenForSourceEvent returns a tea.Cmd that blocks until the source
// signals a change, then delivers a sourceEventMsg.
func listenForSourceEvent(channel <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-channel; !ok {
			return nil
		}
		return sourceEventMsg{}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		// The run picker captures all input while open.
		if model.runPicker.Active() {
			return model.handleRunPickerKeys(message)
		}
		if model.focusRegion == FocusComposer {
			return model.handleComposerKeys(message)
		}
		return model.handleGlobalKeys(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.updatePaneSizes()

	case sourceEventMsg:
		return model.handleSourceEvent()

	case heatTickMsg:
		return model.handleHeatTick()

	case runsLoadedMsg:
		model.runPicker.SetRuns(message.runs, message.err)

	case runLoadedMsg:
		if message.err != nil {
			return model.withNotice("load run failed: "+message.err.Error(), slog.LevelError)
		}
		return model.withNotice("replayed "+message.runID, slog.LevelInfo)

	case sendResultMsg:
		model.sending = false
		if message.err != nil {
			return model.withNotice("send failed: "+message.err.Error(), slog.LevelError)
		}

	case logRecordMsg:
		return model.withNotice(message.Summary, message.Level)

	case logRecordFadeMsg:
		model.notice = ""
	}

	return model, nil
}

// withNotice sets the status bar notice and arms its fade timer.
func (model Model) withNotice(text string, level slog.Level) (tea.Model, tea.Cmd) {
	model.notice = text
	model.noticeLevel = level
	return model, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
		return logRecordFadeMsg{}
	})
}

// handleGlobalKeys routes keys while no capture surface (composer,
// run picker) is active.
func (model Model) handleGlobalKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.FocusNext):
		model.focusRegion = model.nextFocus()

	case key.Matches(message, model.keys.FocusTranscript):
		model.focusRegion = FocusTranscript

	case key.Matches(message, model.keys.FocusReasoning):
		model.focusRegion = FocusReasoning

	case key.Matches(message, model.keys.FocusTools):
		model.focusRegion = FocusTools

	case key.Matches(message, model.keys.Compose):
		if model.sender != nil {
			model.focusRegion = FocusComposer
		}

	case key.Matches(message, model.keys.RunPicker):
		if model.runLister != nil {
			model.runPicker.Open()
			return model, fetchRuns(model.runLister)
		}

	case key.Matches(message, model.keys.Escape):
		// Escape aborts a live stream; otherwise it returns focus to
		// the transcript.
		if model.snapshot.Phase == conversation.PhaseStreaming && model.sender != nil {
			model.sender.CancelStream()
		} else {
			model.focusRegion = FocusTranscript
		}

	default:
		model.handlePaneKeys(message)
	}

	return model, nil
}

// nextFocus cycles through the navigable panes. The composer is
// entered explicitly with the compose key, not the cycle.
func (model Model) nextFocus() FocusRegion {
	switch model.focusRegion {
	case FocusTranscript:
		return FocusReasoning
	case FocusReasoning:
		return FocusTools
	default:
		return FocusTranscript
	}
}

// handlePaneKeys applies navigation keys to the focused pane.
func (model *Model) handlePaneKeys(message tea.KeyMsg) {
	switch model.focusRegion {
	case FocusTranscript:
		switch {
		case key.Matches(message, model.keys.Up):
			model.transcript.ScrollUp()
		case key.Matches(message, model.keys.Down):
			model.transcript.ScrollDown()
		case key.Matches(message, model.keys.PageUp):
			model.transcript.PageUp()
		case key.Matches(message, model.keys.PageDown):
			model.transcript.PageDown()
		case key.Matches(message, model.keys.Home):
			model.transcript.GotoTop()
		case key.Matches(message, model.keys.End):
			model.transcript.GotoBottom()
		}

	case FocusReasoning:
		switch {
		case key.Matches(message, model.keys.Up):
			model.reasoning.MoveUp()
		case key.Matches(message, model.keys.Down):
			model.reasoning.MoveDown()
		}

	case FocusTools:
		switch {
		case key.Matches(message, model.keys.Up):
			model.tools.MoveUp()
		case key.Matches(message, model.keys.Down):
			model.tools.MoveDown()
		case key.Matches(message, model.keys.ToggleTool):
			model.tools.Toggle(model.snapshot.Tools)
		}
	}
}

// handleComposerKeys routes input while composing. Escape leaves the
// composer, enter submits, ctrl+j inserts a newline, everything else
// edits the buffer.
func (model Model) handleComposerKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if message.Type == tea.KeyCtrlC {
		return model, tea.Quit
	}

	switch {
	case key.Matches(message, model.keys.Escape):
		model.focusRegion = FocusTranscript

	case key.Matches(message, model.keys.Newline):
		model.composer.InsertNewline()

	case key.Matches(message, model.keys.Send):
		if model.sending || model.composer.Empty() || model.sender == nil {
			return model, nil
		}
		text := model.composer.Value()
		model.composer.Clear()
		model.sending = true
		return model, sendMessage(model.sender, text)

	default:
		model.composer.Update(message)
	}

	return model, nil
}

// handleRunPickerKeys routes input while the run picker is open.
// Navigation goes by key type, not the vim bindings: letters belong
// to the filter query.
func (model Model) handleRunPickerKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.Type {
	case tea.KeyCtrlC:
		return model, tea.Quit

	case tea.KeyEscape:
		model.runPicker.Close()

	case tea.KeyUp, tea.KeyCtrlP:
		model.runPicker.MoveUp()

	case tea.KeyDown, tea.KeyCtrlN:
		model.runPicker.MoveDown()

	case tea.KeyEnter:
		run, ok := model.runPicker.Selected()
		if !ok {
			return model, nil
		}
		model.runPicker.Close()
		if model.runLister == nil {
			return model, nil
		}
		return model, loadRun(model.runLister, run.RunID)

	case tea.KeyBackspace:
		model.runPicker.Backspace()

	case tea.KeyRunes, tea.KeySpace:
		model.runPicker.Type(message.Runes)
	}

	return model, nil
}

// handleSourceEvent refreshes the view from the source, ignites heat
// for what changed, re-arms the event listener, and starts the
// animation tick if needed.
func (model Model) handleSourceEvent() (tea.Model, tea.Cmd) {
	model.refreshFromSource(time.Now())

	commands := []tea.Cmd{listenForSourceEvent(model.eventChannel)}
	if !model.tickRunning {
		model.tickRunning = true
		commands = append(commands, scheduleHeatTick())
	}
	return model, tea.Batch(commands...)
}

// handleHeatTick reschedules the animation tick while anything is
// hot or a stream is live (the edge pulse needs repaints between
// events); otherwise stops the timer.
func (model Model) handleHeatTick() (tea.Model, tea.Cmd) {
	now := time.Now()
	if model.heatTracker.HasHot(now) || model.snapshot.Phase == conversation.PhaseStreaming {
		return model, scheduleHeatTick()
	}
	model.tickRunning = false
	return model, nil
}

// scheduleHeatTick sends a heatTickMsg after the animation interval.
func scheduleHeatTick() tea.Cmd {
	return tea.Tick(tui.HeatTickInterval, func(time.Time) tea.Msg {
		return heatTickMsg{}
	})
}

// refreshFromSource re-snapshots the source, diffs against the
// previous digest to ignite heat, and pushes the new state into the
// panes.
func (model *Model) refreshFromSource(now time.Time) {
	snapshot := model.source.Snapshot()
	model.igniteChanges(snapshot, now)
	model.snapshot = snapshot
	model.transcript.SetSnapshot(snapshot)
}

// igniteChanges compares the new snapshot against the previous digest
// and marks grown tool streams, grown reasoning slots, and new
// failures hot.
func (model *Model) igniteChanges(snapshot conversation.Snapshot, now time.Time) {
	for _, tool := range snapshot.Tools {
		if len(tool.Text) != model.digest.toolTextLen[tool.ToolCallID] {
			model.heatTracker.Ignite(toolHeatKey(tool.ToolCallID), tui.HeatUpdate, now)
		}
	}
	for _, slot := range snapshot.Reasoning {
		key := slot.Key.String()
		if len(slot.Text) != model.digest.slotTextLen[key] {
			model.heatTracker.Ignite(reasoningHeatKey(slot.Key), tui.HeatUpdate, now)
		}
	}
	if snapshot.Suppressed > model.digest.suppressed {
		model.heatTracker.Ignite("status", tui.HeatAlert, now)
	}
	if snapshot.Err != nil && !model.digest.hasErr {
		model.heatTracker.Ignite("status", tui.HeatAlert, now)
	}
	model.digest = digestSnapshot(snapshot)
}

func digestSnapshot(snapshot conversation.Snapshot) snapshotDigest {
	digest := snapshotDigest{
		toolTextLen: make(map[string]int, len(snapshot.Tools)),
		slotTextLen: make(map[string]int, len(snapshot.Reasoning)),
		suppressed:  snapshot.Suppressed,
		hasErr:      snapshot.Err != nil,
	}
	for _, tool := range snapshot.Tools {
		digest.toolTextLen[tool.ToolCallID] = len(tool.Text)
	}
	for _, slot := range snapshot.Reasoning {
		digest.slotTextLen[slot.Key.String()] = len(slot.Text)
	}
	return digest
}

// fetchRuns loads the run index asynchronously for the picker.
func fetchRuns(lister RunLister) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchRunsTimeout)
		defer cancel()
		runs, err := lister.Runs(ctx)
		return runsLoadedMsg{runs: runs, err: err}
	}
}

// loadRun replays a historical run asynchronously. LoadRun is
// synchronous under the hood, so the timeout covers the whole replay.
func loadRun(lister RunLister, runID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadRunTimeout)
		defer cancel()
		return runLoadedMsg{runID: runID, err: lister.LoadRun(ctx, runID)}
	}
}

// sendMessage submits an operator message. The context is
// deliberately not canceled when the command returns: the handshake
// hands the stream to a background reader that inherits it, and
// cancellation goes through Sender.CancelStream instead.
func sendMessage(sender Sender, text string) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{err: sender.Send(context.Background(), text)}
	}
}

// Layout.

// contentHeight is the vertical space for the pane row: total minus
// the header, the status line, and the composer when shown.
func (model Model) contentHeight() int {
	height := model.height - 2
	if model.sender != nil {
		height--
	}
	if height < 1 {
		height = 1
	}
	return height
}

// transcriptWidth gives the transcript three fifths of the screen.
func (model Model) transcriptWidth() int {
	width := model.width * 3 / 5
	if width < 20 {
		width = 20
	}
	return width
}

func (model Model) sideWidth() int {
	width := model.width - model.transcriptWidth() - 1
	if width < 10 {
		width = 10
	}
	return width
}

func (model *Model) updatePaneSizes() {
	model.transcript.SetSize(model.transcriptWidth(), model.contentHeight())
}

// sideHeights splits the right column among the reasoning, tools,
// and workflow panes. Without a workflow graph the first two split
// the column evenly.
func (model Model) sideHeights() (reasoningHeight, toolsHeight, workflowHeight int) {
	total := model.contentHeight()
	if len(model.workflowNodes) == 0 {
		reasoningHeight = total / 2
		toolsHeight = total - reasoningHeight
		return reasoningHeight, toolsHeight, 0
	}
	third := total / 3
	return third, third, total - 2*third
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	now := time.Now()
	var sections []string
	sections = append(sections, model.renderHeader())

	transcriptView := model.transcript.View(model.focusRegion == FocusTranscript)
	divider := model.renderDivider()
	sideView := model.renderSideColumn(now)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, transcriptView, divider, sideView))

	if model.sender != nil {
		sections = append(sections, model.composer.View(model.width, model.focusRegion == FocusComposer, model.sending))
	}

	sections = append(sections, model.renderStatusLine())

	output := strings.Join(sections, "\n")

	if model.runPicker.Active() {
		lines, anchorX, anchorY := model.runPicker.Render(model.width, model.height, now)
		output = tui.SpliceOverlay(output, lines, anchorX, anchorY)
	}

	return output
}

func (model Model) renderDivider() string {
	style := lipgloss.NewStyle().Foreground(model.theme.BorderColor)
	height := model.contentHeight()
	lines := make([]string, height)
	for index := range lines {
		lines[index] = style.Render("│")
	}
	return strings.Join(lines, "\n")
}

func (model Model) renderSideColumn(now time.Time) string {
	width := model.sideWidth()
	reasoningHeight, toolsHeight, workflowHeight := model.sideHeights()

	parts := []string{
		model.reasoning.View(model.snapshot.Reasoning, width, reasoningHeight,
			model.focusRegion == FocusReasoning, model.heatTracker, now),
		model.tools.View(model.snapshot.Tools, width, toolsHeight,
			model.focusRegion == FocusTools, model.heatTracker, now),
	}
	if workflowHeight > 0 {
		parts = append(parts, model.workflowPane.View(model.workflowNodes,
			model.snapshot.ActiveNode, model.snapshot.AnimatedEdge,
			width, workflowHeight, now))
	}
	return strings.Join(parts, "\n")
}

// renderHeader is the top chrome line: program name, source title,
// phase badge, and the active workflow step.
func (model Model) renderHeader() string {
	bold := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	left := bold.Render("parley") + faint.Render(" · "+model.source.Title())
	if summary := renderWorkflowSummary(model.theme, model.snapshot.ActiveNode); summary != "" {
		left += "  " + summary
	}

	phase := model.snapshot.Phase
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(model.theme.PhaseColor(phase)).
		Render(strings.ToUpper(string(phase)))

	return justifyLine(left, badge, model.width)
}

// renderStatusLine is the bottom chrome line: a transient notice or
// the keyboard help, plus event counters on the right.
func (model Model) renderStatusLine() string {
	var left string
	if model.notice != "" {
		noticeColor := model.theme.FaintText
		switch {
		case model.noticeLevel >= slog.LevelError:
			noticeColor = model.theme.PhaseFailed
		case model.noticeLevel >= slog.LevelWarn:
			noticeColor = model.theme.PhaseStreaming
		}
		left = lipgloss.NewStyle().Foreground(noticeColor).Render(model.notice)
	} else {
		left = lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(model.helpText())
	}

	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	right := faint.Render(fmt.Sprintf("%d events", model.snapshot.EventCount))
	if model.snapshot.Suppressed > 0 {
		alert := lipgloss.NewStyle().Foreground(model.theme.GuardrailFailed)
		right += faint.Render(" · ") + alert.Render(fmt.Sprintf("%d stale", model.snapshot.Suppressed))
	}
	if model.snapshot.Err != nil {
		alert := lipgloss.NewStyle().Foreground(model.theme.PhaseFailed)
		right += faint.Render(" · ") + alert.Render("error")
	}

	return justifyLine(left, right, model.width)
}

// helpText is the focus-dependent key hint line.
func (model Model) helpText() string {
	switch model.focusRegion {
	case FocusComposer:
		return "enter send · ctrl+j newline · esc back"
	case FocusTools:
		return "j/k move · enter expand · tab next pane · q quit"
	case FocusReasoning:
		return "j/k move · tab next pane · q quit"
	default:
		hints := "j/k scroll · g/G top/bottom · tab panes"
		if model.sender != nil {
			hints += " · i compose"
		}
		if model.runLister != nil {
			hints += " · r runs"
		}
		return hints + " · q quit"
	}
}

// justifyLine spreads left and right content across one row,
// truncating the left side when space runs out.
func justifyLine(left, right string, width int) string {
	leftWidth := ansi.StringWidth(left)
	rightWidth := ansi.StringWidth(right)
	gap := width - leftWidth - rightWidth
	if gap < 1 {
		available := width - rightWidth - 1
		if available < 0 {
			return ansi.Truncate(right, width, "")
		}
		return ansi.Truncate(left, available, "…") + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}
