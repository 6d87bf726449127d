// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/tui"
)

// TranscriptPane is the main conversation view: ordered user and
// agent messages, guardrail verdicts, and the run result. The body
// scrolls in a viewport; while follow mode is on, new output keeps
// the view pinned to the bottom. Scrolling up releases follow mode,
// scrolling back to the bottom re-arms it.
type TranscriptPane struct {
	viewport viewport.Model
	theme    tui.Theme
	width    int
	height   int

	// Retained for re-rendering on resize, so markdown word wrap
	// adapts to the new width.
	hasContent bool
	snapshot   conversation.Snapshot

	// syntaxTheme is the chroma style for fenced code blocks.
	syntaxTheme string

	follow bool
}

// NewTranscriptPane creates an empty transcript pane in follow mode.
func NewTranscriptPane(theme tui.Theme, syntaxTheme string) TranscriptPane {
	return TranscriptPane{
		theme:       theme,
		syntaxTheme: syntaxTheme,
		follow:      true,
	}
}

// contentWidth is the usable text width: total minus the left padding
// column and the right scrollbar column.
func (pane TranscriptPane) contentWidth() int {
	width := pane.width - 2
	if width < 10 {
		width = 10
	}
	return width
}

// Following reports whether the pane is pinned to the newest output.
func (pane TranscriptPane) Following() bool {
	return pane.follow
}

// SetSize updates the pane dimensions. A width change re-renders the
// body so wrapped prose and tables fit the new column.
func (pane *TranscriptPane) SetSize(width, height int) {
	previousWidth := pane.width
	pane.width = width
	pane.height = height
	pane.viewport.Width = pane.contentWidth()
	pane.viewport.Height = height
	if height < 1 {
		pane.viewport.Height = 1
	}

	if pane.hasContent && width != previousWidth {
		pane.rerender()
	}
	if pane.follow {
		pane.viewport.GotoBottom()
	}
}

// SetSnapshot replaces the displayed conversation state. In follow
// mode the viewport sticks to the bottom so streaming output stays
// visible; otherwise the scroll position is left where the operator
// put it.
func (pane *TranscriptPane) SetSnapshot(snapshot conversation.Snapshot) {
	pane.hasContent = true
	pane.snapshot = snapshot
	pane.rerender()
}

func (pane *TranscriptPane) rerender() {
	pane.viewport.SetContent(pane.renderBody())
	if pane.follow {
		pane.viewport.GotoBottom()
	}
}

// ScrollUp moves one line up and releases follow mode.
func (pane *TranscriptPane) ScrollUp() {
	pane.viewport.LineUp(1)
	pane.follow = pane.viewport.AtBottom()
}

// ScrollDown moves one line down. Reaching the bottom re-arms follow
// mode.
func (pane *TranscriptPane) ScrollDown() {
	pane.viewport.LineDown(1)
	pane.follow = pane.viewport.AtBottom()
}

// PageUp moves half a page up and releases follow mode.
func (pane *TranscriptPane) PageUp() {
	pane.viewport.HalfViewUp()
	pane.follow = pane.viewport.AtBottom()
}

// PageDown moves half a page down.
func (pane *TranscriptPane) PageDown() {
	pane.viewport.HalfViewDown()
	pane.follow = pane.viewport.AtBottom()
}

// GotoTop jumps to the oldest entry and releases follow mode.
func (pane *TranscriptPane) GotoTop() {
	pane.viewport.GotoTop()
	pane.follow = pane.viewport.AtBottom()
}

// GotoBottom jumps to the newest output and re-arms follow mode.
func (pane *TranscriptPane) GotoBottom() {
	pane.viewport.GotoBottom()
	pane.follow = true
}

// renderBody builds the full transcript content at the current width.
func (pane *TranscriptPane) renderBody() string {
	snapshot := pane.snapshot
	width := pane.contentWidth()

	var sections []string
	for _, entry := range snapshot.Entries {
		if entry.Role == conversation.RoleUser {
			sections = append(sections, pane.renderUserEntry(entry, width))
		} else {
			sections = append(sections, pane.renderAgentEntry(entry, width))
		}
	}

	if guardrails := pane.renderGuardrails(snapshot.Guardrails, width); guardrails != "" {
		sections = append(sections, guardrails)
	}
	if result := pane.renderResult(snapshot, width); result != "" {
		sections = append(sections, result)
	}

	return strings.Join(sections, "\n\n")
}

func (pane *TranscriptPane) renderUserEntry(entry conversation.Entry, width int) string {
	header := lipgloss.NewStyle().
		Foreground(pane.theme.UserText).
		Bold(true).
		Render("you")
	body := lipgloss.NewStyle().
		Foreground(pane.theme.UserText).
		Render(ansi.Wrap(entry.Text, width, " ,.;-+|"))
	return header + "\n" + body
}

func (pane *TranscriptPane) renderAgentEntry(entry conversation.Entry, width int) string {
	label := entry.Agent
	if label == "" {
		label = "assistant"
	}

	headerStyle := lipgloss.NewStyle().
		Foreground(pane.theme.HeaderForeground).
		Bold(true)
	header := headerStyle.Render(label)

	// Streaming text stays plain with a cursor mark; markdown
	// renders once the item closes, so half-open syntax (an
	// unterminated code fence, a partial table) never flickers
	// through intermediate layouts.
	var body string
	if entry.Status == envelope.StatusDone {
		body = renderMarkdown(entry.Text, pane.theme, pane.syntaxTheme, width)
	} else {
		streaming := entry.Text + " ▌"
		body = lipgloss.NewStyle().
			Foreground(pane.theme.NormalText).
			Render(ansi.Wrap(streaming, width, " ,.;-+|"))
	}

	if body == "" {
		return header
	}
	return header + "\n" + body
}

func (pane *TranscriptPane) renderGuardrails(results []envelope.GuardrailResult, width int) string {
	if len(results) == 0 {
		return ""
	}

	passedStyle := lipgloss.NewStyle().Foreground(pane.theme.GuardrailPassed)
	failedStyle := lipgloss.NewStyle().Foreground(pane.theme.GuardrailFailed)
	faint := lipgloss.NewStyle().Foreground(pane.theme.FaintText)

	var lines []string
	for _, result := range results {
		var line string
		if result.Passed {
			line = passedStyle.Render("✓ " + result.Name)
		} else {
			line = failedStyle.Render("✗ " + result.Name)
			if result.Message != "" {
				line += " " + faint.Render(result.Message)
			}
		}
		if result.Stage != "" {
			line += " " + faint.Render("("+result.Stage+")")
		}
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	return strings.Join(lines, "\n")
}

// renderResult shows the terminal line for a finished run: status,
// token usage, and the error text for failures.
func (pane *TranscriptPane) renderResult(snapshot conversation.Snapshot, width int) string {
	result := snapshot.Result
	if result == nil {
		return ""
	}

	color := pane.theme.RunStatusColor(result.Status)
	statusStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	faint := lipgloss.NewStyle().Foreground(pane.theme.FaintText)

	line := statusStyle.Render("■ " + result.Status)
	if snapshot.Usage.TotalTokens > 0 {
		line += " " + faint.Render(fmt.Sprintf("%d in / %d out / %d total tokens",
			snapshot.Usage.InputTokens, snapshot.Usage.OutputTokens, snapshot.Usage.TotalTokens))
	}
	if result.Error != "" {
		errorStyle := lipgloss.NewStyle().Foreground(pane.theme.PhaseFailed)
		line += "\n" + errorStyle.Render(ansi.Wrap(result.Error, width, " ,.;-+|"))
	}
	return line
}

// View renders the pane as a left-padded content column plus a right
// scrollbar, exactly height lines tall.
func (pane TranscriptPane) View(focused bool) string {
	if pane.height < 1 {
		return ""
	}

	if !pane.hasContent || len(pane.snapshot.Entries) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(pane.theme.FaintText)
		content := lipgloss.NewStyle().
			PaddingLeft(1).
			Width(pane.width - 1).
			Height(pane.height).
			Render(lipgloss.Place(
				pane.contentWidth(), pane.height,
				lipgloss.Center, lipgloss.Center,
				emptyStyle.Render("no messages yet"),
			))
		scrollbar := tui.RenderScrollbar(pane.theme, pane.height, 0, pane.height, 0, focused)
		return lipgloss.JoinHorizontal(lipgloss.Top, content, scrollbar)
	}

	content := lipgloss.NewStyle().
		PaddingLeft(1).
		Width(pane.width - 1).
		Height(pane.height).
		Render(pane.viewport.View())

	scrollbar := tui.RenderScrollbar(
		pane.theme, pane.height,
		pane.viewport.TotalLineCount(), pane.viewport.Height, pane.viewport.YOffset,
		focused,
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, content, scrollbar)
}
