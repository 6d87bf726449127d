// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-ops/parley/lib/projection"
	"github.com/parley-ops/parley/lib/tui"
)

// expandedToolLines caps the output tail shown for an expanded tool.
const expandedToolLines = 6

// collapsedExcerptLines is the preview size for the selected but
// collapsed tool.
const collapsedExcerptLines = 2

// ToolsPane is an accordion over the run's tool sub-streams. Each
// tool call is one row; expanding a row reveals the tail of its
// accumulated output. The selected collapsed row shows a short
// excerpt so the operator can decide whether to expand. Rows whose
// output grew recently carry a heat background.
type ToolsPane struct {
	theme    tui.Theme
	cursor   int
	offset   int
	expanded map[string]bool
}

// NewToolsPane creates an empty tools pane with nothing expanded.
func NewToolsPane(theme tui.Theme) ToolsPane {
	return ToolsPane{
		theme:    theme,
		expanded: make(map[string]bool),
	}
}

// MoveUp moves the selection one tool up.
func (pane *ToolsPane) MoveUp() {
	if pane.cursor > 0 {
		pane.cursor--
	}
}

// MoveDown moves the selection one tool down. Bounds are enforced at
// render time.
func (pane *ToolsPane) MoveDown() {
	pane.cursor++
}

// Toggle flips the expansion state of the selected tool.
func (pane *ToolsPane) Toggle(tools []projection.ToolStream) {
	pane.clampCursor(len(tools))
	if pane.cursor >= len(tools) {
		return
	}
	id := tools[pane.cursor].ToolCallID
	pane.expanded[id] = !pane.expanded[id]
}

func (pane *ToolsPane) clampCursor(toolCount int) {
	if pane.cursor >= toolCount {
		pane.cursor = toolCount - 1
	}
	if pane.cursor < 0 {
		pane.cursor = 0
	}
}

// rowHeight is the number of lines a tool occupies at the current
// selection and expansion state.
func (pane *ToolsPane) rowHeight(tool projection.ToolStream, index int, focused bool) int {
	if pane.expanded[tool.ToolCallID] {
		tail := pane.tailLines(tool.Text)
		return 1 + len(tail)
	}
	if focused && index == pane.cursor {
		excerpt := tui.ExtractExcerpt(tool.Text, 40, collapsedExcerptLines)
		return 1 + len(excerpt)
	}
	return 1
}

// View renders the pane: a section header line, then a window of
// tool rows keeping the selection visible.
func (pane *ToolsPane) View(tools []projection.ToolStream, width, height int, focused bool, heat *tui.HeatTracker, now time.Time) string {
	if height < 1 {
		return ""
	}

	lines := []string{pane.sectionHeader(len(tools), width, focused)}
	bodyHeight := height - 1

	if len(tools) == 0 {
		if bodyHeight > 0 {
			empty := lipgloss.NewStyle().Foreground(pane.theme.FaintText).Render(" no tool calls yet")
			lines = append(lines, ansi.Truncate(empty, width, ""))
		}
		return padLinesToHeight(lines, height)
	}

	pane.clampCursor(len(tools))
	if pane.offset > pane.cursor {
		pane.offset = pane.cursor
	}
	// Scroll forward until the selected row's header line fits.
	for {
		usedBefore := 0
		for index := pane.offset; index < pane.cursor; index++ {
			usedBefore += pane.rowHeight(tools[index], index, focused)
		}
		if usedBefore < bodyHeight || pane.offset == pane.cursor {
			break
		}
		pane.offset++
	}

	used := 0
	for index := pane.offset; index < len(tools) && used < bodyHeight; index++ {
		tool := tools[index]
		selected := focused && index == pane.cursor

		lines = append(lines, pane.renderToolRow(tool, width, selected, heat, now))
		used++

		if pane.expanded[tool.ToolCallID] {
			for _, tailLine := range pane.tailLines(tool.Text) {
				if used >= bodyHeight {
					break
				}
				lines = append(lines, pane.renderOutputLine(tailLine, width))
				used++
			}
			continue
		}

		if selected {
			for _, excerptLine := range tui.ExtractExcerpt(tool.Text, width-4, collapsedExcerptLines) {
				if used >= bodyHeight {
					break
				}
				faint := lipgloss.NewStyle().Foreground(pane.theme.FaintText)
				lines = append(lines, ansi.Truncate("    "+faint.Render(excerptLine), width, "…"))
				used++
			}
		}
	}

	return padLinesToHeight(lines, height)
}

func (pane *ToolsPane) sectionHeader(count, width int, focused bool) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(pane.theme.FaintText)
	if focused {
		style = style.Foreground(pane.theme.HeaderForeground)
	}
	header := style.Render("Tools")
	if count > 0 {
		faint := lipgloss.NewStyle().Foreground(pane.theme.FaintText)
		header += " " + faint.Render(fmt.Sprintf("(%d)", count))
	}
	return ansi.Truncate(header, width, "")
}

func (pane *ToolsPane) renderToolRow(tool projection.ToolStream, width int, selected bool, heat *tui.HeatTracker, now time.Time) string {
	arrow := "▸"
	if pane.expanded[tool.ToolCallID] {
		arrow = "▾"
	}

	status := "✓"
	if tool.IsStreaming {
		status = "◐"
	}

	name := tool.ToolName
	if name == "" {
		name = tool.ToolCallID
	}

	nameStyle := lipgloss.NewStyle().Foreground(pane.theme.ToolAccent)
	faint := lipgloss.NewStyle().Foreground(pane.theme.FaintText)

	row := " " + arrow + " " + nameStyle.Render(name) + " " + faint.Render(status)
	if tool.Agent != "" {
		row += " " + faint.Render(tool.Agent)
	}

	if selected {
		plain := ansi.Strip(row)
		if gap := width - lipgloss.Width(plain); gap > 0 {
			plain += strings.Repeat(" ", gap)
		}
		selectedStyle := lipgloss.NewStyle().
			Foreground(pane.theme.SelectedForeground).
			Background(pane.theme.SelectedBackground)
		return ansi.Truncate(selectedStyle.Render(plain), width, "…")
	}

	if heat != nil {
		if key := toolHeatKey(tool.ToolCallID); heat.Heat(key, now) > 0 {
			plain := ansi.Strip(row)
			hotStyle := lipgloss.NewStyle().
				Foreground(pane.theme.NormalText).
				Background(heatAccent(pane.theme, heat.Kind(key)))
			return ansi.Truncate(hotStyle.Render(plain), width, "…")
		}
	}

	return ansi.Truncate(row, width, "…")
}

func (pane *ToolsPane) renderOutputLine(line string, width int) string {
	style := lipgloss.NewStyle().Foreground(pane.theme.NormalText)
	return ansi.Truncate("    "+style.Render(line), width, "…")
}

// tailLines returns the last few non-empty lines of a tool's output.
// The tail is the interesting part while output accumulates.
func (pane *ToolsPane) tailLines(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) > expandedToolLines {
		lines = lines[len(lines)-expandedToolLines:]
	}
	return lines
}

func padLinesToHeight(lines []string, height int) string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

// toolHeatKey is the heat tracker key for a tool sub-stream.
func toolHeatKey(toolCallID string) string {
	return "tool:" + toolCallID
}
