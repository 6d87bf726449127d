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

// expandedSlotLines caps how many wrapped lines the selected
// reasoning slot may take, so one long summary cannot push the rest
// of the pane off screen.
const expandedSlotLines = 4

// ReasoningPane lists the reasoning summary slots for the current
// run. Each slot is one row; the selected slot expands to show its
// wrapped text while the pane has focus. Rows that received deltas
// recently carry a heat background.
type ReasoningPane struct {
	theme  tui.Theme
	cursor int
	offset int
}

// NewReasoningPane creates an empty reasoning pane.
func NewReasoningPane(theme tui.Theme) ReasoningPane {
	return ReasoningPane{theme: theme}
}

// MoveUp moves the selection one slot up.
func (pane *ReasoningPane) MoveUp() {
	if pane.cursor > 0 {
		pane.cursor--
	}
}

// MoveDown moves the selection one slot down. The bound is enforced
// at render time because the slot count lives in the snapshot.
func (pane *ReasoningPane) MoveDown() {
	pane.cursor++
}

// clamp bounds the cursor and scroll offset to the current slot
// count and window size.
func (pane *ReasoningPane) clamp(slotCount, visible int) {
	if pane.cursor >= slotCount {
		pane.cursor = slotCount - 1
	}
	if pane.cursor < 0 {
		pane.cursor = 0
	}
	if pane.cursor < pane.offset {
		pane.offset = pane.cursor
	}
	if visible > 0 && pane.cursor >= pane.offset+visible {
		pane.offset = pane.cursor - visible + 1
	}
}

// slotGlyph marks a slot's lifecycle: half-circle while streaming,
// full once done.
func (pane ReasoningPane) slotGlyph(slot projection.ReasoningSlot) string {
	if slot.Done() {
		return "●"
	}
	return "◐"
}

// View renders the pane at the given size. The first line is the
// section header; the remaining height shows a window of slots
// keeping the selection visible.
func (pane *ReasoningPane) View(slots []projection.ReasoningSlot, width, height int, focused bool, heat *tui.HeatTracker, now time.Time) string {
	if height < 1 {
		return ""
	}

	lines := []string{pane.sectionHeader(len(slots), width, focused)}
	bodyHeight := height - 1

	if len(slots) == 0 {
		if bodyHeight > 0 {
			empty := lipgloss.NewStyle().Foreground(pane.theme.FaintText).Render(" no reasoning yet")
			lines = append(lines, ansi.Truncate(empty, width, ""))
		}
		return padLinesToHeight(lines, height)
	}

	// The selected slot may occupy several lines; budget the window
	// conservatively so clamping never scrolls the cursor out.
	windowSlots := bodyHeight
	if focused && windowSlots > expandedSlotLines {
		windowSlots = bodyHeight - expandedSlotLines + 1
	}
	if windowSlots < 1 {
		windowSlots = 1
	}
	pane.clamp(len(slots), windowSlots)

	used := 0
	for index := pane.offset; index < len(slots) && used < bodyHeight; index++ {
		slot := slots[index]
		selected := focused && index == pane.cursor

		if selected {
			expanded := pane.renderExpandedSlot(slot, width, bodyHeight-used)
			lines = append(lines, expanded...)
			used += len(expanded)
			continue
		}
		lines = append(lines, pane.renderSlotRow(slot, width, heat, now))
		used++
	}

	return padLinesToHeight(lines, height)
}

func (pane ReasoningPane) sectionHeader(count, width int, focused bool) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(pane.theme.FaintText)
	if focused {
		style = style.Foreground(pane.theme.HeaderForeground)
	}
	header := style.Render("Reasoning")
	if count > 0 {
		faint := lipgloss.NewStyle().Foreground(pane.theme.FaintText)
		header += " " + faint.Render(fmt.Sprintf("(%d)", count))
	}
	return ansi.Truncate(header, width, "")
}

// renderSlotRow renders one collapsed slot line with heat background
// when the slot changed recently.
func (pane ReasoningPane) renderSlotRow(slot projection.ReasoningSlot, width int, heat *tui.HeatTracker, now time.Time) string {
	text := strings.ReplaceAll(slot.Text, "\n", " ")
	if text == "" {
		text = slot.PartType
	}

	style := lipgloss.NewStyle().Foreground(pane.theme.ReasoningText)
	if heat != nil {
		if key := reasoningHeatKey(slot.Key); heat.Heat(key, now) > 0 {
			style = style.Background(heatAccent(pane.theme, heat.Kind(key)))
		}
	}

	row := style.Render(" " + pane.slotGlyph(slot) + " " + text)
	return ansi.Truncate(row, width, "…")
}

// renderExpandedSlot renders the selected slot with its text wrapped
// across multiple lines, capped by the remaining height.
func (pane ReasoningPane) renderExpandedSlot(slot projection.ReasoningSlot, width, maxLines int) []string {
	budget := expandedSlotLines
	if budget > maxLines {
		budget = maxLines
	}
	if budget < 1 {
		budget = 1
	}

	selectedStyle := lipgloss.NewStyle().
		Foreground(pane.theme.SelectedForeground).
		Background(pane.theme.SelectedBackground)

	text := slot.Text
	if text == "" {
		text = slot.PartType
	}
	wrapWidth := width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	wrapped := strings.Split(ansi.Wrap(text, wrapWidth, " ,.;-+|"), "\n")
	if len(wrapped) > budget {
		wrapped = wrapped[:budget]
		last := wrapped[budget-1]
		wrapped[budget-1] = ansi.Truncate(last, wrapWidth-1, "") + "…"
	}

	var lines []string
	for index, line := range wrapped {
		prefix := "   "
		if index == 0 {
			prefix = " " + pane.slotGlyph(slot) + " "
		}
		padded := prefix + line
		if gap := width - lipgloss.Width(padded); gap > 0 {
			padded += strings.Repeat(" ", gap)
		}
		lines = append(lines, ansi.Truncate(selectedStyle.Render(padded), width, ""))
	}
	return lines
}

// reasoningHeatKey is the heat tracker key for a reasoning slot.
func reasoningHeatKey(key projection.SlotKey) string {
	return "slot:" + key.String()
}

// heatAccent maps a heat kind to its background tint.
func heatAccent(theme tui.Theme, kind tui.HeatKind) lipgloss.Color {
	if kind == tui.HeatAlert {
		return theme.HotAccentAlert
	}
	return theme.HotAccentUpdate
}
