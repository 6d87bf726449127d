// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/junegunn/fzf/src/util"

	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/tui"
)

// runPickerMaxRows caps the visible result list.
const runPickerMaxRows = 10

// RunPicker is the modal for loading a historical run into the view.
// It fuzzy-filters the run index as the operator types and replays
// the selected run on enter. Rendered as an overlay spliced over the
// main view.
type RunPicker struct {
	theme tui.Theme

	active  bool
	loading bool
	err     error

	runs   []ledger.RunSummary
	query  []rune
	cursor int
	offset int

	// slab is reused across matches within a render pass.
	slab *util.Slab
}

// scoredRun pairs a run with its fuzzy match result.
type scoredRun struct {
	run       ledger.RunSummary
	score     int
	positions []int
}

// NewRunPicker creates an inactive run picker.
func NewRunPicker(theme tui.Theme) RunPicker {
	return RunPicker{
		theme: theme,
		slab:  tui.NewSlab(),
	}
}

// Active reports whether the picker is showing.
func (picker *RunPicker) Active() bool {
	return picker.active
}

// Open shows the picker in loading state. The caller kicks off the
// run index fetch and delivers the result via SetRuns.
func (picker *RunPicker) Open() {
	picker.active = true
	picker.loading = true
	picker.err = nil
	picker.runs = nil
	picker.query = nil
	picker.cursor = 0
	picker.offset = 0
}

// Close hides the picker.
func (picker *RunPicker) Close() {
	picker.active = false
}

// SetRuns delivers the fetched run index, or the fetch error.
func (picker *RunPicker) SetRuns(runs []ledger.RunSummary, err error) {
	picker.loading = false
	picker.err = err
	picker.runs = runs
	picker.cursor = 0
	picker.offset = 0
}

// Type appends characters to the filter query.
func (picker *RunPicker) Type(runes []rune) {
	picker.query = append(picker.query, runes...)
	picker.cursor = 0
	picker.offset = 0
}

// Backspace removes the last query character.
func (picker *RunPicker) Backspace() {
	if len(picker.query) > 0 {
		picker.query = picker.query[:len(picker.query)-1]
		picker.cursor = 0
		picker.offset = 0
	}
}

// MoveUp moves the selection one row up.
func (picker *RunPicker) MoveUp() {
	if picker.cursor > 0 {
		picker.cursor--
	}
}

// MoveDown moves the selection one row down. Bounds are enforced
// against the filtered set at render and selection time.
func (picker *RunPicker) MoveDown() {
	picker.cursor++
}

// Selected returns the highlighted run, if any.
func (picker *RunPicker) Selected() (ledger.RunSummary, bool) {
	filtered := picker.filtered()
	if len(filtered) == 0 {
		return ledger.RunSummary{}, false
	}
	cursor := picker.cursor
	if cursor >= len(filtered) {
		cursor = len(filtered) - 1
	}
	return filtered[cursor].run, true
}

// runDisplayText is the string the query matches against and the row
// displays: run ID, title, and workflow key.
func runDisplayText(run ledger.RunSummary) string {
	text := run.RunID
	if run.Title != "" {
		text += "  " + run.Title
	}
	if run.WorkflowKey != "" {
		text += "  " + run.WorkflowKey
	}
	return text
}

// filtered returns the runs matching the query, best score first.
// The sort is stable, so equal scores keep the index's newest-first
// order. An empty query passes everything through unscored.
func (picker *RunPicker) filtered() []scoredRun {
	if len(picker.query) == 0 {
		out := make([]scoredRun, 0, len(picker.runs))
		for _, run := range picker.runs {
			out = append(out, scoredRun{run: run})
		}
		return out
	}

	var out []scoredRun
	for _, run := range picker.runs {
		match := tui.FuzzyMatch(runDisplayText(run), picker.query, picker.slab)
		if match.Score <= 0 {
			continue
		}
		out = append(out, scoredRun{run: run, score: match.Score, positions: match.Positions})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score > out[j].score
	})
	return out
}

// statusGlyph marks a run's lifecycle in its status color.
func (picker *RunPicker) statusGlyph(status string, background lipgloss.Color) string {
	glyph := "●"
	if status == "in_progress" || status == "queued" {
		glyph = "◐"
	}
	style := lipgloss.NewStyle().
		Foreground(picker.theme.RunStatusColor(status)).
		Background(background)
	return style.Render(glyph)
}

// relativeAge renders an RFC 3339 timestamp as a short age. Returns
// empty for unparsable input.
func relativeAge(startedAt string, now time.Time) string {
	parsed, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return ""
	}
	elapsed := now.Sub(parsed)
	switch {
	case elapsed < time.Minute:
		return "now"
	case elapsed < time.Hour:
		return strconv.Itoa(int(elapsed.Minutes())) + "m"
	case elapsed < 24*time.Hour:
		return strconv.Itoa(int(elapsed.Hours())) + "h"
	default:
		return strconv.Itoa(int(elapsed.Hours()/24)) + "d"
	}
}

// highlightMatch styles display text with matched positions carrying
// the search highlight background. Consecutive runs of matched and
// unmatched runes are styled in batches.
func (picker *RunPicker) highlightMatch(text string, positions []int, foreground, background lipgloss.Color) string {
	baseStyle := lipgloss.NewStyle().Foreground(foreground).Background(background)
	if len(positions) == 0 {
		return baseStyle.Render(text)
	}

	matched := make(map[int]bool, len(positions))
	for _, position := range positions {
		matched[position] = true
	}
	highlightStyle := lipgloss.NewStyle().
		Foreground(foreground).
		Background(picker.theme.SearchHighlightBackground).
		Bold(true)

	var result strings.Builder
	var segment []rune
	segmentMatched := false
	flush := func() {
		if len(segment) == 0 {
			return
		}
		if segmentMatched {
			result.WriteString(highlightStyle.Render(string(segment)))
		} else {
			result.WriteString(baseStyle.Render(string(segment)))
		}
		segment = segment[:0]
	}
	for index, character := range []rune(text) {
		isMatch := matched[index]
		if isMatch != segmentMatched {
			flush()
			segmentMatched = isMatch
		}
		segment = append(segment, character)
	}
	flush()
	return result.String()
}

// Render produces the modal lines and the anchor that centers them
// on screen, in the shape SpliceOverlay expects.
func (picker *RunPicker) Render(screenWidth, screenHeight int, now time.Time) ([]string, int, int) {
	modalWidth := 72
	if modalWidth > screenWidth-6 {
		modalWidth = screenWidth - 6
	}
	if modalWidth < 30 {
		modalWidth = 30
	}
	innerWidth := modalWidth - 4

	backgroundStyle := lipgloss.NewStyle().Background(picker.theme.OverlayBackground)
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(picker.theme.HeaderForeground).
		Background(picker.theme.OverlayBackground)
	faintStyle := lipgloss.NewStyle().
		Foreground(picker.theme.FaintText).
		Background(picker.theme.OverlayBackground)
	footerStyle := lipgloss.NewStyle().
		Foreground(picker.theme.HelpText).
		Background(picker.theme.OverlayBackground)

	var rows []string
	pad := func(content string) {
		rows = append(rows, tui.PadOverlayLine(content, innerWidth, innerWidth+2, backgroundStyle))
	}

	filtered := picker.filtered()
	title := titleStyle.Render("Load Run")
	if !picker.loading && picker.err == nil {
		title += faintStyle.Render("  " + strconv.Itoa(len(filtered)) + "/" + strconv.Itoa(len(picker.runs)))
	}
	pad(title)

	// Query line with a block cursor.
	queryStyle := lipgloss.NewStyle().
		Foreground(picker.theme.NormalText).
		Background(picker.theme.OverlayBackground)
	cursorStyle := lipgloss.NewStyle().Reverse(true)
	pad(queryStyle.Render("▸ "+string(picker.query)) + cursorStyle.Render(" "))

	switch {
	case picker.loading:
		pad(faintStyle.Render("loading runs…"))

	case picker.err != nil:
		errorStyle := lipgloss.NewStyle().
			Foreground(picker.theme.PhaseFailed).
			Background(picker.theme.OverlayBackground)
		pad(errorStyle.Render(ansi.Truncate("error: "+picker.err.Error(), innerWidth, "…")))

	case len(filtered) == 0:
		pad(faintStyle.Render("no matching runs"))

	default:
		visible := runPickerMaxRows
		if visible > len(filtered) {
			visible = len(filtered)
		}
		if maxBody := screenHeight - 8; visible > maxBody && maxBody > 0 {
			visible = maxBody
		}

		if picker.cursor >= len(filtered) {
			picker.cursor = len(filtered) - 1
		}
		if picker.cursor < picker.offset {
			picker.offset = picker.cursor
		}
		if picker.cursor >= picker.offset+visible {
			picker.offset = picker.cursor - visible + 1
		}

		for index := picker.offset; index < picker.offset+visible && index < len(filtered); index++ {
			pad(picker.renderRow(filtered[index], index == picker.cursor, innerWidth, now))
		}
	}

	pad(footerStyle.Render("enter load · esc close"))

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(picker.theme.BorderColor).
		Background(picker.theme.OverlayBackground)
	rendered := borderStyle.Render(strings.Join(rows, "\n"))
	lines := strings.Split(rendered, "\n")

	renderedWidth := 0
	if len(lines) > 0 {
		renderedWidth = ansi.StringWidth(lines[0])
	}
	anchorX := (screenWidth - renderedWidth) / 2
	anchorY := (screenHeight - len(lines)) / 2
	if anchorX < 0 {
		anchorX = 0
	}
	if anchorY < 0 {
		anchorY = 0
	}
	return lines, anchorX, anchorY
}

// renderRow builds one result row: status glyph, match-highlighted
// display text, right-aligned age.
func (picker *RunPicker) renderRow(scored scoredRun, selected bool, innerWidth int, now time.Time) string {
	background := picker.theme.OverlayBackground
	foreground := picker.theme.NormalText
	if selected {
		background = picker.theme.SelectedBackground
		foreground = picker.theme.SelectedForeground
	}
	rowStyle := lipgloss.NewStyle().Foreground(foreground).Background(background)

	age := relativeAge(scored.run.StartedAt, now)
	ageWidth := 0
	if age != "" {
		ageWidth = ansi.StringWidth(age) + 1
	}

	textWidth := innerWidth - 2 - ageWidth
	if textWidth < 8 {
		textWidth = 8
	}
	text := picker.highlightMatch(runDisplayText(scored.run), scored.positions, foreground, background)
	text = ansi.Truncate(text, textWidth, "…")

	row := picker.statusGlyph(scored.run.Status, background) + rowStyle.Render(" ") + text
	if gap := textWidth - ansi.StringWidth(text); gap > 0 {
		row += rowStyle.Render(strings.Repeat(" ", gap))
	}
	if age != "" {
		ageStyle := lipgloss.NewStyle().Foreground(picker.theme.FaintText).Background(background)
		row += rowStyle.Render(" ") + ageStyle.Render(age)
	}
	return row
}
