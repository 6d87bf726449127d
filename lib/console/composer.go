// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-ops/parley/lib/tui"
)

// Composer is the single-line message input at the bottom of the
// console. Line breaks inserted with the Newline binding are kept in
// the sent text but displayed inline as ⏎ so the composer stays one
// row tall.
type Composer struct {
	buffer []rune
	cursor int
	theme  tui.Theme
}

// NewComposer creates an empty composer.
func NewComposer(theme tui.Theme) Composer {
	return Composer{theme: theme}
}

// Value returns the composed text.
func (composer Composer) Value() string {
	return string(composer.buffer)
}

// Empty reports whether nothing has been typed.
func (composer Composer) Empty() bool {
	return len(strings.TrimSpace(string(composer.buffer))) == 0
}

// Clear discards the buffer, keeping focus state with the caller.
func (composer *Composer) Clear() {
	composer.buffer = nil
	composer.cursor = 0
}

// InsertNewline inserts a line break at the cursor.
func (composer *Composer) InsertNewline() {
	composer.insertRune('\n')
}

// Update processes a key message while the composer has focus.
func (composer *Composer) Update(message tea.KeyMsg) {
	switch message.Type {
	case tea.KeyRunes, tea.KeySpace:
		for _, character := range message.Runes {
			composer.insertRune(character)
		}

	case tea.KeyBackspace:
		if composer.cursor > 0 {
			composer.buffer = append(composer.buffer[:composer.cursor-1], composer.buffer[composer.cursor:]...)
			composer.cursor--
		}

	case tea.KeyDelete:
		if composer.cursor < len(composer.buffer) {
			composer.buffer = append(composer.buffer[:composer.cursor], composer.buffer[composer.cursor+1:]...)
		}

	case tea.KeyLeft:
		if composer.cursor > 0 {
			composer.cursor--
		}

	case tea.KeyRight:
		if composer.cursor < len(composer.buffer) {
			composer.cursor++
		}

	case tea.KeyHome, tea.KeyCtrlA:
		composer.cursor = 0

	case tea.KeyEnd, tea.KeyCtrlE:
		composer.cursor = len(composer.buffer)

	case tea.KeyCtrlU:
		composer.buffer = append([]rune{}, composer.buffer[composer.cursor:]...)
		composer.cursor = 0
	}
}

func (composer *Composer) insertRune(character rune) {
	buffer := make([]rune, 0, len(composer.buffer)+1)
	buffer = append(buffer, composer.buffer[:composer.cursor]...)
	buffer = append(buffer, character)
	buffer = append(buffer, composer.buffer[composer.cursor:]...)
	composer.buffer = buffer
	composer.cursor++
}

// View renders the composer as a single input row with a block
// cursor. When the composer is longer than the row, the window slides
// to keep the cursor visible.
func (composer Composer) View(width int, focused bool, sending bool) string {
	prompt := "› "
	if sending {
		prompt = "◌ "
	}
	promptColor := composer.theme.FaintText
	if focused {
		promptColor = composer.theme.PhaseStreaming
	}
	promptStyle := lipgloss.NewStyle().Foreground(promptColor)

	available := width - ansi.StringWidth(prompt)
	if available < 1 {
		available = 1
	}

	display := make([]rune, len(composer.buffer))
	for index, character := range composer.buffer {
		if character == '\n' {
			display[index] = '⏎'
		} else {
			display[index] = character
		}
	}

	// Slide the window so the cursor stays visible. Cursor occupies
	// one cell, so the text window is one narrower.
	windowStart := 0
	if composer.cursor >= available {
		windowStart = composer.cursor - available + 1
	}
	windowEnd := windowStart + available - 1
	if windowEnd > len(display) {
		windowEnd = len(display)
	}

	before := string(display[windowStart:min(composer.cursor, windowEnd)])
	var underCursor string
	after := ""
	if composer.cursor < len(display) {
		underCursor = string(display[composer.cursor])
		if composer.cursor+1 <= windowEnd {
			after = string(display[composer.cursor+1 : windowEnd])
		}
	} else {
		underCursor = " "
	}

	textStyle := lipgloss.NewStyle().Foreground(composer.theme.NormalText)
	var line string
	if focused {
		cursorStyle := lipgloss.NewStyle().
			Foreground(composer.theme.SelectedForeground).
			Background(composer.theme.SelectedBackground).
			Reverse(true)
		line = textStyle.Render(before) + cursorStyle.Render(underCursor) + textStyle.Render(after)
	} else {
		line = textStyle.Render(string(display))
		if len(display) == 0 {
			line = lipgloss.NewStyle().Foreground(composer.theme.FaintText).Render("press i to compose")
		}
	}

	return promptStyle.Render(prompt) + line
}
