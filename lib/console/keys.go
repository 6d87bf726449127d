// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the console.
type KeyMap struct {
	// Navigation (context-sensitive: scrolls whichever pane has
	// focus, or moves the tool/run cursor).
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Focus switching.
	FocusNext       key.Binding
	FocusTranscript key.Binding
	FocusReasoning  key.Binding
	FocusTools      key.Binding

	// Composer (live mode only).
	Compose key.Binding // Focus the composer.
	Send    key.Binding // Submit the composed message.
	Newline key.Binding // Insert a line break into the composer.

	// Tool accordion.
	ToggleTool key.Binding // Expand or collapse the selected tool stream.

	// Run picker (live mode only).
	RunPicker key.Binding

	// Escape: leave the composer, dismiss the picker, or cancel the
	// in-flight stream, in that priority order.
	Escape key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set. Vim-style navigation
// (j/k) alongside standard arrow keys and page up/down.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	FocusNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "switch pane"),
	),
	FocusTranscript: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "transcript"),
	),
	FocusReasoning: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "reasoning"),
	),
	FocusTools: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "tools"),
	),
	Compose: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "compose"),
	),
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "send"),
	),
	Newline: key.NewBinding(
		key.WithKeys("ctrl+j"),
		key.WithHelp("C-j", "newline"),
	),
	ToggleTool: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("Enter", "expand"),
	),
	RunPicker: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "runs"),
	),
	Escape: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "back/cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
