// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-ops/parley/lib/conversation"
)

// Theme defines the color palette and visual properties for Parley's
// console. All colors use lipgloss ANSI 256-color codes for broad
// terminal compatibility.
//
// The fields cover both universal chrome (text, selection, borders)
// and semantic categories that recur across panes: conversation
// phases, run statuses, guardrail verdicts, and workflow graph
// highlighting.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Conversation phase colors for the status line.
	PhaseIdle      lipgloss.Color
	PhaseStreaming lipgloss.Color
	PhaseReplaying lipgloss.Color
	PhaseFailed    lipgloss.Color

	// Run status colors for the run picker.
	RunCompleted  lipgloss.Color
	RunFailed     lipgloss.Color
	RunInProgress lipgloss.Color
	RunCancelled  lipgloss.Color

	// Guardrail verdicts.
	GuardrailPassed lipgloss.Color
	GuardrailFailed lipgloss.Color

	// Workflow graph. The active node and animated edge carry the
	// execution highlight; everything else renders in NodeText and
	// EdgeColor.
	NodeText             lipgloss.Color
	NodeActiveForeground lipgloss.Color
	NodeActiveBackground lipgloss.Color
	EdgeColor            lipgloss.Color
	EdgeAnimated         lipgloss.Color

	// Side-channel accents.
	ReasoningText lipgloss.Color
	ToolAccent    lipgloss.Color
	UserText      lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// OverlayBackground is the solid backdrop for modal surfaces
	// spliced over the main view (the run picker).
	OverlayBackground lipgloss.Color

	// Animation accents: background tint for recently-changed items.
	// HotAccentUpdate is used for streaming appends; HotAccentAlert
	// for failures and suppressed input.
	HotAccentUpdate lipgloss.Color
	HotAccentAlert  lipgloss.Color

	// Search and filter match highlighting.
	SearchHighlightBackground lipgloss.Color
	SearchCurrentBackground   lipgloss.Color
}

// PhaseColor returns the color for a conversation phase. Unknown
// phases return FaintText.
func (theme Theme) PhaseColor(phase conversation.Phase) lipgloss.Color {
	switch phase {
	case conversation.PhaseIdle:
		return theme.PhaseIdle
	case conversation.PhaseStreaming:
		return theme.PhaseStreaming
	case conversation.PhaseReplaying:
		return theme.PhaseReplaying
	case conversation.PhaseFailed:
		return theme.PhaseFailed
	default:
		return theme.FaintText
	}
}

// RunStatusColor returns the color for a run status string.
// Recognizes the producer's lifecycle statuses and returns FaintText
// for unknown values.
func (theme Theme) RunStatusColor(status string) lipgloss.Color {
	switch status {
	case "completed":
		return theme.RunCompleted
	case "failed":
		return theme.RunFailed
	case "in_progress", "queued":
		return theme.RunInProgress
	case "cancelled":
		return theme.RunCancelled
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	PhaseIdle:      lipgloss.Color("114"), // green
	PhaseStreaming: lipgloss.Color("220"), // yellow/amber
	PhaseReplaying: lipgloss.Color("141"), // light purple
	PhaseFailed:    lipgloss.Color("196"), // red

	RunCompleted:  lipgloss.Color("114"),
	RunFailed:     lipgloss.Color("196"),
	RunInProgress: lipgloss.Color("220"),
	RunCancelled:  lipgloss.Color("245"),

	GuardrailPassed: lipgloss.Color("114"),
	GuardrailFailed: lipgloss.Color("203"), // soft red, distinct from phase failure

	NodeText:             lipgloss.Color("252"),
	NodeActiveForeground: lipgloss.Color("231"),
	NodeActiveBackground: lipgloss.Color("24"), // deep blue block
	EdgeColor:            lipgloss.Color("240"),
	EdgeAnimated:         lipgloss.Color("75"), // blue pulse

	ReasoningText: lipgloss.Color("245"),
	ToolAccent:    lipgloss.Color("179"), // sand, for nested tool panes
	UserText:      lipgloss.Color("117"), // light blue operator text

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	OverlayBackground: lipgloss.Color("237"), // slightly lighter than terminal background

	HotAccentUpdate: lipgloss.Color("58"), // dark amber background tint
	HotAccentAlert:  lipgloss.Color("52"), // dark red background tint

	SearchHighlightBackground: lipgloss.Color("58"),
	SearchCurrentBackground:   lipgloss.Color("100"),
}

// LightTheme is the built-in light-terminal color scheme.
var LightTheme = Theme{
	NormalText: lipgloss.Color("235"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("253"),
	SelectedForeground: lipgloss.Color("16"),

	PhaseIdle:      lipgloss.Color("28"),
	PhaseStreaming: lipgloss.Color("130"),
	PhaseReplaying: lipgloss.Color("91"),
	PhaseFailed:    lipgloss.Color("124"),

	RunCompleted:  lipgloss.Color("28"),
	RunFailed:     lipgloss.Color("124"),
	RunInProgress: lipgloss.Color("130"),
	RunCancelled:  lipgloss.Color("243"),

	GuardrailPassed: lipgloss.Color("28"),
	GuardrailFailed: lipgloss.Color("160"),

	NodeText:             lipgloss.Color("235"),
	NodeActiveForeground: lipgloss.Color("231"),
	NodeActiveBackground: lipgloss.Color("25"),
	EdgeColor:            lipgloss.Color("248"),
	EdgeAnimated:         lipgloss.Color("26"),

	ReasoningText: lipgloss.Color("243"),
	ToolAccent:    lipgloss.Color("94"),
	UserText:      lipgloss.Color("24"),

	HeaderForeground: lipgloss.Color("16"),
	BorderColor:      lipgloss.Color("248"),
	HelpText:         lipgloss.Color("247"),

	OverlayBackground: lipgloss.Color("254"),

	HotAccentUpdate: lipgloss.Color("229"),
	HotAccentAlert:  lipgloss.Color("224"),

	SearchHighlightBackground: lipgloss.Color("229"),
	SearchCurrentBackground:   lipgloss.Color("221"),
}

// ThemeByName resolves a configured theme name. Unknown names fall
// back to the dark default rather than failing startup.
func ThemeByName(name string) Theme {
	switch name {
	case "parley-light":
		return LightTheme
	default:
		return DefaultTheme
	}
}
