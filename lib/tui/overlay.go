// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// SpliceOverlay replaces a rectangular region of a rendered view with
// overlay content, anchored at (anchorX, anchorY) in screen
// coordinates. The console uses this to float the run picker and
// other popups over the live panes without re-rendering them.
// Truncation is ANSI-aware so escape sequences in the underlying view
// survive on both sides of the overlay.
func SpliceOverlay(view string, overlayLines []string, anchorX, anchorY int) string {
	if len(overlayLines) == 0 {
		return view
	}

	viewLines := strings.Split(view, "\n")
	overlayWidth := ansi.StringWidth(overlayLines[0])

	for index, overlayLine := range overlayLines {
		viewLineIndex := anchorY + index
		if viewLineIndex < 0 || viewLineIndex >= len(viewLines) {
			continue
		}

		viewLine := viewLines[viewLineIndex]
		viewLineWidth := ansi.StringWidth(viewLine)

		// Assemble prefix + reset + overlay + reset + suffix. The
		// resets keep the underlying line's open styles from bleeding
		// into the overlay and vice versa.
		var spliced strings.Builder
		if anchorX > 0 {
			spliced.WriteString(ansi.Truncate(viewLine, anchorX, ""))
		}
		spliced.WriteString("\x1b[0m")
		spliced.WriteString(overlayLine)
		spliced.WriteString("\x1b[0m")

		suffixStart := anchorX + overlayWidth
		if suffixStart < viewLineWidth {
			spliced.WriteString(ansi.TruncateLeft(viewLine, suffixStart, ""))
		}

		viewLines[viewLineIndex] = spliced.String()
	}

	return strings.Join(viewLines, "\n")
}

// PadOverlayLine pads styled content to the overlay's inner width
// with background-colored spaces, producing " content  " with the
// background carried across the padding. Every overlay row goes
// through this so the popup reads as a solid panel.
func PadOverlayLine(styledContent string, innerWidth, totalWidth int, backgroundStyle lipgloss.Style) string {
	contentWidth := ansi.StringWidth(styledContent)
	rightPad := innerWidth - contentWidth
	if rightPad < 0 {
		rightPad = 0
	}
	return backgroundStyle.Render(" ") +
		styledContent +
		backgroundStyle.Render(strings.Repeat(" ", rightPad+1))
}

// ExtractExcerpt returns the first maxLines non-blank lines of body,
// each truncated to maxWidth. The run picker uses it to preview the
// opening of a run's transcript next to the result list.
func ExtractExcerpt(body string, maxWidth, maxLines int) []string {
	var excerpt []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if ansi.StringWidth(trimmed) > maxWidth {
			trimmed = ansi.Truncate(trimmed, maxWidth-1, "…")
		}
		excerpt = append(excerpt, trimmed)
		if len(excerpt) >= maxLines {
			break
		}
	}
	return excerpt
}
