// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-ops/parley/lib/tui"
	"github.com/parley-ops/parley/lib/workflow"
)

// edgePulseFrames is the glyph cycle for the animated edge. Advancing
// through the frames reads as flow along the connector.
var edgePulseFrames = [...]string{"╎", "│", "┃", "│"}

// WorkflowPane renders the workflow graph as a stage-grouped node
// list. At most one node carries the active highlight and at most one
// connector animates, mirroring the highlight state the node store
// maintains. The pane is informational only and takes no focus.
type WorkflowPane struct {
	theme tui.Theme
}

// NewWorkflowPane creates a workflow pane.
func NewWorkflowPane(theme tui.Theme) WorkflowPane {
	return WorkflowPane{theme: theme}
}

// View renders the graph at the given size. When an active node
// exists the window scrolls to keep it visible.
func (pane WorkflowPane) View(nodes []workflow.Node, active *workflow.Node, animated *workflow.Edge, width, height int, now time.Time) string {
	if height < 1 {
		return ""
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(pane.theme.FaintText).Render("Workflow")
	lines := []string{ansi.Truncate(header, width, "")}
	bodyHeight := height - 1

	if len(nodes) == 0 {
		if bodyHeight > 0 {
			empty := lipgloss.NewStyle().Foreground(pane.theme.FaintText).Render(" no workflow")
			lines = append(lines, ansi.Truncate(empty, width, ""))
		}
		return padLinesToHeight(lines, height)
	}

	activeIndex := pane.activeIndex(nodes, active)

	// Build the full body, tracking which line carries the active
	// node so the window can center on it.
	var body []string
	activeLine := -1
	currentStage := ""
	for index, node := range nodes {
		if node.Stage != currentStage {
			currentStage = node.Stage
			stageStyle := lipgloss.NewStyle().Foreground(pane.theme.FaintText).Bold(true)
			body = append(body, ansi.Truncate(stageStyle.Render(" "+node.Stage), width, "…"))
		} else if index > 0 {
			body = append(body, pane.renderConnector(index, animated, now))
		}

		if index == activeIndex {
			activeLine = len(body)
		}
		body = append(body, pane.renderNode(node, index == activeIndex, width))
	}

	// Window the body around the active node.
	offset := 0
	if activeLine >= 0 && bodyHeight > 0 && activeLine >= bodyHeight {
		offset = activeLine - bodyHeight/2
		if offset > len(body)-bodyHeight {
			offset = len(body) - bodyHeight
		}
		if offset < 0 {
			offset = 0
		}
	}
	end := offset + bodyHeight
	if end > len(body) {
		end = len(body)
	}
	lines = append(lines, body[offset:end]...)

	return padLinesToHeight(lines, height)
}

// activeIndex resolves the snapshot's active node to its index in
// declaration order, or -1 when nothing is active.
func (pane WorkflowPane) activeIndex(nodes []workflow.Node, active *workflow.Node) int {
	if active == nil {
		return -1
	}
	for index, node := range nodes {
		if node == *active {
			return index
		}
	}
	return -1
}

// renderConnector draws the incoming connector above a node. The
// connector animates when the snapshot's animated edge arrives at
// this node.
func (pane WorkflowPane) renderConnector(nodeIndex int, animated *workflow.Edge, now time.Time) string {
	if animated != nil && animated.To == nodeIndex {
		frame := edgePulseFrames[tui.PulseFrame(now, len(edgePulseFrames))]
		style := lipgloss.NewStyle().Foreground(pane.theme.EdgeAnimated)
		return "   " + style.Render(frame)
	}
	style := lipgloss.NewStyle().Foreground(pane.theme.EdgeColor)
	return "   " + style.Render("│")
}

func (pane WorkflowPane) renderNode(node workflow.Node, isActive bool, width int) string {
	label := node.Step
	if node.Agent != "" {
		label += " · " + node.Agent
	}
	if node.ParallelGroup != "" {
		label += fmt.Sprintf(" ⑂%s[%d]", node.ParallelGroup, node.BranchIndex)
	}

	if isActive {
		style := lipgloss.NewStyle().
			Foreground(pane.theme.NodeActiveForeground).
			Background(pane.theme.NodeActiveBackground).
			Bold(true)
		row := "  " + style.Render(" ● "+label+" ")
		return ansi.Truncate(row, width, "…")
	}

	nodeStyle := lipgloss.NewStyle().Foreground(pane.theme.NodeText)
	row := "   " + nodeStyle.Render("○ "+label)
	return ansi.Truncate(row, width, "…")
}

// renderWorkflowSummary is the one-line form for the status bar:
// the active step name, or empty when nothing is active.
func renderWorkflowSummary(theme tui.Theme, active *workflow.Node) string {
	if active == nil {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(theme.EdgeAnimated)
	return style.Render("▸ " + active.Step)
}
