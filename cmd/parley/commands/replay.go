// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/workflow"
)

// replayParams holds the parameters for the replay command.
type replayParams struct {
	cli.JSONOutput
	RunID          string `flag:"run"          desc:"replay this run from the ledger"`
	ConversationID string `flag:"conversation" desc:"replay a whole conversation from the ledger"`
	File           string `flag:"file"         desc:"replay a capture file instead of the ledger"`
	Identity       string `flag:"identity"     desc:"age identity file for sealed captures"`
}

// ReplayCommand returns the "replay" command: rebuild a run's final
// state from its persisted events and print the transcript.
func ReplayCommand() *cli.Command {
	var params replayParams

	return &cli.Command{
		Name:    "replay",
		Summary: "Replay a persisted run and print the transcript",
		Description: `Replay persisted events through the streaming reducer and print
the reconstructed conversation: transcript, reasoning summaries, tool
activity, guardrail verdicts, and the final result.

The source is one of:

  --run <id>            the run's events from the ledger
  --conversation <id>   every run of a conversation, in ledger order
  --file <path>         a capture file (sealed captures need --identity)

The last line is the replay fingerprint, a stable hash of the
reconstructed state. Two replays of the same events always print the
same fingerprint; "parley verify" compares it against a fresh wire
pass.`,
		Usage: "parley replay [flags]",
		Examples: []cli.Example{
			{
				Description: "Replay a run from the ledger",
				Command:     "parley replay --run run-42",
			},
			{
				Description: "Replay a sealed capture",
				Command:     "parley replay --file incident.plycap.age --identity ~/.config/parley/identity.txt",
			},
			{
				Description: "Machine-readable replay of a whole conversation",
				Command:     "parley replay --conversation support-123 --json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			events, descriptor, err := resolveReplaySource(ctx, replaySource{
				RunID:          params.RunID,
				ConversationID: params.ConversationID,
				File:           params.File,
				Identity:       params.Identity,
			}, logger)
			if err != nil {
				return err
			}

			hash, snapshot, err := ledger.ReplayFingerprint(ctx, events, descriptor, logger)
			if err != nil {
				return cli.Internal("replay: %w", err)
			}

			if done, err := params.EmitJSON(buildReplayReport(snapshot, hash)); done {
				return err
			}
			printReplayTranscript(os.Stdout, snapshot, hash)
			return nil
		},
	}
}

// replaySource selects where replayed events come from. Exactly one
// of RunID, ConversationID, or File must be set.
type replaySource struct {
	RunID          string
	ConversationID string
	File           string
	Identity       string
}

// resolveReplaySource fetches the event log and, when one applies,
// the workflow descriptor for graph reconstruction. A missing
// descriptor degrades to nil rather than failing the replay.
func resolveReplaySource(ctx context.Context, source replaySource, logger *slog.Logger) ([]*envelope.Envelope, *workflow.Descriptor, error) {
	selected := 0
	for _, set := range []bool{source.RunID != "", source.ConversationID != "", source.File != ""} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return nil, nil, cli.Validation("exactly one of --run, --conversation, or --file is required")
	}

	if source.File != "" {
		header, events, err := readCapture(source.File, source.Identity)
		if err != nil {
			return nil, nil, err
		}
		return events, localDescriptor(header.WorkflowKey, logger), nil
	}

	clients, err := cli.Connect()
	if err != nil {
		return nil, nil, err
	}

	if source.ConversationID != "" {
		events, err := clients.Ledger.ConversationEvents(ctx, source.ConversationID)
		if err != nil {
			return nil, nil, ledgerFetchError(err)
		}
		// A conversation can span several workflows; no single graph
		// applies.
		return events, nil, nil
	}

	events, err := clients.Ledger.RunEvents(ctx, source.RunID)
	if err != nil {
		return nil, nil, ledgerFetchError(err)
	}
	return events, runDescriptor(ctx, clients.Ledger, source.RunID, logger), nil
}

// readCapture loads a capture file, transparently unsealing
// age-encrypted files when an identity file is provided.
func readCapture(path, identityPath string) (ledger.Header, []*envelope.Envelope, error) {
	sealed, err := isSealedCapture(path)
	if err != nil {
		return ledger.Header{}, nil, cli.NotFound("capture %s: %v", path, err)
	}

	if sealed {
		if identityPath == "" {
			return ledger.Header{}, nil, cli.Validation("capture %s is sealed", path).
				WithHint("Pass --identity <file> with the age identity it was sealed to.")
		}
		tempDir, err := os.MkdirTemp("", "parley-unseal-*")
		if err != nil {
			return ledger.Header{}, nil, cli.Internal("creating unseal scratch dir: %w", err)
		}
		defer os.RemoveAll(tempDir)

		unsealed := filepath.Join(tempDir, "capture.plycap")
		if err := ledger.UnsealFile(path, unsealed, identityPath); err != nil {
			return ledger.Header{}, nil, cli.Internal("unseal capture: %w", err)
		}
		path = unsealed
	}

	header, events, err := ledger.ReadCaptureFile(path)
	if err != nil {
		return ledger.Header{}, nil, cli.Internal("read capture: %w", err)
	}
	return header, events, nil
}

// ageMagic is the first line of a binary age ciphertext stream.
const ageMagic = "age-encryption.org/v1"

// isSealedCapture sniffs whether the file is an age ciphertext rather
// than a plain capture.
func isSealedCapture(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	prefix := make([]byte, len(ageMagic))
	n, _ := file.Read(prefix)
	return strings.HasPrefix(string(prefix[:n]), ageMagic), nil
}

// localDescriptor loads <key>.jsonc from the configured workflows
// directory. Returns nil (no graph) when the key is empty, no
// directory is configured, or the file is missing or malformed.
func localDescriptor(workflowKey string, logger *slog.Logger) *workflow.Descriptor {
	if workflowKey == "" {
		return nil
	}
	cfg, err := cli.LoadConfigOrDefault()
	if err != nil || cfg.Workflows.Directory == "" {
		return nil
	}
	descriptor, err := workflow.ReadFile(filepath.Join(cfg.Workflows.Directory, workflowKey+".jsonc"))
	if err != nil {
		logger.Warn("workflow descriptor unavailable", "key", workflowKey, "error", err)
		return nil
	}
	return descriptor
}

// runDescriptor finds the run's workflow key in the run index and
// loads its descriptor, preferring a local file over the API copy.
// Any failure degrades to nil: the replay still works, only node
// highlighting is lost.
func runDescriptor(ctx context.Context, client *ledger.Client, runID string, logger *slog.Logger) *workflow.Descriptor {
	runs, err := client.Runs(ctx)
	if err != nil {
		logger.Warn("run index unavailable", "error", err)
		return nil
	}
	workflowKey := ""
	for _, run := range runs {
		if run.RunID == runID {
			workflowKey = run.WorkflowKey
			break
		}
	}
	if workflowKey == "" {
		return nil
	}
	if descriptor := localDescriptor(workflowKey, logger); descriptor != nil {
		return descriptor
	}
	descriptor, err := client.Workflow(ctx, workflowKey)
	if err != nil {
		logger.Warn("workflow descriptor unavailable", "key", workflowKey, "error", err)
		return nil
	}
	return descriptor
}

// ledgerFetchError maps a ledger read failure onto the CLI error
// taxonomy using the HTTP status when one is present.
func ledgerFetchError(err error) error {
	var replayErr *ledger.ReplayError
	if errors.As(err, &replayErr) {
		switch {
		case replayErr.StatusCode == 404:
			return cli.NotFound("%w", err).WithHint("Run 'parley runs' to list available runs.")
		case replayErr.StatusCode == 401 || replayErr.StatusCode == 403:
			return cli.Forbidden("%w", err).WithHint("Run 'parley login' to refresh the session.")
		case replayErr.StatusCode >= 500:
			return cli.Transient("%w", err)
		}
	}
	return cli.Transient("%w", err)
}

// replayReport is the JSON shape of a replayed conversation.
type replayReport struct {
	ConversationID string            `json:"conversation_id"`
	RunStatus      string            `json:"run_status,omitempty"`
	Entries        []replayEntry     `json:"entries"`
	Reasoning      []replayReasoning `json:"reasoning,omitempty"`
	Tools          []replayTool      `json:"tools,omitempty"`
	Guardrails     []replayGuardrail `json:"guardrails,omitempty"`
	Result         *replayResult     `json:"result,omitempty"`
	ActiveNode     string            `json:"active_node,omitempty"`
	EventCount     int               `json:"event_count"`
	Fingerprint    string            `json:"fingerprint"`
}

type replayEntry struct {
	Role   string `json:"role"`
	Agent  string `json:"agent,omitempty"`
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

type replayReasoning struct {
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

type replayTool struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name,omitempty"`
	Agent      string `json:"agent,omitempty"`
	Text       string `json:"text"`
	Streaming  bool   `json:"streaming"`
}

type replayGuardrail struct {
	Name    string `json:"name"`
	Stage   string `json:"stage,omitempty"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

type replayResult struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	InputTokens  int64  `json:"input_tokens,omitempty"`
	OutputTokens int64  `json:"output_tokens,omitempty"`
	TotalTokens  int64  `json:"total_tokens,omitempty"`
}

// buildReplayReport flattens a snapshot into the report shape.
func buildReplayReport(snapshot conversation.Snapshot, hash ledger.Hash) replayReport {
	report := replayReport{
		ConversationID: snapshot.ConversationID,
		RunStatus:      snapshot.RunStatus,
		Entries:        make([]replayEntry, 0, len(snapshot.Entries)),
		EventCount:     snapshot.EventCount,
		Fingerprint:    ledger.FormatHash(hash),
	}
	for _, entry := range snapshot.Entries {
		report.Entries = append(report.Entries, replayEntry{
			Role:   entry.Role,
			Agent:  entry.Agent,
			Text:   entry.Text,
			Status: entry.Status,
		})
	}
	for _, slot := range snapshot.Reasoning {
		report.Reasoning = append(report.Reasoning, replayReasoning{
			Text:   slot.Text,
			Status: slot.Status,
		})
	}
	for _, tool := range snapshot.Tools {
		report.Tools = append(report.Tools, replayTool{
			ToolCallID: tool.ToolCallID,
			ToolName:   tool.ToolName,
			Agent:      tool.Agent,
			Text:       tool.Text,
			Streaming:  tool.IsStreaming,
		})
	}
	for _, guardrail := range snapshot.Guardrails {
		report.Guardrails = append(report.Guardrails, replayGuardrail{
			Name:    guardrail.Name,
			Stage:   guardrail.Stage,
			Passed:  guardrail.Passed,
			Message: guardrail.Message,
		})
	}
	if snapshot.Result != nil {
		result := &replayResult{
			Status: snapshot.Result.Status,
			Error:  snapshot.Result.Error,
		}
		if snapshot.Result.Usage != nil {
			result.InputTokens = snapshot.Result.Usage.InputTokens
			result.OutputTokens = snapshot.Result.Usage.OutputTokens
			result.TotalTokens = snapshot.Result.Usage.TotalTokens
		}
		report.Result = result
	}
	if snapshot.ActiveNode != nil {
		report.ActiveNode = snapshot.ActiveNode.Stage + "/" + snapshot.ActiveNode.Step
	}
	return report
}

// printReplayTranscript renders the reconstructed conversation as
// text.
func printReplayTranscript(w *os.File, snapshot conversation.Snapshot, hash ledger.Hash) {
	if snapshot.ConversationID != "" {
		fmt.Fprintf(w, "conversation: %s\n", snapshot.ConversationID)
	}
	if snapshot.RunStatus != "" {
		fmt.Fprintf(w, "run status: %s\n", snapshot.RunStatus)
	}
	fmt.Fprintln(w)

	for _, entry := range snapshot.Entries {
		speaker := entry.Role
		if entry.Agent != "" {
			speaker = entry.Role + "/" + entry.Agent
		}
		fmt.Fprintf(w, "[%s] %s\n", speaker, entry.Text)
	}

	if len(snapshot.Reasoning) > 0 {
		fmt.Fprintf(w, "\nreasoning (%d summaries):\n", len(snapshot.Reasoning))
		for _, slot := range snapshot.Reasoning {
			fmt.Fprintf(w, "  %s\n", firstLine(slot.Text))
		}
	}

	if len(snapshot.Tools) > 0 {
		fmt.Fprintln(w, "\ntools:")
		for _, tool := range snapshot.Tools {
			name := tool.ToolName
			if name == "" {
				name = tool.ToolCallID
			}
			state := "done"
			if tool.IsStreaming {
				state = "streaming"
			}
			fmt.Fprintf(w, "  %s: %s, %d bytes\n", name, state, len(tool.Text))
		}
	}

	if len(snapshot.Guardrails) > 0 {
		fmt.Fprintln(w, "\nguardrails:")
		for _, guardrail := range snapshot.Guardrails {
			verdict := "passed"
			if !guardrail.Passed {
				verdict = "failed"
			}
			line := fmt.Sprintf("  %s: %s", guardrail.Name, verdict)
			if guardrail.Message != "" {
				line += " (" + guardrail.Message + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	if snapshot.Result != nil {
		fmt.Fprintf(w, "\nresult: %s", snapshot.Result.Status)
		if snapshot.Result.Usage != nil {
			fmt.Fprintf(w, " (%d tokens)", snapshot.Result.Usage.TotalTokens)
		}
		fmt.Fprintln(w)
		if snapshot.Result.Error != "" {
			fmt.Fprintf(w, "error: %s\n", snapshot.Result.Error)
		}
	}

	fmt.Fprintf(w, "events: %d\n", snapshot.EventCount)
	fmt.Fprintf(w, "fingerprint: %s\n", ledger.FormatHash(hash))
}

// firstLine truncates multi-line reasoning text for the summary view.
func firstLine(text string) string {
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		return text[:index] + " ..."
	}
	return text
}
