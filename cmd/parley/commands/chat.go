// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/stream"
)

// chatParams holds the parameters for the chat command.
type chatParams struct {
	Agent       string `flag:"agent"    desc:"pin the responding agent"`
	WorkflowKey string `flag:"workflow" desc:"run a named workflow instead of a plain chat turn"`
	Capture     string `flag:"capture"  desc:"write the exchange to a capture file at this path"`
}

// ChatCommand returns the "chat" command: send one message and stream
// the tenant's response to stdout. This is the scriptable counterpart
// of "parley console"; deltas print as they arrive, so piping through
// other tools sees the same pacing an operator would.
func ChatCommand() *cli.Command {
	var params chatParams

	return &cli.Command{
		Name:    "chat",
		Summary: "Send a message and stream the response",
		Description: `Send a message to a conversation and stream the agent's reply.

Message text comes from the arguments after the conversation ID, or
from stdin when piped. Only top-level message text prints to stdout;
reasoning summaries and tool sub-streams are omitted (use "parley
console" to watch those). Guardrail verdicts and the final status go
to stderr.

With --capture, every envelope the stream delivered is also written
to a capture file, replayable with "parley replay --file".`,
		Usage: "parley chat <conversation-id> [message...] [flags]",
		Examples: []cli.Example{
			{
				Description: "Ask a question",
				Command:     "parley chat support-123 \"why is checkout failing?\"",
			},
			{
				Description: "Pipe a prepared prompt",
				Command:     "cat prompt.txt | parley chat support-123",
			},
			{
				Description: "Record the exchange while chatting",
				Command:     "parley chat support-123 --capture triage.plycap \"run the intake workflow\"",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 1 {
				return cli.Validation("conversation ID is required\n\nUsage: parley chat <conversation-id> [message...]")
			}
			conversationID := args[0]

			text, err := chatMessageText(args[1:])
			if err != nil {
				return err
			}

			clients, err := cli.Connect()
			if err != nil {
				return err
			}

			events, err := clients.Stream.OpenMessageStream(ctx, conversationID, stream.MessageRequest{
				Text:        text,
				Agent:       params.Agent,
				WorkflowKey: params.WorkflowKey,
			})
			if err != nil {
				return cli.Transient("open stream: %w", err)
			}
			defer events.Close()

			received, failure := printEventStream(events)

			if params.Capture != "" {
				if err := writeChatCapture(params.Capture, conversationID, params.WorkflowKey, received, logger); err != nil {
					return err
				}
			}

			return failure
		},
	}
}

// chatMessageText assembles the outgoing message from the positional
// args, falling back to stdin when piped.
func chatMessageText(args []string) (string, error) {
	if text := strings.TrimSpace(strings.Join(args, " ")); text != "" {
		return text, nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return "", cli.Validation("message is required (pass it as arguments or pipe it on stdin)")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", cli.Internal("reading message from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", cli.Validation("stdin was empty; nothing to send")
	}
	return text, nil
}

// printEventStream drains the stream, printing top-level message text
// to stdout and guardrail/final outcomes to stderr. Returns every
// envelope received plus the error the command should exit with, nil
// for a completed response.
func printEventStream(events *stream.Stream) ([]*envelope.Envelope, error) {
	var received []*envelope.Envelope

	// Bytes of delta text already printed per item, so an
	// authoritative done text is only printed when no deltas
	// preceded it.
	printed := make(map[string]int)
	wroteOutput := false
	var failure error

	for events.Next() {
		env := events.Envelope()
		received = append(received, env)

		if env.Scoped() {
			continue
		}

		switch env.Kind {
		case envelope.KindMessageDelta:
			fmt.Print(env.Delta)
			printed[env.ItemID] += len(env.Delta)
			wroteOutput = true

		case envelope.KindOutputItemDone:
			if env.ItemType == envelope.ItemTypeMessage && printed[env.ItemID] == 0 && env.Text != "" {
				fmt.Print(env.Text)
				wroteOutput = true
			}

		case envelope.KindGuardrailResult:
			if env.Guardrail != nil {
				verdict := "passed"
				if !env.Guardrail.Passed {
					verdict = "failed"
				}
				line := fmt.Sprintf("guardrail %s: %s", env.Guardrail.Name, verdict)
				if env.Guardrail.Message != "" {
					line += " (" + env.Guardrail.Message + ")"
				}
				fmt.Fprintln(os.Stderr, line)
			}

		case envelope.KindFinal:
			if wroteOutput {
				fmt.Println()
				wroteOutput = false
			}
			if env.Final == nil {
				continue
			}
			if env.Final.Usage != nil {
				fmt.Fprintf(os.Stderr, "%s (%d tokens)\n", env.Final.Status, env.Final.Usage.TotalTokens)
			} else {
				fmt.Fprintln(os.Stderr, env.Final.Status)
			}
			if env.Final.Status != "completed" {
				if env.Final.Error != "" {
					fmt.Fprintf(os.Stderr, "error: %s\n", env.Final.Error)
				}
				failure = &cli.ExitError{Code: 1}
			}
		}
	}

	if wroteOutput {
		fmt.Println()
	}
	if err := events.Err(); err != nil {
		return received, cli.Transient("stream interrupted: %w", err)
	}
	return received, failure
}

// writeChatCapture persists the received envelopes using the
// configured compression.
func writeChatCapture(path, conversationID, workflowKey string, received []*envelope.Envelope, logger *slog.Logger) error {
	cfg, err := cli.LoadConfigOrDefault()
	if err != nil {
		return err
	}
	compression, err := ledger.ParseCompressionTag(cfg.Capture.Compression)
	if err != nil {
		return cli.Validation("capture.compression: %w", err)
	}

	header := ledger.Header{
		SchemaVersion:  envelope.SchemaVersion,
		ConversationID: conversationID,
		WorkflowKey:    workflowKey,
		CapturedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	options := ledger.WriterOptions{
		Compression: compression,
		BlockSize:   cfg.Capture.BlockSize,
	}
	if err := ledger.WriteCaptureFile(path, header, received, options); err != nil {
		return cli.Internal("write capture: %w", err)
	}
	logger.Info("capture written", "path", path, "events", len(received))
	return nil
}
