// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/console"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/tui"
	"github.com/parley-ops/parley/lib/workflow"
)

// consoleParams holds the parameters for the console command.
type consoleParams struct {
	File        string `flag:"file"          desc:"render a capture file instead of a live conversation"`
	Agent       string `flag:"agent"         desc:"agent addressed by sent messages"`
	WorkflowKey string `flag:"workflow"      desc:"workflow attached to sent messages"`
	Theme       string `flag:"theme"         desc:"console theme: parley-dark or parley-light (default from config)"`
	NoAltScreen bool   `flag:"no-alt-screen" desc:"render inline instead of on the alternate screen"`
	LogOutput   string `flag:"log-output"    desc:"write JSON log records to this file (in addition to the status line)"`
}

// ConsoleCommand returns the "console" command: the full-screen
// terminal workspace.
func ConsoleCommand() *cli.Command {
	var params consoleParams

	return &cli.Command{
		Name:    "console",
		Summary: "Open the interactive console workspace",
		Description: `Open the terminal workspace: transcript with rendered markdown,
reasoning drawer, tool sub-streams, workflow graph, run picker, and a
composer for sending messages.

With a conversation ID the console drives a live session against the
tenant API. With --file it renders a capture from disk, with zero
network, and keeps following the file as it grows.`,
		Usage: "parley console <conversation-id> [flags] | parley console --file <path> [flags]",
		Examples: []cli.Example{
			{
				Description: "Join a live conversation",
				Command:     "parley console support-123 --agent triage",
			},
			{
				Description: "Inspect a capture offline",
				Command:     "parley console --file incident.plycap",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return cli.Validation("unexpected argument: %s", args[1])
			}
			conversationID := ""
			if len(args) == 1 {
				conversationID = args[0]
			}
			return RunConsole(ctx, conversationID, ConsoleOptions{
				File:        params.File,
				Agent:       params.Agent,
				WorkflowKey: params.WorkflowKey,
				Theme:       params.Theme,
				NoAltScreen: params.NoAltScreen,
				LogOutput:   params.LogOutput,
			})
		},
	}
}

// ConsoleOptions selects the source and presentation for a console
// session. Shared by the "parley console" subcommand and the
// standalone parley-console binary.
type ConsoleOptions struct {
	// File, when set, renders a capture file; otherwise a conversation
	// ID selects a live session.
	File string

	// Agent and WorkflowKey are defaults attached to sent messages in
	// live mode.
	Agent       string
	WorkflowKey string

	// Theme overrides the configured console theme.
	Theme string

	// NoAltScreen renders inline instead of on the alternate screen.
	NoAltScreen bool

	// LogOutput, when set, appends JSON log records to this file in
	// addition to the in-console status line.
	LogOutput string
}

// RunConsole assembles a source per the options and runs the bubbletea
// program over it until quit or context cancellation.
func RunConsole(ctx context.Context, conversationID string, options ConsoleOptions) error {
	cfg, err := cli.LoadConfigOrDefault()
	if err != nil {
		return err
	}

	themeName := options.Theme
	if themeName == "" {
		themeName = cfg.Console.Theme
	}
	altScreen := cfg.Console.AltScreen && !options.NoAltScreen

	// Stderr belongs to the alternate screen while the program runs,
	// so console logs route through the program into the status line.
	// An optional file handler keeps a JSONL copy for post-mortems.
	handler := console.NewLogHandler(slog.LevelInfo)
	consoleLogger := slog.New(handler)
	if options.LogOutput != "" {
		fileHandler, closeFile, err := openFileLogHandler(options.LogOutput)
		if err != nil {
			return cli.Validation("cannot open log file %s: %w", options.LogOutput, err)
		}
		defer closeFile()
		consoleLogger = slog.New(fanoutHandler{handler, fileHandler})
	}

	var source console.Source
	var cleanup func()

	switch {
	case options.File != "":
		if conversationID != "" {
			return cli.Validation("--file and a conversation ID are mutually exclusive")
		}
		captureSource, err := console.NewCaptureSource(console.CaptureSourceConfig{
			Path:         options.File,
			WorkflowsDir: cfg.Workflows.Directory,
			Logger:       consoleLogger,
		})
		if err != nil {
			return cli.NotFound("open capture: %v", err)
		}
		source = captureSource
		cleanup = captureSource.Close

	case conversationID != "":
		clients, err := cli.Connect()
		if err != nil {
			return err
		}
		liveSource, err := console.NewLiveSource(console.LiveSourceConfig{
			Stream:         clients.Stream,
			Ledger:         clients.Ledger,
			ConversationID: conversationID,
			Agent:          options.Agent,
			WorkflowKey:    options.WorkflowKey,
			Workflow:       consoleNodeStore(ctx, clients.Ledger, options.WorkflowKey, consoleLogger),
			Logger:         consoleLogger,
		})
		if err != nil {
			return cli.Internal("%w", err)
		}
		source = liveSource
		cleanup = liveSource.CancelStream

	default:
		return cli.Validation("a conversation ID or --file is required").
			WithHint("Run 'parley runs' to find a conversation, or pass --file <capture>.")
	}
	defer cleanup()

	model := console.NewModel(console.ModelConfig{
		Source:      source,
		Theme:       tui.ThemeByName(themeName),
		SyntaxTheme: cfg.Console.SyntaxTheme,
	})

	programOptions := []tea.ProgramOption{tea.WithContext(ctx)}
	if altScreen {
		programOptions = append(programOptions, tea.WithAltScreen())
	}
	program := tea.NewProgram(model, programOptions...)
	handler.SetProgram(program)

	if _, err := program.Run(); err != nil {
		// SIGINT/SIGTERM cancels the context and kills the program;
		// that is an orderly exit, not a failure.
		if ctx.Err() != nil {
			return nil
		}
		return cli.Internal("console: %w", err)
	}
	return nil
}

// consoleNodeStore builds the workflow graph for the session, local
// descriptor directory first, then the API copy. Returns nil (no
// graph pane) when the key is empty or nothing resolves.
func consoleNodeStore(ctx context.Context, client *ledger.Client, workflowKey string, logger *slog.Logger) *workflow.NodeStore {
	if workflowKey == "" {
		return nil
	}
	descriptor := localDescriptor(workflowKey, logger)
	if descriptor == nil {
		remote, err := client.Workflow(ctx, workflowKey)
		if err != nil {
			logger.Warn("workflow descriptor unavailable", "key", workflowKey, "error", err)
			return nil
		}
		descriptor = remote
	}
	store, err := workflow.NewNodeStore(descriptor)
	if err != nil {
		logger.Warn("workflow graph rejected", "key", workflowKey, "error", err)
		return nil
	}
	return store
}

// openFileLogHandler creates a JSON handler appending to the given
// path, plus a cleanup that closes the file.
func openFileLogHandler(path string) (slog.Handler, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler sends each record to every underlying handler. A
// record is enabled if any sub-handler wants it.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
