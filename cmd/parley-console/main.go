// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-console is a standalone launcher for the Parley console
// workspace. It is the same TUI as "parley console", built as its own
// binary so a capture viewer can be installed on machines that never
// run the full CLI.
//
// Two modes of operation:
//
// File mode (--file): renders a capture file from disk, with zero
// network, and keeps following the file while it grows. No session
// required.
//
// Live mode (default): joins a conversation against the tenant API,
// authenticating with the operator session from "parley login".
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/cmd/parley/commands"
	"github.com/parley-ops/parley/lib/version"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var toolError *cli.ToolError
		if errors.As(err, &toolError) {
			os.Exit(toolError.Category.ExitCode())
		}
		os.Exit(1)
	}
}

func run() error {
	var options commands.ConsoleOptions

	flagSet := pflag.NewFlagSet("parley-console", pflag.ContinueOnError)
	flagSet.StringVar(&options.File, "file", "", "render a capture file instead of a live conversation")
	flagSet.StringVar(&options.Agent, "agent", "", "agent addressed by sent messages")
	flagSet.StringVar(&options.WorkflowKey, "workflow", "", "workflow attached to sent messages")
	flagSet.StringVar(&options.Theme, "theme", "", "console theme: parley-dark or parley-light (default from config)")
	flagSet.BoolVar(&options.NoAltScreen, "no-alt-screen", false, "render inline instead of on the alternate screen")
	flagSet.StringVar(&options.LogOutput, "log-output", "", "write JSON log records to this file (in addition to the status line)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other Parley
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("parley-console")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) > 1 {
		return cli.Validation("unexpected argument: %s", args[1])
	}
	conversationID := ""
	if len(args) == 1 {
		conversationID = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return commands.RunConsole(ctx, conversationID, options)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Parley console, the interactive terminal workspace for operating
agent conversations.

With a conversation ID, joins a live session against the tenant API
using the operator session from "parley login". With --file, renders
a capture file offline and follows it as it grows.

Usage:
  parley-console [conversation-id] [flags]

Examples:
  # Join a live conversation
  parley-console support-123 --agent triage

  # Inspect a capture offline
  parley-console --file incident.plycap

  # Tail a capture being recorded, keeping a log for post-mortems
  parley-console --file run-42.plycap --log-output console.log.jsonl

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
