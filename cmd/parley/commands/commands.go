// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete parley CLI command tree. The
// parley binary dispatches os.Args through [Root]; each command file
// in this package owns one top-level subcommand.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/version"
)

// Root builds and returns the complete parley CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "parley",
		Description: `Parley: console for operating AI-agent tenants.

Chat with agents, watch reasoning and tool activity stream in, replay
persisted runs deterministically, and capture runs to portable files
for sharing and audit.`,
		Subcommands: []*cli.Command{
			cli.LoginCommand(),
			ChatCommand(),
			RunsCommand(),
			ReplayCommand(),
			CaptureCommand(),
			VerifyCommand(),
			ConsoleCommand(),
			ConfigCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("parley %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Authenticate as an operator (saves session locally)",
				Command:     "parley login dana",
			},
			{
				Description: "Send a message and stream the response",
				Command:     "parley chat support-123 \"why is checkout failing?\"",
			},
			{
				Description: "Open the interactive console on a conversation",
				Command:     "parley console support-123",
			},
			{
				Description: "List the tenant's runs",
				Command:     "parley runs",
			},
			{
				Description: "Replay a persisted run and print the transcript",
				Command:     "parley replay --run run-42",
			},
			{
				Description: "Export a run to a capture file, sealed for sharing",
				Command:     "parley capture --run run-42 --output incident.plycap --seal-to age1xyz...",
			},
			{
				Description: "Check a capture replays to the same state it streamed",
				Command:     "parley verify --file incident.plycap",
			},
		},
	}
}
