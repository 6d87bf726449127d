// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/testutil"
)

func TestRoot_TreeIsWellFormed(t *testing.T) {
	t.Parallel()

	var walk func(t *testing.T, path string, command *cli.Command)
	walk = func(t *testing.T, path string, command *cli.Command) {
		if command.Name == "" {
			t.Errorf("%s: command with empty name", path)
			return
		}
		full := path + " " + command.Name
		if path == "" {
			full = command.Name
		}

		if command.Summary == "" {
			t.Errorf("%s: missing summary", full)
		}
		if command.Run == nil && len(command.Subcommands) == 0 {
			t.Errorf("%s: neither Run nor subcommands", full)
		}

		seen := make(map[string]bool)
		for _, sub := range command.Subcommands {
			if seen[sub.Name] {
				t.Errorf("%s: duplicate subcommand %q", full, sub.Name)
			}
			seen[sub.Name] = true
			walk(t, full, sub)
		}
	}

	walk(t, "", Root())
}

func TestRoot_HasEveryOperatorCommand(t *testing.T) {
	t.Parallel()

	root := Root()
	names := make(map[string]bool)
	for _, sub := range root.Subcommands {
		names[sub.Name] = true
	}

	for _, want := range []string{
		"login", "chat", "runs", "replay", "capture", "verify", "console", "config", "version",
	} {
		if !names[want] {
			t.Errorf("root is missing the %q command", want)
		}
	}
}

func TestRoot_VersionCommand(t *testing.T) {
	output := testutil.CaptureStdout(t, func() {
		if err := Root().Execute(context.Background(), []string{"version"}); err != nil {
			t.Errorf("version command failed: %v", err)
		}
	})
	if !strings.HasPrefix(output, "parley ") {
		t.Errorf("version output = %q, want parley prefix", output)
	}
}

func TestRoot_UnknownCommandSuggests(t *testing.T) {
	err := Root().Execute(context.Background(), []string{"replya"})
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if !strings.Contains(err.Error(), "replay") {
		t.Errorf("error %q should suggest the replay command", err)
	}
}
