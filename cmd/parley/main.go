// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley is the operator CLI for Parley tenants: chat with agents,
// list and replay runs, capture event logs, verify replay
// determinism, and open the interactive console.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/cmd/parley/commands"
	"github.com/parley-ops/parley/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own outcome (like a verify
		// mismatch) return an ExitError with the desired code. Don't
		// print a redundant "error:" line for those.
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
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("parley")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return commands.Root().Execute(ctx, os.Args[1:])
}
