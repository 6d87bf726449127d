// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI command
// operations. When stderr is a terminal, uses slog.TextHandler for
// human-readable output. When stderr is piped or redirected (CI,
// scripts, cron), uses slog.JSONHandler for machine-parseable output.
//
// [Command.Execute] scopes the logger with the full command path
// before handing it to Run:
//
//	logger.Info("capture written", "path", outputPath, "events", count)
func NewCommandLogger() *slog.Logger {
	return newStderrLogger(slog.LevelInfo)
}

// NewClientLogger creates a logger for API client internals at the
// given level. Commands hand this to the stream and ledger clients so
// request-level chatter stays below the command's own output unless
// something goes wrong.
func NewClientLogger(level slog.Level) *slog.Logger {
	return newStderrLogger(level)
}

func newStderrLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
