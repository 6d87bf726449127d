// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the parley CLI.
//
// The central type is [Command], a named subcommand with optional nested
// [Command.Subcommands], a params struct that declares its flags via
// struct tags, and a Run function. Commands are assembled into a tree in
// cmd/parley/commands and dispatched via [Command.Execute], which handles
// flag parsing, subcommand routing, and structured help output with
// examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// Errors returned from Run are categorized via [ToolError] so that
// scripts driving the CLI can branch on the exit code rather than
// parsing error text. [ExitError] signals a non-zero exit where the
// command has already printed its own output, such as a failed
// fingerprint comparison.
//
// The package also owns the operator session: [Session], [LoadSession],
// and [SaveSession]. The session file lives at
// ~/.config/parley/session.json, is written by "parley login", and is
// loaded transparently by every command that talks to the console API.
package cli
