// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/parley-ops/parley/lib/ledger"
)

// loginParams holds the parameters for the login command.
type loginParams struct {
	BaseURL   string `flag:"base-url"   desc:"console API base URL" default:"http://localhost:8787"`
	TokenFile string `flag:"token-file" desc:"path to file containing the API token, or - to prompt interactively (default: prompt)"`
}

// LoginCommand returns the "login" command for authenticating an
// operator. This verifies the token against the console API and saves
// the resulting session to the well-known path
// (~/.config/parley/session.json). Subsequent CLI commands (chat,
// runs, replay, capture, verify, console) load this session
// transparently, like SSH keys.
func LoginCommand() *Command {
	var params loginParams

	return &Command{
		Name:    "login",
		Summary: "Authenticate as an operator",
		Description: `Log in to a Parley deployment and save the session locally.

After login, commands like "parley chat" and "parley runs" use the saved
session transparently, no flags needed. Authenticate once, then access
is seamless.

The session file is stored at ~/.config/parley/session.json (or
$PARLEY_SESSION_FILE if set, or $XDG_CONFIG_HOME/parley/session.json).
The file is written with mode 0600 (owner-only read/write) since it
contains the API token.

The token can be provided via --token-file (a path to a file containing
the token) or prompted interactively if --token-file is "-" or omitted.`,
		Usage: "parley login <handle> [flags]",
		Examples: []Example{
			{
				Description: "Log in interactively (prompts for token)",
				Command:     "parley login dana",
			},
			{
				Description: "Log in against a specific deployment",
				Command:     "parley login dana --base-url https://api.parley.dev",
			},
			{
				Description: "Log in with token from file",
				Command:     "parley login dana --token-file /path/to/token",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) < 1 {
				return Validation("handle is required\n\nUsage: parley login <handle> [flags]")
			}
			handle := args[0]
			if len(args) > 1 {
				return Validation("unexpected argument: %s", args[1])
			}

			token, err := readLoginToken(params.TokenFile)
			if err != nil {
				return err
			}

			verifyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			// Verify the token works before saving: list the run
			// index, the cheapest authenticated read the API has.
			client, err := ledger.NewClient(ledger.ClientConfig{
				BaseURL:   params.BaseURL,
				Token:     token,
				RequestID: GenerateRequestID,
				Logger:    NewClientLogger(slog.LevelWarn),
			})
			if err != nil {
				return Internal("create ledger client: %w", err)
			}
			if _, err := client.Runs(verifyCtx); err != nil {
				return Forbidden("token verification failed: %w", err)
			}

			session := &Session{
				Handle:  handle,
				Token:   token,
				BaseURL: params.BaseURL,
			}
			if err := SaveSession(session); err != nil {
				return Internal("save session: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Logged in as %s\n", handle)
			fmt.Fprintf(os.Stderr, "Session saved to %s\n", SessionFilePath())
			return nil
		},
	}
}

// readLoginToken reads the API token for the login command. If
// tokenFile is empty or "-", prompts interactively on the terminal
// with echo disabled. Otherwise, reads from the file path, stripping
// trailing newlines (common with echo/printf pipelines).
func readLoginToken(tokenFile string) (string, error) {
	if tokenFile != "" && tokenFile != "-" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return "", Internal("reading %s: %w", tokenFile, err)
		}
		token := strings.TrimRight(string(data), "\r\n")
		if token == "" {
			return "", Validation("file %s is empty (after stripping trailing newlines)", tokenFile)
		}
		return token, nil
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return "", Validation("no terminal available for interactive token prompt (use --token-file)")
	}

	fmt.Fprint(os.Stderr, "Token: ")
	tokenBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", Internal("reading token: %w", err)
	}
	if len(tokenBytes) == 0 {
		return "", Validation("empty token")
	}
	return string(tokenBytes), nil
}
