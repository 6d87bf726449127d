// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"github.com/parley-ops/parley/lib/config"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/stream"
)

// Clients bundles the authenticated console API clients built from
// the operator session.
type Clients struct {
	// Session is the loaded operator session.
	Session *Session

	// Stream opens live event streams (sending messages).
	Stream *stream.Client

	// Ledger reads persisted history (runs, events, workflows).
	Ledger *ledger.Client
}

// Connect loads the operator session from "parley login" and builds
// authenticated stream and ledger clients against the session's base
// URL. Both clients share one request ID generator, so a single CLI
// invocation is traceable end to end in the console API's logs.
//
// Streaming calls are bounded by the caller's context; ledger calls
// carry the client's own 30-second request timeout.
func Connect() (*Clients, error) {
	session, err := LoadSession()
	if err != nil {
		return nil, Forbidden("%w", err)
	}

	clientLogger := NewClientLogger(slog.LevelWarn)

	streamClient, err := stream.NewClient(stream.ClientConfig{
		BaseURL:   session.BaseURL,
		Token:     session.Token,
		RequestID: GenerateRequestID,
		Logger:    clientLogger,
	})
	if err != nil {
		return nil, Internal("create stream client: %w", err)
	}

	ledgerClient, err := ledger.NewClient(ledger.ClientConfig{
		BaseURL:   session.BaseURL,
		Token:     session.Token,
		RequestID: GenerateRequestID,
		Logger:    clientLogger,
	})
	if err != nil {
		return nil, Internal("create ledger client: %w", err)
	}

	return &Clients{
		Session: session,
		Stream:  streamClient,
		Ledger:  ledgerClient,
	}, nil
}

// LoadConfigOrDefault loads the config file named by PARLEY_CONFIG,
// or returns the built-in defaults when the variable is unset. The
// session-only commands work without any config file; commands that
// touch themes, capture defaults, or workflow directories call this
// so a configured environment wins and a bare one still works.
func LoadConfigOrDefault() (*config.Config, error) {
	if os.Getenv("PARLEY_CONFIG") == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, Internal("load config: %w", err)
	}
	return cfg, nil
}
