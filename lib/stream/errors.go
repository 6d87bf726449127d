// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "fmt"

// TransportError reports a failure of the stream transport itself:
// the request could not be sent, the server answered with a non-2xx
// status, or the connection dropped mid-stream. Transport errors are
// recoverable: the controller offers retry via a fresh send or via
// the ledger replay path.
type TransportError struct {
	// StatusCode is the HTTP status for error responses, zero when
	// the failure happened below the HTTP layer (dial, read, TLS).
	StatusCode int

	// Message is the server-provided error text, or a short internal
	// description when no response was received.
	Message string

	// Err is the underlying cause, nil for plain HTTP status errors.
	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stream: HTTP %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("stream: %s: %v", e.Message, e.Err)
	}
	return "stream: " + e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a single frame that could not be turned into
// a valid envelope: unparseable JSON, or a known kind missing a field
// the reducers key on. Protocol errors are per-frame and non-fatal.
// The offending frame is dropped with a warning and the stream
// continues. Unknown envelope kinds are not protocol errors at all;
// they decode fine and apply as no-ops.
type ProtocolError struct {
	// Frame is a bounded prefix of the offending frame payload, for
	// log context.
	Frame string

	// Err is the decode or validation failure.
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("stream: bad frame: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// frameSnippetLimit bounds how much of a bad frame is retained in a
// ProtocolError.
const frameSnippetLimit = 120

// frameSnippet truncates a frame payload for error context.
func frameSnippet(data string) string {
	if len(data) <= frameSnippetLimit {
		return data
	}
	return data[:frameSnippetLimit] + "…"
}
