// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body reading for the console
// API clients.
//
// [ReadResponse] bounds full-body reads at [MaxResponseSize] so a
// misbehaving server cannot exhaust memory. Persisted event lists are
// the largest legitimate responses and stay orders of magnitude below
// the limit. [ErrorSnippet] reads at most [MaxErrorSize] bytes of an
// error response for diagnostic messages.
//
// These are for request/response bodies only. The live event stream is
// read incrementally frame by frame and never passes through here.
package netutil

import "io"

// MaxResponseSize is the bound on response body reads: 256 MB. The
// limit is intentionally generous so that it never interferes with a
// legitimate response.
const MaxResponseSize int64 = 256 << 20

// MaxErrorSize is the bound on error body reads: 4 KB. Error bodies
// only feed error messages, so anything past a screenful is noise.
const MaxErrorSize int64 = 4096

// ReadResponse reads a response body up to MaxResponseSize bytes. Use
// instead of io.ReadAll when reading console API response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorSnippet reads at most MaxErrorSize bytes of an error response
// for use in error messages. Read errors are ignored, since a partial
// or empty body is still useful in a diagnostic.
func ErrorSnippet(body io.Reader) []byte {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorSize))
	return data
}
