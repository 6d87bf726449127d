// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Parley packages.
//
// [RequireClosed] encapsulates the timeout safety valve pattern
// (select with a time.After fallback) around shutdown and release
// signals, so that individual tests do not need direct time.After
// calls when waiting for a goroutine to finish.
//
// [CaptureStdout] redirects os.Stdout for the duration of a callback
// and returns what was written. Command tests use it to assert on
// user-facing output. The swap is process-wide, so tests that use it
// must not run in parallel.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Parley-internal dependencies.
package testutil
