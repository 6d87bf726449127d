// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package projection holds the pure reducers that fold envelopes into
// incrementally-built text state: the reasoning accumulator (named
// "thinking" slots) and the tool-scoped sub-stream accumulator (one
// projection per nested tool invocation).
//
// Both reducers operate on explicit state objects created by their
// New functions, with no package-level state, so the same logic
// serves the live path and the ledger replay path, and a test can
// run as many independent instances as it likes. Apply never
// fails: conditions that would be errors (a delta for a slot that was
// never added) are repaired by auto-creating the slot, and the repair
// is recorded as a recovered [ReducerError] for the caller to log.
//
// Neither reducer is safe for concurrent use. The conversation
// controller applies envelopes from a single goroutine, which is the
// designed usage; see
// [github.com/parley-ops/parley/lib/conversation.Controller].
package projection
