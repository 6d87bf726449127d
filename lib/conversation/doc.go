// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package conversation orchestrates one tenant conversation: it owns
// the canonical transcript, drives a live stream through the frame
// reader, or replays a persisted event log, and exposes a consistent
// read-only view for rendering.
//
// The controller is the only component with mutable top-level state.
// Every envelope, live or replayed, flows through one apply path into
// the transcript and the three accumulators (reasoning, tool streams,
// workflow highlighting), in arrival order, from a single goroutine.
// Renderers read through [Controller.Snapshot], which copies state
// under the controller's lock.
//
// Replay determinism: applying a persisted event log through
// [Controller.LoadHistoricalRun] produces the same final transcript
// and projections as observing the identical envelopes live. This is
// what makes reconnect-after-drop and historical run viewing safe.
package conversation
