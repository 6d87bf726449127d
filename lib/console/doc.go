// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package console implements the Parley operator workspace: a
// bubbletea TUI that renders conversation snapshots as a transcript
// pane with markdown output, a reasoning drawer, tool sub-stream
// accordions, and a live workflow graph.
//
// The model is backed by a [Source], which abstracts where snapshots
// come from. [LiveSource] drives a conversation against the tenant
// API (composer enabled, run picker enabled); [CaptureSource] replays
// a capture file from disk and re-replays it whenever the file
// changes. The rendering code is identical for both; capability
// interfaces ([Sender], [RunLister]) gate the interactive surfaces.
package console
