// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow maps tenant event envelopes onto a static workflow
// graph to drive execution highlighting.
//
// A workflow descriptor (stages of steps, with optional parallel
// groups) is authored as a JSONC file or fetched from the tenant API.
// The descriptor is parsed once per session and never mutated by
// streaming. NodeStore folds workflow-tagged envelopes into derived
// highlight state: which node is currently active, and which of its
// incoming edges should animate. Envelopes whose workflow coordinates
// match no node leave the previous highlight in place, so a burst of
// unattributable events never flickers the display back to an empty
// graph.
//
// NodeStore is fed the full envelope list on every update and keeps a
// running applied count so each envelope is processed once. A shorter
// list than what was already applied signals that a new run replaced
// the old one; the store resets and reprocesses from the start.
package workflow
