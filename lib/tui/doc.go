// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides shared terminal user interface components for
// Parley's interactive console. Built on bubbletea (Elm architecture),
// these components handle common patterns like change animation,
// scrollbars, fuzzy matching, and overlay compositing.
//
// The console workspace imports this package for consistent look and
// behavior: same theme, same keyboard conventions, same overlay
// mechanics. The workspace owns its own data sources, layout, and
// domain-specific rendering.
package tui
