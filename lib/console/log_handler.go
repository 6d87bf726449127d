// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the model for display in
// the status bar. Only records at or above the handler's configured
// level are delivered.
type logRecordMsg struct {
	// Summary is the one-line message for the status bar.
	Summary string

	// Level drives styling (warn vs error).
	Level slog.Level
}

// logRecordFadeMsg clears the log message from the status bar after
// a delay, restoring the normal help line.
type logRecordFadeMsg struct{}

// logRecordFadeDelay is how long log messages stay visible before
// fading back to the keyboard help line.
const logRecordFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that routes records into the bubbletea
// program as messages, so library warnings (replay repairs, transport
// reconnects, descriptor problems) surface in the status bar instead
// of corrupting the alternate screen.
//
// Create the handler before the program, then call SetProgram once
// the tea.Program exists. Records arriving before SetProgram are
// dropped. Handlers derived via WithAttrs/WithGroup share the same
// program pointer, so one SetProgram call covers all of them.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
	groups  []string
}

// NewLogHandler creates a handler delivering records at or above the
// given level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:   level,
		program: &atomic.Pointer[tea.Program]{},
	}
}

// SetProgram sets the bubbletea program that receives log messages.
// Safe to call from any goroutine; propagates to all derived
// handlers.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

// Enabled reports whether the handler wants records at this level.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record as a one-line summary and sends it to
// the program. Dropped silently when no program is set yet.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}

	program.Send(logRecordMsg{
		Summary: summarizeRecord(record, handler.attrs),
		Level:   record.Level,
	})
	return nil
}

// summarizeRecord renders a record plus inherited attributes as the
// one-line status bar text: "message (key=value, key=value)".
func summarizeRecord(record slog.Record, inherited []slog.Attr) string {
	var attrParts []string
	for _, attr := range inherited {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
		return true
	})

	summary := record.Message
	if len(attrParts) > 0 {
		summary += " (" + strings.Join(attrParts, ", ") + ")"
	}
	return summary
}

// WithAttrs returns a derived handler with the attributes appended.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append(slices.Clone(handler.attrs), attrs...),
		groups:  slices.Clone(handler.groups),
	}
}

// WithGroup returns a derived handler with the group name appended.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   slices.Clone(handler.attrs),
		groups:  append(slices.Clone(handler.groups), name),
	}
}
