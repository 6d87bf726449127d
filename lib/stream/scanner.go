// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bufio"
	"io"
	"strings"
)

// Frame is one wire-level delimited unit of the event feed: the
// payload assembled from the "data:" lines of one frame. Multiple
// data lines are joined with newlines.
type Frame struct {
	// Data is the frame payload, one JSON-encoded envelope.
	Data string
}

// Scanner splits a byte stream into frames.
//
// Frames follow the Server-Sent Events shape: lines starting with
// "data:" carry payload, a blank line terminates the frame, comment
// lines (leading ":") and unknown fields are ignored. The scanner
// operates on raw bytes until a complete frame is assembled, so
// chunk boundaries never affect the decoded payload, even when a
// boundary splits a multi-byte UTF-8 sequence.
//
// Usage:
//
//	scanner := NewScanner(reader)
//	for scanner.Next() {
//	    frame := scanner.Frame()
//	    // process frame.Data
//	}
//	if err := scanner.Err(); err != nil {
//	    // transport read failure
//	}
type Scanner struct {
	reader  *bufio.Reader
	current Frame
	err     error

	// discardedPartial is set when the source ended with buffered
	// frame data that never saw its terminating blank line. The
	// partial is dropped, not emitted: an unterminated frame is by
	// definition incomplete and decoding it would produce a
	// truncated envelope.
	discardedPartial bool
}

// NewScanner creates a scanner reading frames from reader.
func NewScanner(reader io.Reader) *Scanner {
	return &Scanner{
		reader: bufio.NewReaderSize(reader, 64*1024),
	}
}

// Next advances to the next frame. Returns false when the stream ends
// or a read error occurs; call [Scanner.Err] afterwards to distinguish
// clean EOF from failure.
func (scanner *Scanner) Next() bool {
	if scanner.err != nil {
		return false
	}
	scanner.current = Frame{}

	var dataLines []string
	hasData := false

	for {
		line, err := scanner.reader.ReadString('\n')

		if err != nil && line == "" {
			if err == io.EOF {
				// End of source before the frame terminator: the
				// partial frame (if any) is discarded.
				if hasData {
					scanner.discardedPartial = true
				}
				scanner.err = io.EOF
				return false
			}
			scanner.err = err
			return false
		}

		// A final line without a trailing newline is itself an
		// unterminated partial: the frame terminator never arrived.
		if err == io.EOF {
			if hasData || strings.TrimRight(line, "\r\n") != "" {
				scanner.discardedPartial = true
			}
			scanner.err = io.EOF
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		// Blank line = frame boundary.
		if line == "" {
			if hasData {
				scanner.current = Frame{Data: strings.Join(dataLines, "\n")}
				return true
			}
			// Nothing accumulated: stray blank line, keep going.
			continue
		}

		// Comment lines start with ":".
		if strings.HasPrefix(line, ":") {
			continue
		}

		// Parse "field: value" ("field:value" is also legal; exactly
		// one leading space in the value is stripped).
		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field = line
			value = ""
		} else {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		default:
			// "event", "id", "retry", and anything newer: the feed
			// carries everything inside the payload, so other fields
			// are ignored.
		}
	}
}

// Frame returns the most recently scanned frame. Only valid after
// [Scanner.Next] returns true.
func (scanner *Scanner) Frame() Frame {
	return scanner.current
}

// Err returns the first read error encountered. Returns nil when
// scanning ended at a clean EOF.
func (scanner *Scanner) Err() error {
	if scanner.err == io.EOF {
		return nil
	}
	return scanner.err
}

// DiscardedPartial reports whether the source ended with an
// unterminated frame that was dropped. Callers log this; it is a
// producer anomaly, not a consumer error.
func (scanner *Scanner) DiscardedPartial() bool {
	return scanner.discardedPartial
}
