// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"io"
	"log/slog"

	"github.com/parley-ops/parley/lib/envelope"
)

// Stream is a lazy sequence of envelopes read from one live response
// body. It owns the body: Close releases it, and so does reaching the
// end of the source or a cancelled context.
//
// Usage mirrors [Scanner]:
//
//	events := stream.NewStream(ctx, body, logger)
//	defer events.Close()
//	for events.Next() {
//	    apply(events.Envelope())
//	}
//	if err := events.Err(); err != nil {
//	    // transport failure or cancellation
//	}
type Stream struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *Scanner
	logger  *slog.Logger

	current *envelope.Envelope
	err     error
	closed  bool

	droppedFrames  int
	lastFrameError error
}

// NewStream wraps a response body in an envelope sequence. The context
// is checked before every frame read; cancelling it stops emission
// promptly and releases the body. A nil logger falls back to
// [slog.Default].
func NewStream(ctx context.Context, body io.ReadCloser, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		ctx:     ctx,
		body:    body,
		scanner: NewScanner(body),
		logger:  logger,
	}
}

// Next advances to the next envelope. Malformed frames are dropped
// with a warning and never end the sequence; only source exhaustion,
// a transport read failure, or cancellation returns false.
func (s *Stream) Next() bool {
	if s.closed {
		return false
	}

	for {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			s.Close()
			return false
		}

		if !s.scanner.Next() {
			if s.scanner.DiscardedPartial() {
				s.logger.Warn("event stream ended with an unterminated frame; partial data discarded")
			}
			if err := s.scanner.Err(); err != nil {
				s.err = &TransportError{Message: "reading event stream", Err: err}
			}
			s.Close()
			return false
		}

		frame := s.scanner.Frame()
		env, err := envelope.Decode([]byte(frame.Data))
		if err != nil {
			s.droppedFrames++
			s.lastFrameError = &ProtocolError{Frame: frameSnippet(frame.Data), Err: err}
			s.logger.Warn("dropping malformed frame",
				"error", err,
				"frame_bytes", len(frame.Data))
			continue
		}

		s.current = env
		return true
	}
}

// Envelope returns the most recently decoded envelope. Only valid
// after [Stream.Next] returns true.
func (s *Stream) Envelope() *envelope.Envelope {
	return s.current
}

// Err returns the terminal error of the sequence: nil after a clean
// end of source, the context's error after cancellation, or a
// [TransportError] after a read failure. Per-frame protocol errors
// are reported through [Stream.DroppedFrames] instead.
func (s *Stream) Err() error {
	return s.err
}

// DroppedFrames reports how many frames were dropped as malformed,
// and the most recent [ProtocolError] (nil when the count is zero).
func (s *Stream) DroppedFrames() (int, error) {
	return s.droppedFrames, s.lastFrameError
}

// Close releases the underlying body. Idempotent; always returns the
// body's close error from the first call, nil afterwards.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
