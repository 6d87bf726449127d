// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/projection"
	"github.com/parley-ops/parley/lib/stream"
	"github.com/parley-ops/parley/lib/workflow"
)

// Phase is the controller's high-level state.
type Phase string

const (
	// PhaseIdle means no session is active.
	PhaseIdle Phase = "idle"
	// PhaseStreaming means one live stream is being read.
	PhaseStreaming Phase = "streaming"
	// PhaseReplaying means state is being rebuilt from a persisted
	// event log; no live network read is active.
	PhaseReplaying Phase = "replaying"
	// PhaseFailed means the last session ended in a recoverable
	// error; retry via SendMessage or a replay.
	PhaseFailed Phase = "failed"
)

// StreamOpener opens a live event stream for a sent message.
// *stream.Client implements it.
type StreamOpener interface {
	OpenMessageStream(ctx context.Context, conversationID string, request stream.MessageRequest) (*stream.Stream, error)
}

// LedgerSource fetches the complete ordered persisted event log for a
// conversation or workflow run.
type LedgerSource interface {
	RunEvents(ctx context.Context, runID string) ([]*envelope.Envelope, error)
	ConversationEvents(ctx context.Context, conversationID string) ([]*envelope.Envelope, error)
}

// Config assembles a Controller. Opener is required for SendMessage,
// Ledger for the replay paths; either may be nil when that path is
// unused. Workflow is optional and only drives graph highlighting.
type Config struct {
	ConversationID string

	// Agent and WorkflowKey are defaults attached to every sent
	// message; empty values let the tenant route.
	Agent       string
	WorkflowKey string

	Opener   StreamOpener
	Ledger   LedgerSource
	Workflow *workflow.NodeStore

	Logger *slog.Logger

	// Notify, when set, is called after every applied envelope and
	// every phase change, outside the controller's lock. Renderers
	// use it to schedule a repaint; it must not block.
	Notify func()
}

// Controller owns all mutable conversation state. All envelope
// application happens on one goroutine at a time; the mutex exists so
// renderers can take consistent snapshots while a stream is applying.
type Controller struct {
	conversationID string
	agent          string
	workflowKey    string

	opener        StreamOpener
	ledger        LedgerSource
	workflowStore *workflow.NodeStore
	logger        *slog.Logger
	notify        func()

	mu             sync.Mutex
	phase          Phase
	generation     int
	activeStreamID string
	cancel         context.CancelFunc
	finished       chan struct{}
	lastErr        error

	events     []*envelope.Envelope
	transcript *Transcript
	reasoning  *projection.ReasoningState
	tools      *projection.ToolState

	runStatus  string
	result     *envelope.FinalResult
	usage      envelope.Usage
	guardrails []envelope.GuardrailResult
	suppressed int
}

func New(config Config) *Controller {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	finished := make(chan struct{})
	close(finished)

	return &Controller{
		conversationID: config.ConversationID,
		agent:          config.Agent,
		workflowKey:    config.WorkflowKey,
		opener:         config.Opener,
		ledger:         config.Ledger,
		workflowStore:  config.Workflow,
		logger:         logger,
		notify:         config.Notify,
		phase:          PhaseIdle,
		finished:       finished,
		transcript:     NewTranscript(),
		reasoning:      projection.NewReasoningState(),
		tools:          projection.NewToolState(),
	}
}

// SendMessage appends the user message to the transcript, opens a live
// stream for the response, and applies its envelopes in the background
// until the stream ends. A prior live stream is aborted first; its
// late envelopes are ignored. The returned error covers the handshake
// only; stream failures after it surface through [Controller.Snapshot]
// once [Controller.Done] closes.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if c.opener == nil {
		return errors.New("conversation: no stream opener configured")
	}
	if text == "" {
		return errors.New("conversation: message text is required")
	}

	c.mu.Lock()
	c.abortLocked()
	generation := c.generation
	c.phase = PhaseStreaming
	c.lastErr = nil
	c.finished = make(chan struct{})
	c.transcript.AppendUser(text)
	conversationID := c.conversationID
	c.mu.Unlock()
	c.notifyObserver()

	streamCtx, cancel := context.WithCancel(ctx)
	events, err := c.opener.OpenMessageStream(streamCtx, conversationID, stream.MessageRequest{
		Text:        text,
		Agent:       c.agent,
		WorkflowKey: c.workflowKey,
	})
	if err != nil {
		cancel()
		c.mu.Lock()
		if generation == c.generation {
			c.phase = PhaseFailed
			c.lastErr = err
			c.closeFinishedLocked()
		}
		c.mu.Unlock()
		c.notifyObserver()
		return err
	}

	c.mu.Lock()
	if generation != c.generation {
		// Superseded during the handshake.
		c.mu.Unlock()
		cancel()
		events.Close()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()

	go c.consume(generation, events)
	return nil
}

func (c *Controller) consume(generation int, events *stream.Stream) {
	defer events.Close()
	for events.Next() {
		if !c.apply(generation, events.Envelope()) {
			return
		}
	}
	c.finish(generation, events.Err())
}

// apply folds one live envelope into all projections. Returns false
// when this stream has been superseded and reading should stop.
func (c *Controller) apply(generation int, env *envelope.Envelope) bool {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return false
	}

	// The server assigns the stream ID; the first envelope pins it.
	// Anything tagged differently is a stale in-flight leftover.
	if c.activeStreamID == "" {
		c.activeStreamID = env.StreamID
	} else if env.StreamID != c.activeStreamID {
		c.suppressed++
		c.logger.Warn("suppressing envelope from stale stream",
			"stream_id", env.StreamID,
			"active_stream_id", c.activeStreamID)
		c.mu.Unlock()
		return true
	}

	c.applyLocked(env)
	c.mu.Unlock()
	c.notifyObserver()
	return true
}

// applyLocked is the single dispatch point shared by the live and
// replay paths. Caller holds the lock.
func (c *Controller) applyLocked(env *envelope.Envelope) {
	c.events = append(c.events, env)
	c.transcript.Apply(env)
	c.reasoning.Apply(env)
	c.tools.Apply(env)
	if c.workflowStore != nil {
		c.workflowStore.ApplyEvents(c.events)
	}

	switch env.Kind {
	case envelope.KindLifecycle:
		if env.Status != "" {
			c.runStatus = env.Status
		}
	case envelope.KindGuardrailResult:
		if env.Guardrail != nil {
			c.guardrails = append(c.guardrails, *env.Guardrail)
		}
	case envelope.KindFinal:
		c.result = env.Final.Clone()
		if env.Final != nil && env.Final.Usage != nil {
			c.usage = *env.Final.Usage
		}
		c.phase = PhaseIdle
		c.activeStreamID = ""
		if c.cancel != nil {
			// The response is complete; stop the read loop rather
			// than waiting for the server to hang up.
			c.cancel()
			c.cancel = nil
		}
	}
}

// finish records the stream's terminal condition. A stream that ends
// while still in PhaseStreaming never delivered a final envelope, so
// it failed even when the read itself ended cleanly.
func (c *Controller) finish(generation int, err error) {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return
	}
	if c.phase == PhaseStreaming {
		if err == nil {
			err = &stream.TransportError{Message: "stream ended before a final envelope"}
		}
		c.phase = PhaseFailed
		c.lastErr = err
		c.logger.Warn("conversation stream failed", "error", err)
	}
	c.cancel = nil
	c.closeFinishedLocked()
	c.mu.Unlock()
	c.notifyObserver()
}

// LoadHistoricalRun rebuilds all state from the persisted event log of
// a workflow run. Every projection is fully reset first, then the log
// flows through the same apply path as live streaming.
func (c *Controller) LoadHistoricalRun(ctx context.Context, runID string) error {
	if c.ledger == nil {
		return errors.New("conversation: no ledger source configured")
	}
	return c.replay(ctx, func(ctx context.Context) ([]*envelope.Envelope, error) {
		return c.ledger.RunEvents(ctx, runID)
	})
}

// LoadConversation rebuilds all state from the persisted event log of
// a conversation. Used for reconnect-after-drop.
func (c *Controller) LoadConversation(ctx context.Context) error {
	if c.ledger == nil {
		return errors.New("conversation: no ledger source configured")
	}
	return c.replay(ctx, func(ctx context.Context) ([]*envelope.Envelope, error) {
		return c.ledger.ConversationEvents(ctx, c.conversationID)
	})
}

// LoadStream rebuilds all state from an already-open envelope stream,
// applying it synchronously on the calling goroutine. Verification uses
// it to run a reconstructed wire body through the same framing and
// apply code as live traffic. The stream is closed before returning.
func (c *Controller) LoadStream(ctx context.Context, events *stream.Stream) error {
	defer events.Close()

	c.mu.Lock()
	c.abortLocked()
	generation := c.generation
	c.phase = PhaseReplaying
	c.lastErr = nil
	c.resetLocked()
	c.mu.Unlock()
	c.notifyObserver()

	for events.Next() {
		c.mu.Lock()
		if generation != c.generation {
			c.mu.Unlock()
			return nil
		}
		if err := ctx.Err(); err != nil {
			c.phase = PhaseFailed
			c.lastErr = err
			c.mu.Unlock()
			c.notifyObserver()
			return err
		}
		// Like ledger replay, the body's ordering is authoritative;
		// no stale-stream filtering applies.
		c.applyLocked(events.Envelope())
		c.mu.Unlock()
		c.notifyObserver()
	}
	if err := events.Err(); err != nil {
		c.mu.Lock()
		if generation == c.generation {
			c.phase = PhaseFailed
			c.lastErr = err
		}
		c.mu.Unlock()
		c.notifyObserver()
		return err
	}

	c.mu.Lock()
	if generation == c.generation {
		c.phase = PhaseIdle
		c.activeStreamID = ""
	}
	c.mu.Unlock()
	c.notifyObserver()
	return nil
}

func (c *Controller) replay(ctx context.Context, fetch func(context.Context) ([]*envelope.Envelope, error)) error {
	c.mu.Lock()
	c.abortLocked()
	generation := c.generation
	c.phase = PhaseReplaying
	c.lastErr = nil
	c.mu.Unlock()
	c.notifyObserver()

	events, err := fetch(ctx)
	if err != nil {
		c.mu.Lock()
		if generation == c.generation {
			c.phase = PhaseFailed
			c.lastErr = err
		}
		c.mu.Unlock()
		c.notifyObserver()
		return err
	}

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()
	for _, env := range events {
		if err := ctx.Err(); err != nil {
			c.phase = PhaseFailed
			c.lastErr = err
			c.mu.Unlock()
			c.notifyObserver()
			return err
		}
		// A persisted log may span several stream IDs (one per
		// reconnect); the ledger's ordering is authoritative, so no
		// stale-stream filtering applies here.
		c.applyLocked(env)
	}
	c.phase = PhaseIdle
	c.activeStreamID = ""
	c.mu.Unlock()
	c.notifyObserver()
	return nil
}

// Cancel stops the live stream, keeping everything already applied.
// The transcript may be left with streaming entries; Reset clears them.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.phase == PhaseStreaming {
		c.phase = PhaseIdle
	}
	c.mu.Unlock()
	c.notifyObserver()
}

// Reset aborts any live stream and clears the transcript, all three
// accumulators, and the run bookkeeping. The controller returns to
// PhaseIdle.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.abortLocked()
	c.resetLocked()
	c.phase = PhaseIdle
	c.lastErr = nil
	c.mu.Unlock()
	c.notifyObserver()
}

// Done returns a channel that closes when the current live stream has
// fully terminated. Closed immediately when nothing is streaming.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Events returns the envelopes applied for the current run, in
// application order. The envelopes are shared; treat them as
// read-only.
func (c *Controller) Events() []*envelope.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*envelope.Envelope, len(c.events))
	copy(out, c.events)
	return out
}

// abortLocked invalidates the current stream: cancels the read,
// advances the generation so in-flight applies are rejected, and
// releases any waiter.
func (c *Controller) abortLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.activeStreamID = ""
	c.closeFinishedLocked()
}

func (c *Controller) closeFinishedLocked() {
	select {
	case <-c.finished:
	default:
		close(c.finished)
	}
}

func (c *Controller) resetLocked() {
	c.events = nil
	c.transcript.Reset()
	c.reasoning.Reset()
	c.tools.Reset()
	if c.workflowStore != nil {
		c.workflowStore.Reset()
	}
	c.runStatus = ""
	c.result = nil
	c.usage = envelope.Usage{}
	c.guardrails = nil
	c.suppressed = 0
}

func (c *Controller) notifyObserver() {
	if c.notify != nil {
		c.notify()
	}
}
