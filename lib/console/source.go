// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/stream"
	"github.com/parley-ops/parley/lib/workflow"
)

// Source abstracts conversation state access for the TUI. The model
// renders whatever Snapshot returns and repaints on Subscribe
// notifications; it never mutates state directly.
type Source interface {
	// Snapshot returns the current conversation state.
	Snapshot() conversation.Snapshot

	// Subscribe returns the change notification channel. A receive
	// means the state changed since the last snapshot; notifications
	// coalesce, so one receive may cover many applied envelopes.
	// Returns nil if the source never changes after construction.
	Subscribe() <-chan struct{}

	// Title identifies the source in the console header: the
	// conversation ID in live mode, the capture file name in file
	// mode.
	Title() string
}

// Sender is an optional interface for sources that accept operator
// messages. The model checks for it via type assertion; when absent
// (capture files), the composer is hidden and the console is
// read-only.
type Sender interface {
	// Send submits an operator message, aborting any in-flight
	// stream first.
	Send(ctx context.Context, text string) error

	// CancelStream aborts the in-flight stream without sending
	// anything.
	CancelStream()
}

// RunLister is an optional interface for sources that can enumerate
// historical runs and replay one into the view. The model checks for
// it via type assertion; when absent, the run picker is disabled.
type RunLister interface {
	// Runs returns the operator-visible runs, newest first.
	Runs(ctx context.Context) ([]ledger.RunSummary, error)

	// LoadRun replaces the current view with a deterministic replay
	// of the given run's ledger events.
	LoadRun(ctx context.Context, runID string) error
}

// WorkflowViewer is an optional interface for sources that know the
// workflow graph behind the conversation. The returned slices are
// owned by the caller; the moving highlight (active node, animated
// edge) travels in the snapshot, not here. When absent or ok is
// false, the workflow pane is hidden.
type WorkflowViewer interface {
	WorkflowGraph() (nodes []workflow.Node, edges []workflow.Edge, ok bool)
}

// LiveSourceConfig assembles a [LiveSource].
type LiveSourceConfig struct {
	// Stream opens message streams against the tenant API. Required.
	Stream *stream.Client

	// Ledger fetches historical events and run listings. Optional;
	// without it the replay paths and the run picker are disabled.
	Ledger *ledger.Client

	// ConversationID scopes the session. Required.
	ConversationID string

	// Agent and WorkflowKey are defaults attached to every sent
	// message; empty values let the tenant route.
	Agent       string
	WorkflowKey string

	// Workflow, when set, drives graph highlighting.
	Workflow *workflow.NodeStore

	Logger *slog.Logger
}

// LiveSource drives a conversation against the tenant API. It owns
// the conversation controller and surfaces its notifications as a
// coalescing channel for the bubbletea loop.
type LiveSource struct {
	controller *conversation.Controller
	ledger     *ledger.Client
	notify     chan struct{}
	title      string

	// Static graph, captured at construction before the controller
	// starts applying events. The node store itself is single-owner
	// state inside the controller.
	nodes []workflow.Node
	edges []workflow.Edge
}

var (
	_ Source         = (*LiveSource)(nil)
	_ Sender         = (*LiveSource)(nil)
	_ RunLister      = (*LiveSource)(nil)
	_ WorkflowViewer = (*LiveSource)(nil)
)

// NewLiveSource builds the conversation controller for a live session
// and wires its change notifications into the source.
func NewLiveSource(config LiveSourceConfig) (*LiveSource, error) {
	if config.Stream == nil {
		return nil, fmt.Errorf("live source requires a stream client")
	}
	if config.ConversationID == "" {
		return nil, fmt.Errorf("live source requires a conversation ID")
	}

	source := &LiveSource{
		ledger: config.Ledger,
		notify: make(chan struct{}, 1),
		title:  config.ConversationID,
	}
	if config.Workflow != nil {
		source.nodes = config.Workflow.Nodes()
		source.edges = config.Workflow.Edges()
	}

	controllerConfig := conversation.Config{
		ConversationID: config.ConversationID,
		Agent:          config.Agent,
		WorkflowKey:    config.WorkflowKey,
		Opener:         config.Stream,
		Workflow:       config.Workflow,
		Logger:         config.Logger,
		Notify:         source.signal,
	}
	if config.Ledger != nil {
		controllerConfig.Ledger = config.Ledger
	}
	source.controller = conversation.New(controllerConfig)

	return source, nil
}

// signal delivers a coalescing change notification. Never blocks: a
// pending notification already covers this change.
func (source *LiveSource) signal() {
	select {
	case source.notify <- struct{}{}:
	default:
	}
}

// Snapshot returns the controller's current state.
func (source *LiveSource) Snapshot() conversation.Snapshot {
	return source.controller.Snapshot()
}

// Subscribe returns the coalescing notification channel.
func (source *LiveSource) Subscribe() <-chan struct{} {
	return source.notify
}

// Title returns the conversation ID.
func (source *LiveSource) Title() string {
	return source.title
}

// Send submits an operator message through the controller.
func (source *LiveSource) Send(ctx context.Context, text string) error {
	return source.controller.SendMessage(ctx, text)
}

// CancelStream aborts the in-flight stream, if any.
func (source *LiveSource) CancelStream() {
	source.controller.Cancel()
}

// Runs lists the operator's runs from the ledger.
func (source *LiveSource) Runs(ctx context.Context) ([]ledger.RunSummary, error) {
	if source.ledger == nil {
		return nil, fmt.Errorf("run listing requires a ledger client")
	}
	return source.ledger.Runs(ctx)
}

// LoadRun replays a historical run into the view.
func (source *LiveSource) LoadRun(ctx context.Context, runID string) error {
	return source.controller.LoadHistoricalRun(ctx, runID)
}

// WorkflowGraph returns the static graph captured at construction.
func (source *LiveSource) WorkflowGraph() ([]workflow.Node, []workflow.Edge, bool) {
	if len(source.nodes) == 0 {
		return nil, nil, false
	}
	return source.nodes, source.edges, true
}

// Controller exposes the underlying conversation controller so
// binaries can drain it on shutdown.
func (source *LiveSource) Controller() *conversation.Controller {
	return source.controller
}

// CaptureSourceConfig assembles a [CaptureSource].
type CaptureSourceConfig struct {
	// Path is the capture file to load and watch. Required.
	Path string

	// WorkflowsDir, when set, is searched for a <workflow-key>.jsonc
	// descriptor matching the capture header so the workflow pane can
	// render. Missing descriptors degrade to no workflow pane.
	WorkflowsDir string

	Logger *slog.Logger
}

// CaptureSource renders a capture file. The file is replayed through
// the same controller pipeline as live traffic, and re-replayed from
// scratch whenever the file changes on disk, so a capture being
// recorded can be tailed.
type CaptureSource struct {
	mutex    sync.RWMutex
	snapshot conversation.Snapshot
	header   ledger.Header
	nodes    []workflow.Node
	edges    []workflow.Edge

	notify       chan struct{}
	logger       *slog.Logger
	workflowsDir string
	title        string
	stop         func()
}

var (
	_ Source         = (*CaptureSource)(nil)
	_ WorkflowViewer = (*CaptureSource)(nil)
)

// NewCaptureSource loads the capture at path and starts watching it.
// The initial replay happens before NewCaptureSource returns; Close
// stops the watch.
func NewCaptureSource(config CaptureSourceConfig) (*CaptureSource, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("capture source requires a path")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	source := &CaptureSource{
		notify:       make(chan struct{}, 1),
		logger:       logger,
		workflowsDir: config.WorkflowsDir,
		title:        filepath.Base(config.Path),
	}

	stop, err := ledger.Follow(config.Path, source.apply)
	if err != nil {
		return nil, err
	}
	source.stop = stop
	return source, nil
}

// apply replays the capture's events through a fresh controller and
// swaps the rendered snapshot in. Called by the follower on every
// file change; a failed replay keeps the previous snapshot so a
// mid-write read never blanks the view.
func (source *CaptureSource) apply(header ledger.Header, events []*envelope.Envelope) {
	var store *workflow.NodeStore
	if header.WorkflowKey != "" && source.workflowsDir != "" {
		path := filepath.Join(source.workflowsDir, header.WorkflowKey+".jsonc")
		descriptor, err := workflow.ReadFile(path)
		if err != nil {
			source.logger.Warn("workflow descriptor unavailable for capture",
				"key", header.WorkflowKey, "error", err)
		} else if built, err := workflow.NewNodeStore(descriptor); err != nil {
			source.logger.Warn("workflow descriptor rejected",
				"key", header.WorkflowKey, "error", err)
		} else {
			store = built
		}
	}

	controller := conversation.New(conversation.Config{
		ConversationID: header.ConversationID,
		Ledger:         &ledger.StaticSource{Events: events},
		Workflow:       store,
		Logger:         source.logger,
	})
	if err := controller.LoadConversation(context.Background()); err != nil {
		source.logger.Warn("capture replay failed", "error", err)
		return
	}
	snapshot := controller.Snapshot()

	source.mutex.Lock()
	source.header = header
	source.snapshot = snapshot
	if store != nil {
		source.nodes = store.Nodes()
		source.edges = store.Edges()
	} else {
		source.nodes = nil
		source.edges = nil
	}
	source.mutex.Unlock()

	select {
	case source.notify <- struct{}{}:
	default:
	}
}

// Snapshot returns the most recent successful replay.
func (source *CaptureSource) Snapshot() conversation.Snapshot {
	source.mutex.RLock()
	defer source.mutex.RUnlock()
	return source.snapshot
}

// Subscribe returns the file-change notification channel.
func (source *CaptureSource) Subscribe() <-chan struct{} {
	return source.notify
}

// Title returns the capture file name.
func (source *CaptureSource) Title() string {
	return source.title
}

// Header returns the capture header from the most recent replay.
func (source *CaptureSource) Header() ledger.Header {
	source.mutex.RLock()
	defer source.mutex.RUnlock()
	return source.header
}

// WorkflowGraph returns the graph resolved from the capture header's
// workflow key, when a local descriptor was found.
func (source *CaptureSource) WorkflowGraph() ([]workflow.Node, []workflow.Edge, bool) {
	source.mutex.RLock()
	defer source.mutex.RUnlock()
	if len(source.nodes) == 0 {
		return nil, nil, false
	}
	return source.nodes, source.edges, true
}

// Close stops the file watch. Idempotent.
func (source *CaptureSource) Close() {
	if source.stop != nil {
		source.stop()
	}
}
