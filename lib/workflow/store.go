// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"strings"

	"github.com/parley-ops/parley/lib/envelope"
)

// Node is one renderable graph node, derived from a descriptor step.
type Node struct {
	Stage         string
	Step          string
	Agent         string
	ParallelGroup string
	BranchIndex   int
}

// Edge connects two nodes by their index in Nodes() order.
type Edge struct {
	From int
	To   int
}

type stepKey struct {
	stage string
	step  string
}

type branchKey struct {
	group  string
	branch int
}

// NodeStore folds workflow-tagged envelopes into highlight state over
// a static graph. At most one node is active and at most one edge
// animates at any time. The store is not safe for concurrent use; the
// conversation controller applies events from a single goroutine.
type NodeStore struct {
	key      string
	nodes    []Node
	edges    []Edge
	incoming [][]int

	byStepStage map[stepKey]int
	byStep      map[string]int
	byBranch    map[branchKey]int

	applied      int
	active       int
	previous     int
	animatedEdge int
	destroyed    bool
}

// NewNodeStore builds the graph for a descriptor. Steps become nodes
// in declaration order. Sequential steps chain with one edge each; a
// parallel group fans out from the node before it and reconverges on
// the node after it, so a join node carries one incoming edge per
// branch.
func NewNodeStore(descriptor *Descriptor) (*NodeStore, error) {
	if issues := descriptor.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("workflow descriptor %q: %s", descriptor.Key, strings.Join(issues, "; "))
	}

	store := &NodeStore{
		key:         descriptor.Key,
		byStepStage: make(map[stepKey]int),
		byStep:      make(map[string]int),
		byBranch:    make(map[branchKey]int),
	}

	// frontier holds the node indices that feed the next node: one
	// entry normally, one per branch right after a parallel group.
	var frontier []int
	for _, stage := range descriptor.Stages {
		stepIndex := 0
		for stepIndex < len(stage.Steps) {
			step := stage.Steps[stepIndex]
			if step.ParallelGroup == "" {
				id := store.addNode(stage.Name, step, "", 0)
				store.connect(frontier, id)
				frontier = []int{id}
				stepIndex++
				continue
			}

			group := step.ParallelGroup
			var members []int
			for stepIndex < len(stage.Steps) && stage.Steps[stepIndex].ParallelGroup == group {
				branch := len(members)
				id := store.addNode(stage.Name, stage.Steps[stepIndex], group, branch)
				store.connect(frontier, id)
				members = append(members, id)
				stepIndex++
			}
			frontier = members
		}
	}

	store.Reset()
	return store, nil
}

func (s *NodeStore) addNode(stageName string, step Step, group string, branch int) int {
	id := len(s.nodes)
	s.nodes = append(s.nodes, Node{
		Stage:         stageName,
		Step:          step.Name,
		Agent:         step.Agent,
		ParallelGroup: group,
		BranchIndex:   branch,
	})
	s.incoming = append(s.incoming, nil)

	s.byStepStage[stepKey{stage: stageName, step: step.Name}] = id
	if _, exists := s.byStep[step.Name]; !exists {
		// First declaration wins for the name-only fallback; later
		// stages reusing a step name stay reachable via step+stage.
		s.byStep[step.Name] = id
	}
	if group != "" {
		s.byBranch[branchKey{group: group, branch: branch}] = id
	}
	return id
}

func (s *NodeStore) connect(from []int, to int) {
	for _, source := range from {
		edgeIndex := len(s.edges)
		s.edges = append(s.edges, Edge{From: source, To: to})
		s.incoming[to] = append(s.incoming[to], edgeIndex)
	}
}

// Reset clears all derived highlight state and the applied-count,
// leaving the static graph intact.
func (s *NodeStore) Reset() {
	if s.destroyed {
		return
	}
	s.applied = 0
	s.active = -1
	s.previous = -1
	s.animatedEdge = -1
}

// ApplyEvents ingests the full envelope list for the current run and
// processes only what has not been applied yet. A list shorter than
// the applied count means a new run replaced the old one; the store
// resets and reprocesses the list from the start.
func (s *NodeStore) ApplyEvents(events []*envelope.Envelope) {
	if s.destroyed {
		return
	}
	if len(events) < s.applied {
		s.Reset()
	}
	for _, env := range events[s.applied:] {
		s.apply(env)
	}
	s.applied = len(events)
}

func (s *NodeStore) apply(env *envelope.Envelope) {
	meta := env.Workflow
	if meta == nil {
		return
	}
	if meta.WorkflowKey != "" && meta.WorkflowKey != s.key {
		return
	}
	node, ok := s.match(meta)
	if !ok {
		// Unmatched coordinates keep the previous highlight.
		return
	}
	s.activate(node)
}

// match resolves workflow coordinates to a node: step+stage first,
// then step name alone, then parallel group and branch index.
func (s *NodeStore) match(meta *envelope.WorkflowMeta) (int, bool) {
	if meta.StepName != "" && meta.StageName != "" {
		if id, ok := s.byStepStage[stepKey{stage: meta.StageName, step: meta.StepName}]; ok {
			return id, true
		}
	}
	if meta.StepName != "" {
		if id, ok := s.byStep[meta.StepName]; ok {
			return id, true
		}
	}
	if meta.ParallelGroup != "" {
		if id, ok := s.byBranch[branchKey{group: meta.ParallelGroup, branch: meta.BranchIndex}]; ok {
			return id, true
		}
	}
	return 0, false
}

func (s *NodeStore) activate(node int) {
	if node == s.active {
		return
	}
	s.previous = s.active
	s.active = node
	s.animatedEdge = s.chooseEdge(node)
}

// chooseEdge picks the single incoming edge to animate for the newly
// active node: the edge arriving from the previously active node when
// one exists, otherwise the node's first incoming edge. Entry nodes
// have no incoming edge and animate nothing.
func (s *NodeStore) chooseEdge(node int) int {
	candidates := s.incoming[node]
	if len(candidates) == 0 {
		return -1
	}
	for _, edgeIndex := range candidates {
		if s.edges[edgeIndex].From == s.previous {
			return edgeIndex
		}
	}
	return candidates[0]
}

// Nodes returns the graph nodes in declaration order.
func (s *NodeStore) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Edges returns the graph edges in construction order.
func (s *NodeStore) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// ActiveNode returns the currently highlighted node, if any.
func (s *NodeStore) ActiveNode() (Node, bool) {
	if s.destroyed || s.active < 0 {
		return Node{}, false
	}
	return s.nodes[s.active], true
}

// AnimatedEdge returns the single edge currently animating, if any.
func (s *NodeStore) AnimatedEdge() (Edge, bool) {
	if s.destroyed || s.animatedEdge < 0 {
		return Edge{}, false
	}
	return s.edges[s.animatedEdge], true
}

// Applied returns how many envelopes of the current run's list have
// been processed.
func (s *NodeStore) Applied() int {
	return s.applied
}

// Destroy releases all retained state. The store ignores every call
// after this.
func (s *NodeStore) Destroy() {
	s.destroyed = true
	s.nodes = nil
	s.edges = nil
	s.incoming = nil
	s.byStepStage = nil
	s.byStep = nil
	s.byBranch = nil
	s.applied = 0
	s.active = -1
	s.animatedEdge = -1
}
