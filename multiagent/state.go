package multiagent

import (
	"maps"
	"slices"
	"sync"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/interrupt"
)

// TranscriptEntry is the output of one completed activation.
type TranscriptEntry struct {
	NodeID string
	Text   string
}

// State is the working memory of one orchestrated run. It is created when a
// run starts, shared by every node activation of that run and discarded when
// the run terminates. A suspended run keeps its State until it is resumed.
//
// Values are shared across nodes: state deltas recorded by agents are merged
// into them when a node completes, and every agent activation starts with a
// copy of them as session state.
type State struct {
	mu sync.RWMutex

	runID      string
	task       core.Content
	values     map[string]any
	results    map[string]*NodeResult
	statuses   map[string]Status
	transcript []TranscriptEntry

	handoffMessage string
	sharedContext  map[string]map[string]any

	interrupts *interrupt.State
	sessions   map[string]*core.Session
	nested     map[string]*State

	graph *graphProgress
	swarm *swarmProgress
}

func newState(task core.Content, interrupts *interrupt.State) *State {
	if interrupts == nil {
		interrupts = interrupt.NewState()
	}

	return &State{
		runID:         util.NewID(),
		task:          task,
		values:        map[string]any{},
		results:       map[string]*NodeResult{},
		statuses:      map[string]Status{},
		sharedContext: map[string]map[string]any{},
		interrupts:    interrupts,
		sessions:      map[string]*core.Session{},
		nested:        map[string]*State{},
	}
}

// RunID identifies the run.
func (s *State) RunID() string { return s.runID }

// Task returns the task the run was started with.
func (s *State) Task() core.Content { return s.task }

// Get returns a shared value.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a shared value.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Merge stores all entries of delta.
func (s *State) Merge(delta map[string]any) {
	if len(delta) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.values, delta)
}

// Values returns a copy of all shared values.
func (s *State) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Result returns the latest terminal result of a node.
func (s *State) Result(nodeID string) (*NodeResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[nodeID]
	return r, ok
}

// NodeStatus returns the status of a node's latest activation. Nodes that
// were never activated in this run are pending.
func (s *State) NodeStatus(nodeID string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.statuses[nodeID]; ok {
		return st
	}

	return StatusPending
}

// Executing returns the ids of nodes currently running, sorted.
func (s *State) Executing() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, st := range s.statuses {
		if st == StatusExecuting {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids
}

func (s *State) setStatus(nodeID string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[nodeID] = status
}

// Transcript returns the outputs of completed activations in completion order.
func (s *State) Transcript() []TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transcript)
}

// HandoffMessage returns the message of the latest handoff.
func (s *State) HandoffMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handoffMessage
}

// SharedContext returns the handoff context contributed by each node.
func (s *State) SharedContext() map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]any, len(s.sharedContext))
	for k, v := range s.sharedContext {
		out[k] = maps.Clone(v)
	}
	return out
}

// Interrupts returns the interrupt state of the run.
func (s *State) Interrupts() *interrupt.State { return s.interrupts }

func (s *State) recordResult(r *NodeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[r.NodeID] = r
	if r.Status == StatusCompleted {
		s.transcript = append(s.transcript, TranscriptEntry{NodeID: r.NodeID, Text: r.Text()})
	}
}

func (s *State) resultsCopy() map[string]*NodeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.results)
}

func (s *State) recordHandoff(from string, h *Handoff) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handoffMessage = h.Message
	if len(h.Context) > 0 {
		if s.sharedContext[from] == nil {
			s.sharedContext[from] = map[string]any{}
		}
		maps.Copy(s.sharedContext[from], h.Context)
	}
}

// session returns the working session of a suspended agent node.
func (s *State) session(nodeID string) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[nodeID]
	return sess, ok
}

func (s *State) setSession(nodeID string, sess *core.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[nodeID] = sess
}

func (s *State) clearSession(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, nodeID)
}

// nestedState returns the run state of a nested orchestrator node, creating
// it on first use. resumed is true when an earlier activation was suspended.
func (s *State) nestedState(nodeID string, task core.Content) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inner, ok := s.nested[nodeID]; ok {
		return inner, true
	}

	inner := newState(task, s.interrupts)
	s.nested[nodeID] = inner

	return inner, false
}

func (s *State) clearNested(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nested, nodeID)
}
