package multiagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/logging"
)

// Node types reported in NodeStreamEvent and NodeResult.
const (
	NodeTypeAgent      = "agentNode"
	NodeTypeMultiAgent = "multiAgentNode"
)

// ExecRequest is the input of one executor invocation.
type ExecRequest struct {
	NodeID string
	Input  core.Content
	State  *State
	// Emit forwards an inner event. The Node tags it before it reaches the
	// run's stream.
	Emit   func(Event) error
	Logger logging.Logger
}

// ExecResponse is the output of a successful executor invocation.
type ExecResponse struct {
	Content []core.Part
	Usage   core.Usage
	Handoff *Handoff
	Nested  *Result
}

// Executor is the unit of work wrapped by a Node. Returning an
// *interrupt.Signal pauses the run; any other error fails the node. An
// executor may return a partial response together with an error.
type Executor interface {
	NodeType() string
	Execute(ctx context.Context, req *ExecRequest) (*ExecResponse, error)
}

// Node wraps one executor with timing, failure isolation and event tagging.
type Node struct {
	id       string
	executor Executor
}

// NewNode creates a node with a custom executor.
func NewNode(id string, executor Executor) *Node {
	return &Node{id: id, executor: executor}
}

// ID returns the node id.
func (n *Node) ID() string { return n.id }

// Type returns the executor's node type.
func (n *Node) Type() string { return n.executor.NodeType() }

// Executor returns the wrapped executor.
func (n *Node) Executor() Executor { return n.executor }

// Execute runs the executor and always returns a result. Inner events are
// relayed as NodeStreamEvents while the executor runs; once it returned,
// late events are dropped.
func (n *Node) Execute(ctx context.Context, input core.Content, st *State, emit func(Event) error, logger logging.Logger) *NodeResult {
	start := time.Now()
	nodeType := n.Type()

	var (
		mu     sync.Mutex
		closed bool
	)

	relay := func(ev Event) error {
		mu.Lock()
		defer mu.Unlock()

		if closed {
			return errNodeClosed
		}

		return emit(&NodeStreamEvent{NodeID: n.id, NodeType: nodeType, Event: ev})
	}

	resp, err := n.call(ctx, &ExecRequest{NodeID: n.id, Input: input, State: st, Emit: relay, Logger: logger})

	mu.Lock()
	closed = true
	mu.Unlock()

	result := &NodeResult{
		NodeID:   n.id,
		NodeType: nodeType,
		Duration: time.Since(start),
		Content:  []core.Part{},
	}

	if resp != nil {
		result.Usage = resp.Usage
		result.Nested = resp.Nested
	}

	if sig, ok := interrupt.AsSignal(err); ok {
		result.Status = StatusInterrupted
		result.Interrupts = sig.Interrupts
		return result
	}

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	result.Status = StatusCompleted
	if resp != nil {
		if resp.Content != nil {
			result.Content = resp.Content
		}
		result.Handoff = resp.Handoff
	}

	return result
}

var errNodeClosed = errors.New("multiagent: node already finished")

func (n *Node) call(ctx context.Context, req *ExecRequest) (resp *ExecResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("node %s panicked: %v", n.id, r)
		}
	}()

	return n.executor.Execute(ctx, req)
}
