package multiagent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

// MultiAgentExecutor runs a nested orchestrator as a node. Its events reach
// the outer stream wrapped in one more NodeStreamEvent. Interrupts raised
// inside the nested run suspend the outer run; on resume the nested run
// continues where it paused.
type MultiAgentExecutor struct {
	orchestrator Orchestrator
}

// NewMultiAgentNode wraps a Graph or Swarm as a node.
func NewMultiAgentNode(id string, o Orchestrator) *Node {
	return NewNode(id, &MultiAgentExecutor{orchestrator: o})
}

// Orchestrator returns the wrapped orchestrator.
func (e *MultiAgentExecutor) Orchestrator() Orchestrator { return e.orchestrator }

// NodeType implements Executor.
func (e *MultiAgentExecutor) NodeType() string { return NodeTypeMultiAgent }

// Execute implements Executor. A failed nested run fails the node; its
// result stays available as NodeResult.Nested.
func (e *MultiAgentExecutor) Execute(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	inner, resumed := req.State.nestedState(req.NodeID, req.Input)

	res, err := e.orchestrator.execute(ctx, inner, resumed, req.Emit)
	if _, ok := interrupt.AsSignal(err); ok {
		return &ExecResponse{Nested: res}, err
	}

	req.State.clearNested(req.NodeID)

	if err != nil {
		return &ExecResponse{Nested: res}, err
	}

	req.State.Merge(inner.Values())

	resp := &ExecResponse{Usage: res.Usage, Nested: res, Content: []core.Part{}}
	if out, ok := res.Output(); ok {
		resp.Content = out.Content
	}

	if res.Status == StatusFailed {
		return resp, fmt.Errorf("nested %s %s failed: %w", e.orchestrator.Kind(), e.orchestrator.Name(), res.Err)
	}

	return resp, nil
}
