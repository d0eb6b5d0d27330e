package multiagent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/interrupt"
)

// AgentNodeOptions configures an agent node.
type AgentNodeOptions struct {
	// MaxModelCalls bounds model calls per activation (0 = unlimited).
	MaxModelCalls int
	// EventBuffer sizes the channel between the agent and the node relay.
	EventBuffer int
}

// AgentExecutor runs a core.Agent as a node.
//
// Each activation uses a fresh working session seeded with the run's shared
// values and the node input, so repeated activations never see each other's
// conversation. Agents implementing core.Snapshotter are restored after
// every activation. An interrupted activation keeps its session in the run
// State and continues it on resume.
type AgentExecutor struct {
	agent core.Agent
	opts  AgentNodeOptions
}

// NewAgentNode wraps an agent as a node.
func NewAgentNode(id string, a core.Agent, optFns ...func(o *AgentNodeOptions)) *Node {
	opts := AgentNodeOptions{EventBuffer: 16}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewNode(id, &AgentExecutor{agent: a, opts: opts})
}

// Agent returns the wrapped agent.
func (e *AgentExecutor) Agent() core.Agent { return e.agent }

// NodeType implements Executor.
func (e *AgentExecutor) NodeType() string { return NodeTypeAgent }

// Execute implements Executor.
func (e *AgentExecutor) Execute(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	if s, ok := e.agent.(core.Snapshotter); ok {
		snapshot := s.Snapshot()
		defer s.Restore(snapshot)
	}

	invocationID := util.NewID()

	sess, resumed := req.State.session(req.NodeID)
	if !resumed {
		sess = core.NewSession(req.State.RunID() + "/" + req.NodeID)
		sess.ApplyStateDelta(req.State.Values())

		input := req.Input
		sess.AddEvent(core.NewUserContentEvent(invocationID, &input))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	emitCh := make(chan core.Event, e.opts.EventBuffer)

	ic := core.NewInvocationContext(
		runCtx,
		sess.ID,
		invocationID,
		core.AgentInfo{Name: req.NodeID, Type: NodeTypeAgent},
		req.Input,
		emitCh,
		sess,
		func(o *core.InvocationOptions) {
			o.Logger = req.Logger
			o.Interrupts = req.State.Interrupts()
			o.MaxModelCalls = e.opts.MaxModelCalls
			o.Branch = req.NodeID
		},
	)

	var runErr error

	go func() {
		defer close(emitCh)
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("agent %s panicked: %v", e.agent.Name(), r)
			}
		}()

		runErr = e.agent.Run(ic)
	}()

	var emitErr error
	for ev := range emitCh {
		if emitErr != nil {
			continue
		}

		if err := req.Emit(&AgentEvent{Event: ev}); err != nil {
			emitErr = err
			cancel()
		}
	}

	if _, ok := interrupt.AsSignal(runErr); ok {
		req.State.setSession(req.NodeID, sess)
		return nil, runErr
	}

	req.State.clearSession(req.NodeID)

	if runErr != nil {
		return nil, runErr
	}

	if emitErr != nil {
		return nil, emitErr
	}

	return e.collect(sess, req.State), nil
}

// collect derives the node output from the finished working session and
// merges recorded state deltas into the run's shared values.
func (e *AgentExecutor) collect(sess *core.Session, st *State) *ExecResponse {
	resp := &ExecResponse{Content: []core.Part{}}

	for _, ev := range sess.GetEvents() {
		if ev.Usage != nil {
			resp.Usage = resp.Usage.Add(*ev.Usage)
		}

		st.Merge(ev.Actions.StateDelta)

		if target, ok := ev.Transfer(); ok {
			resp.Handoff = &Handoff{
				Target:  target,
				Message: ev.Actions.TransferMessage,
				Context: ev.Actions.TransferContext,
			}
		}
	}

	if msg, ok := sess.LastMessage(e.agent.Name()); ok {
		resp.Content = msg.Parts
	}

	return resp
}
