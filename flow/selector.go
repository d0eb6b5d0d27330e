package flow

import "github.com/hupe1980/agentgraph/tool"

// Selector determines which flow to use based on agent capabilities.
type Selector struct{}

// NewSelector creates a new flow selector.
func NewSelector() *Selector { return &Selector{} }

// SelectFlow chooses the appropriate flow for the given agent. Agents with
// handoff targets get the handoff tool; all others run the plain tool loop.
// Targets are read on every call because a swarm assigns them after the
// agent was constructed.
func (s *Selector) SelectFlow(agent FlowAgent) Flow {
	if len(agent.HandoffTargets()) == 0 {
		return NewSingleAgentFlow(agent)
	}

	return NewHandoffFlow(agent)
}

// SingleAgentFlow is the standard instructions -> history -> model -> tools loop.
type SingleAgentFlow struct {
	*BaseFlow
}

// NewSingleAgentFlow creates a flow with the default request processors.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	base := NewBaseFlow(agent)
	base.AddRequestProcessor(NewInstructionsProcessor())
	base.AddRequestProcessor(NewContentsProcessor())

	return &SingleAgentFlow{BaseFlow: base}
}

// HandoffFlow extends SingleAgentFlow with the handoff_to_agent tool scoped
// to the agent's current handoff targets.
type HandoffFlow struct {
	*BaseFlow
}

// NewHandoffFlow creates a flow exposing the handoff tool.
func NewHandoffFlow(agent FlowAgent) *HandoffFlow {
	base := NewBaseFlow(agent)
	base.AddRequestProcessor(NewInstructionsProcessor())
	base.AddRequestProcessor(NewContentsProcessor())
	base.AddTool(tool.NewHandoffTool(agent.HandoffTargets()...))

	return &HandoffFlow{BaseFlow: base}
}
