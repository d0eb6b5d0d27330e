package core

import (
	"context"
	"errors"

	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/logging"
)

// InterruptKindToolContext is the interrupt kind used by tools raising an
// interrupt directly.
const InterruptKindToolContext = "ToolContext"

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked by an agent. It accumulates EventActions (state
// deltas, handoffs, escalation signals) without directly mutating the
// underlying session until applied to the function response event.
type ToolContext struct {
	ic             *InvocationContext
	functionCallID string
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent InvocationContext
// and the tool-use id of the call being executed.
func NewToolContext(ic *InvocationContext, functionCallID string) *ToolContext {
	la := ic.loggerAdapter
	if la == nil {
		la = newLoggerAdapter(nil)
	}

	return &ToolContext{
		ic:             ic,
		functionCallID: functionCallID,
		loggerAdapter:  la,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ic.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.ic.SessionID }

// InvocationID returns the invocation ID associated with the tool invocation.
func (tc *ToolContext) InvocationID() string { return tc.ic.InvocationID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the tool-use id of the call.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.ic.Agent.Name }

// GetState retrieves the state associated with the given key.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.ic.GetState(k) }

// SetState records a state mutation in the local EventActions delta. It is
// applied to the session when the function response event is emitted.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}

	tc.eventActions.StateDelta[k] = v
}

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization ends the agent turn with the tool response.
func (tc *ToolContext) SkipSummarization() {
	b := true
	tc.eventActions.SkipSummarization = &b
}

// TransferToAgent signals orchestration to handoff control to another agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.Handoff(name, "", nil)
}

// Handoff requests a transfer to name with a message and context for the
// receiving agent.
func (tc *ToolContext) Handoff(name, message string, handoffContext map[string]any) {
	tc.eventActions.TransferToAgent = &name
	tc.eventActions.TransferMessage = message
	tc.eventActions.TransferContext = handoffContext
	tc.SkipSummarization()

	tc.LogInfo("tool.handoff.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.functionCallID)
}

// Escalate requests escalation (e.g., to a higher-skill agent or human).
func (tc *ToolContext) Escalate() {
	b := true
	tc.eventActions.Escalate = &b

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// Interrupt pauses the run from inside the tool. After a resume the same call
// returns the supplied response.
func (tc *ToolContext) Interrupt(name string, reason any, opts ...interrupt.RaiseOption) (any, error) {
	if tc.ic.Interrupts == nil {
		return nil, errors.New("interrupts are not tracked for this invocation")
	}

	return tc.ic.Interrupts.Raise(InterruptKindToolContext, tc.functionCallID, name, reason, opts...)
}

// GetSessionHistory returns conversation history (filtered) for context.
func (tc *ToolContext) GetSessionHistory() []Event { return tc.ic.GetSessionHistory() }

// ApplyActions merges accumulated EventActions into the provided event.
func (tc *ToolContext) ApplyActions(ev *Event) {
	ev.Actions.merge(tc.eventActions)

	if target, ok := ev.Transfer(); ok {
		tc.LogDebug("tool.handoff.applied", "from_agent", tc.AgentName(), "to_agent", target, "function_call_id", tc.functionCallID)
	}
}
