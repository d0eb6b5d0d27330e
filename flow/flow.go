// Package flow provides the execution pipeline of a model-driven agent.
//
// A flow runs the request -> model -> tool loop of a single agent: request
// processors assemble the model request, the model turn is emitted as
// events, requested tools run through a FunctionExecutor, and the loop
// continues until the model answers without tool calls, a tool ends the turn
// (handoff, skip summarization, escalation) or an interrupt pauses the run.
//
// Lifecycle hooks of the agent's hook.Registry are dispatched around the
// invocation, every model call, every tool call and every recorded message.
package flow

import (
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/hook"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

// Flow defines the interface for agent execution flows.
//
// Run drives the agent until its turn ends. Events are emitted through
// InvocationContext.EmitEvent. A paused run returns an *interrupt.Signal.
type Flow interface {
	Run(ic *core.InvocationContext) error
}

// FlowAgent defines what a flow needs from an agent.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions returns the system instructions for the invocation.
	ResolveInstructions(ic *core.InvocationContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() []tool.Tool

	// HandoffTargets lists agents this agent may hand control to.
	HandoffTargets() []tool.HandoffTarget

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// GetOutputKey returns the session state key for saving the final response.
	GetOutputKey() string

	// MaxHistoryMessages returns the maximum number of history messages sent
	// to the model (0 = unlimited).
	MaxHistoryMessages() int

	// Hooks returns the agent's hook registry. It may be nil.
	Hooks() *hook.Registry
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the model request before execution.
	ProcessRequest(ic *core.InvocationContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes each response chunk received from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse may inspect or rewrite the response.
	ProcessResponse(ic *core.InvocationContext, resp *model.Response, agent FlowAgent) error
}
