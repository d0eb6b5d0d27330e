package hook

import (
	"errors"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

// Interrupt kinds used to derive deterministic interrupt ids.
const (
	InterruptKindToolCall = "BeforeToolCallEvent"
	InterruptKindNodeCall = "BeforeNodeCallEvent"
)

// ErrInterruptsUnavailable is returned when an event is raised outside of a
// run that tracks interrupts.
var ErrInterruptsUnavailable = errors.New("hook: interrupts are not available for this event")

// interruptible is embedded by events that may pause the run or cancel the
// pending call.
type interruptible struct {
	state     *interrupt.State
	kind      string
	toolUseID string

	cancelled     bool
	cancelMessage string
}

// Interrupt pauses the run until a response for name is supplied. Once
// resumed, the same call returns the response instead of pausing again.
func (e *interruptible) Interrupt(name string, reason any, opts ...interrupt.RaiseOption) (any, error) {
	if e.state == nil {
		return nil, ErrInterruptsUnavailable
	}

	return e.state.Raise(e.kind, e.toolUseID, name, reason, opts...)
}

// Cancel skips the pending call; msg is reported in its place.
func (e *interruptible) Cancel(msg string) {
	e.cancelled = true
	e.cancelMessage = msg
}

// Cancelled reports whether a callback cancelled the call.
func (e *interruptible) Cancelled() (bool, string) { return e.cancelled, e.cancelMessage }

// BeforeInvocation fires when an agent starts handling a request.
type BeforeInvocation struct {
	AgentName    string
	InvocationID string
}

func (*BeforeInvocation) Kind() Kind    { return KindBeforeInvocation }
func (*BeforeInvocation) IsAfter() bool { return false }

// AfterInvocation fires when an agent finished, successfully or not.
type AfterInvocation struct {
	AgentName    string
	InvocationID string
	Err          error
}

func (*AfterInvocation) Kind() Kind    { return KindAfterInvocation }
func (*AfterInvocation) IsAfter() bool { return true }

// BeforeModelCall fires before each model request.
type BeforeModelCall struct {
	AgentName string
	ModelName string
}

func (*BeforeModelCall) Kind() Kind    { return KindBeforeModelCall }
func (*BeforeModelCall) IsAfter() bool { return false }

// AfterModelCall fires after a model request completed.
type AfterModelCall struct {
	AgentName    string
	ModelName    string
	FinishReason string
	Usage        core.Usage
	Err          error
}

func (*AfterModelCall) Kind() Kind    { return KindAfterModelCall }
func (*AfterModelCall) IsAfter() bool { return true }

// BeforeToolCall fires before a tool executes. Callbacks may rewrite
// Arguments, cancel the call or raise an interrupt.
type BeforeToolCall struct {
	interruptible

	AgentName string
	ToolUseID string
	ToolName  string
	Arguments map[string]any
}

// NewBeforeToolCall builds the event; state may be nil when interrupts are
// not tracked.
func NewBeforeToolCall(agentName, toolUseID, toolName string, args map[string]any, state *interrupt.State) *BeforeToolCall {
	return &BeforeToolCall{
		interruptible: interruptible{state: state, kind: InterruptKindToolCall, toolUseID: toolUseID},
		AgentName:     agentName,
		ToolUseID:     toolUseID,
		ToolName:      toolName,
		Arguments:     args,
	}
}

func (*BeforeToolCall) Kind() Kind    { return KindBeforeToolCall }
func (*BeforeToolCall) IsAfter() bool { return false }

// AfterToolCall fires after a tool returned. Callbacks may replace Result.
type AfterToolCall struct {
	AgentName string
	ToolUseID string
	ToolName  string
	Result    any
	Err       error
}

func (*AfterToolCall) Kind() Kind    { return KindAfterToolCall }
func (*AfterToolCall) IsAfter() bool { return true }

// MessageAdded fires for every complete event appended to an agent's
// conversation.
type MessageAdded struct {
	AgentName string
	Event     core.Event
}

func (*MessageAdded) Kind() Kind    { return KindMessageAdded }
func (*MessageAdded) IsAfter() bool { return false }

// MultiAgentInitialized fires once per orchestrator before its first run.
type MultiAgentInitialized struct {
	Orchestrator string
	Name         string
}

func (*MultiAgentInitialized) Kind() Kind    { return KindMultiAgentInitialized }
func (*MultiAgentInitialized) IsAfter() bool { return false }

// BeforeMultiAgentInvocation fires when an orchestrator run starts or resumes.
type BeforeMultiAgentInvocation struct {
	Orchestrator string
	Name         string
	Task         core.Content
	Resumed      bool
}

func (*BeforeMultiAgentInvocation) Kind() Kind    { return KindBeforeMultiAgentInvocation }
func (*BeforeMultiAgentInvocation) IsAfter() bool { return false }

// AfterMultiAgentInvocation fires when an orchestrator run completes, fails
// or suspends.
type AfterMultiAgentInvocation struct {
	Orchestrator string
	Name         string
	Status       string
	Err          error
}

func (*AfterMultiAgentInvocation) Kind() Kind    { return KindAfterMultiAgentInvocation }
func (*AfterMultiAgentInvocation) IsAfter() bool { return true }

// BeforeNodeCall fires before an orchestrator activates a node. Callbacks may
// cancel the activation or raise an interrupt keyed by the node id.
type BeforeNodeCall struct {
	interruptible

	Orchestrator string
	NodeID       string
}

// NewBeforeNodeCall builds the event.
func NewBeforeNodeCall(orchestrator, nodeID string, state *interrupt.State) *BeforeNodeCall {
	return &BeforeNodeCall{
		interruptible: interruptible{state: state, kind: InterruptKindNodeCall, toolUseID: nodeID},
		Orchestrator:  orchestrator,
		NodeID:        nodeID,
	}
}

func (*BeforeNodeCall) Kind() Kind    { return KindBeforeNodeCall }
func (*BeforeNodeCall) IsAfter() bool { return false }

// AfterNodeCall fires after a node activation produced its result.
type AfterNodeCall struct {
	Orchestrator string
	NodeID       string
	Status       string
	Err          error
}

func (*AfterNodeCall) Kind() Kind    { return KindAfterNodeCall }
func (*AfterNodeCall) IsAfter() bool { return true }
