package core

// Agent is the executable unit driven by runners and orchestrator nodes.
//
// Run drives the agent to completion for the request carried by the
// InvocationContext. Every produced event must be sent through
// InvocationContext.EmitEvent. Run returns an *interrupt.Signal (possibly
// wrapped) when the agent pauses for external input; callers detect it with
// interrupt.AsSignal.
//
// Implementations must respect cancellation of InvocationContext.Context.
type Agent interface {
	Name() string
	Description() string
	Run(ic *InvocationContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "func").
type AgentInfo struct{ Name, Type string }

// Snapshotter is implemented by agents that hold conversation or state of
// their own. Orchestrator nodes take a snapshot before executing the agent
// and restore it afterwards, so repeated activations start from the same
// externally visible state.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}
