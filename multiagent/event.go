package multiagent

import (
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

// Event is the closed set of values streamed by a Run:
//
//   - *NodeStartEvent, *NodeCompleteEvent: lifecycle of one activation
//   - *NodeStreamEvent: an inner event tagged with its node
//   - *AgentEvent: an event produced by an agent (always inside a NodeStreamEvent)
//   - *HandoffEvent: a swarm transfer of control
//   - *InterruptEvent: the run paused for external input
type Event interface {
	isEvent()
}

// AgentEvent carries an event produced by an agent.
type AgentEvent struct {
	core.Event
}

// NodeStreamEvent tags an inner event with the identity of the node that
// produced it. Inner events of nested orchestrators are NodeStreamEvents
// themselves.
type NodeStreamEvent struct {
	NodeID   string
	NodeType string
	Event    Event
}

// NodeStartEvent is emitted before a node activation.
type NodeStartEvent struct {
	NodeID   string
	NodeType string
}

// NodeCompleteEvent is emitted with the result of a node activation.
type NodeCompleteEvent struct {
	Result *NodeResult
}

// HandoffEvent is emitted when a swarm transfers control.
type HandoffEvent struct {
	From    string
	To      string
	Message string
}

// InterruptEvent is emitted when the run pauses.
type InterruptEvent struct {
	Interrupts []*interrupt.Interrupt
}

func (*AgentEvent) isEvent()        {}
func (*NodeStreamEvent) isEvent()   {}
func (*NodeStartEvent) isEvent()    {}
func (*NodeCompleteEvent) isEvent() {}
func (*HandoffEvent) isEvent()      {}
func (*InterruptEvent) isEvent()    {}

// Unwrap strips all NodeStreamEvent envelopes. It returns the node path from
// the outermost to the innermost node and the innermost event.
func Unwrap(ev Event) ([]string, Event) {
	var path []string

	for {
		env, ok := ev.(*NodeStreamEvent)
		if !ok {
			return path, ev
		}

		path = append(path, env.NodeID)
		ev = env.Event
	}
}
