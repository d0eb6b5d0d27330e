package agent

import (
	"fmt"

	"github.com/hupe1980/agentgraph/core"
)

// SequentialAgent runs its children in order on one working session, so
// each child sees the answers of the ones before it. The last answer is
// emitted as the sequence's own message.
//
// Branching and fan-out belong in a Graph; a SequentialAgent is the
// lightweight choice for a fixed chain that should appear as one node.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent creates a SequentialAgent.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{BaseAgent: NewBaseAgent(name), children: children}
}

// Snapshot implements core.Snapshotter for all children.
func (s *SequentialAgent) Snapshot() any { return snapshotChildren(s.children) }

// Restore implements core.Snapshotter.
func (s *SequentialAgent) Restore(snapshot any) { restoreChildren(s.children, snapshot) }

// Run implements core.Agent. The first failing child stops the sequence; an
// interrupted child is run again on resume while earlier children are not.
func (s *SequentialAgent) Run(ic *core.InvocationContext) error {
	key := "sequence:" + s.Name() + ":step"

	var last string

	for i := position(ic, key); i < len(s.children); i++ {
		child := s.children[i]

		from := len(ic.Session.GetEvents())
		err := child.Run(ic)

		if isSignal(err) {
			setPosition(ic, key, i)
			return err
		}

		if err != nil {
			setPosition(ic, key, 0)
			return fmt.Errorf("sequence %s step %s: %w", s.Name(), child.Name(), err)
		}

		if out := outcomeSince(ic.Session, from); out.text != "" {
			last = out.text
		}
	}

	setPosition(ic, key, 0)

	return emitResult(ic, s.Name(), last)
}
