package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/core"
)

// LoopAgentOptions configures a LoopAgent.
type LoopAgentOptions struct {
	Description string
	// MaxIterations bounds the number of child runs. Defaults to 10.
	MaxIterations int
	// Interval is waited between iterations.
	Interval time.Duration
	// ContinueOnError keeps looping after a failed iteration. Interrupts
	// always stop the loop.
	ContinueOnError bool
	// Until stops the loop once it returns true for an iteration's answer.
	Until func(text string) bool
}

// LoopAgent runs one child repeatedly on the same working session until
// the child escalates, Until accepts its answer or MaxIterations is
// reached. The last answer is emitted as the loop's own message, which makes
// a LoopAgent usable as a refinement step inside a Graph node.
type LoopAgent struct {
	BaseAgent
	child core.Agent
	opts  LoopAgentOptions
}

// NewLoopAgent creates a LoopAgent.
func NewLoopAgent(name string, child core.Agent, optFns ...func(o *LoopAgentOptions)) *LoopAgent {
	opts := LoopAgentOptions{MaxIterations: 10}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}

	a := &LoopAgent{BaseAgent: NewBaseAgent(name), child: child, opts: opts}
	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	return a
}

// Snapshot implements core.Snapshotter for the child.
func (l *LoopAgent) Snapshot() any { return snapshotChildren([]core.Agent{l.child}) }

// Restore implements core.Snapshotter.
func (l *LoopAgent) Restore(snapshot any) { restoreChildren([]core.Agent{l.child}, snapshot) }

// Run implements core.Agent. A resumed run continues at the interrupted
// iteration.
func (l *LoopAgent) Run(ic *core.InvocationContext) error {
	key := "loop:" + l.Name() + ":iteration"

	var last string

	for i := position(ic, key); i < l.opts.MaxIterations; i++ {
		if err := ic.Err(); err != nil {
			return err
		}

		ic.LogDebug("agent.loop.iteration", "agent", l.Name(), "iteration", i+1)

		from := len(ic.Session.GetEvents())
		err := l.child.Run(ic)

		if isSignal(err) {
			setPosition(ic, key, i)
			return err
		}

		out := outcomeSince(ic.Session, from)
		if out.text != "" {
			last = out.text
		}

		if err != nil {
			if !l.opts.ContinueOnError {
				setPosition(ic, key, 0)
				return fmt.Errorf("loop %s iteration %d: %w", l.Name(), i+1, err)
			}

			ic.LogWarn("agent.loop.iteration_failed", "agent", l.Name(), "iteration", i+1, "error", err)
		}

		if out.escalated {
			ic.LogInfo("agent.loop.escalated", "agent", l.Name(), "iteration", i+1)
			break
		}

		if l.opts.Until != nil && out.text != "" && l.opts.Until(out.text) {
			break
		}

		if l.opts.Interval > 0 && i < l.opts.MaxIterations-1 {
			select {
			case <-ic.Done():
				return ic.Err()
			case <-time.After(l.opts.Interval):
			}
		}
	}

	setPosition(ic, key, 0)

	return emitResult(ic, l.Name(), last)
}
