package multiagent

import (
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

// Outcome is the terminal value of a run: *Result or *Suspension.
type Outcome interface {
	isOutcome()
}

// Result summarizes a finished run.
type Result struct {
	Status         Status
	Duration       time.Duration
	ExecutionCount int
	// NodeHistory lists activations in order; a node revisited by a swarm
	// appears once per activation.
	NodeHistory []string
	// Results holds the latest result of every activated node.
	Results map[string]*NodeResult
	// Usage accumulates token usage over all activations.
	Usage core.Usage
	// Err is set when Status is failed.
	Err error
}

// ExecutionTimeMs reports the duration in milliseconds.
func (r *Result) ExecutionTimeMs() int64 { return r.Duration.Milliseconds() }

// Output returns the result of the last activation, if any.
func (r *Result) Output() (*NodeResult, bool) {
	if len(r.NodeHistory) == 0 {
		return nil, false
	}

	nr, ok := r.Results[r.NodeHistory[len(r.NodeHistory)-1]]
	return nr, ok
}

// Text returns the text output of the last activation.
func (r *Result) Text() string {
	if nr, ok := r.Output(); ok {
		return nr.Text()
	}
	return ""
}

// Suspension is the outcome of a paused run. Partial reflects the progress
// made before the pause.
type Suspension struct {
	Interrupts []*interrupt.Interrupt
	Partial    *Result
}

// InterruptIDs lists the ids of the pending interrupts.
func (s *Suspension) InterruptIDs() []string {
	ids := make([]string, 0, len(s.Interrupts))
	for _, i := range s.Interrupts {
		ids = append(ids, i.ID)
	}
	return ids
}

func (*Result) isOutcome()     {}
func (*Suspension) isOutcome() {}
