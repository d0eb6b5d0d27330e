package multiagent

import (
	"strings"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

// Status is the lifecycle outcome of a node or a run.
type Status string

const (
	StatusPending     Status = "pending"
	StatusExecuting   Status = "executing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) String() string { return string(s) }

// Handoff is a node's request to transfer control to another node.
type Handoff struct {
	Target  string
	Message string
	Context map[string]any
}

// NodeResult records the outcome of one node activation. Err is set iff
// Status is failed; Interrupts is set iff Status is interrupted.
type NodeResult struct {
	NodeID     string
	NodeType   string
	Status     Status
	Duration   time.Duration
	Content    []core.Part
	Err        error
	Usage      core.Usage
	Handoff    *Handoff
	Interrupts []*interrupt.Interrupt
	// Nested is the result of a nested orchestrator run.
	Nested *Result
}

// DurationSeconds reports the duration in seconds.
func (r *NodeResult) DurationSeconds() float64 { return r.Duration.Seconds() }

// Text concatenates the text parts of the content.
func (r *NodeResult) Text() string {
	var sb strings.Builder
	for _, p := range r.Content {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}
