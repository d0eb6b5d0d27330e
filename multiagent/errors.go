package multiagent

import (
	"errors"
	"fmt"
)

var (
	// ErrRunActive is returned when a run is started while another run of
	// the same orchestrator is still in progress.
	ErrRunActive = errors.New("multiagent: a run is already active")

	// ErrRunSuspended is returned by Stream while the previous run waits for
	// interrupt responses. Resume it or discard it with Reset.
	ErrRunSuspended = errors.New("multiagent: the previous run is suspended")

	// ErrNotSuspended is returned by Resume when there is nothing to resume.
	ErrNotSuspended = errors.New("multiagent: no suspended run")

	// ErrMaxNodeExecutions ends a graph run that still had runnable nodes.
	ErrMaxNodeExecutions = errors.New("multiagent: maximum node executions reached")

	// ErrMaxHandoffs ends a swarm run that exceeded its handoff budget.
	ErrMaxHandoffs = errors.New("multiagent: maximum handoffs reached")

	// ErrMaxIterations ends a swarm run that exceeded its activation budget.
	ErrMaxIterations = errors.New("multiagent: maximum iterations reached")

	// ErrRepetitiveHandoff ends a swarm run ping-ponging between few members.
	ErrRepetitiveHandoff = errors.New("multiagent: repetitive handoff detected")

	// ErrUnknownHandoffTarget is reported when a node hands off to a node
	// that is not a member of the swarm.
	ErrUnknownHandoffTarget = errors.New("multiagent: unknown handoff target")

	// ErrNodeCancelled is reported for a node whose activation was cancelled
	// by a BeforeNodeCall hook.
	ErrNodeCancelled = errors.New("multiagent: node cancelled")
)

// ConfigError reports an invalid orchestrator configuration.
type ConfigError struct {
	Orchestrator string
	Message      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %s", e.Orchestrator, e.Message)
}

func configErrorf(orchestrator, format string, args ...any) *ConfigError {
	return &ConfigError{Orchestrator: orchestrator, Message: fmt.Sprintf(format, args...)}
}
