package core

import (
	"context"

	"github.com/hupe1980/agentgraph/interrupt"
)

// Runner defines the contract for executing a root agent within a
// conversational session.
//
// Semantics & Guarantees:
//   - Event Ordering: events of one invocation are delivered in the order the
//     agent produced them.
//   - Channel Lifecycle: the events channel is closed after the invocation
//     completes; the error channel carries at most one terminal error (an
//     *interrupt.Signal when the agent paused) and then closes.
//   - Cancellation: context cancellation or Cancel(invocationID) stops the run.
type Runner interface {
	// Run starts an asynchronous invocation bound to sessionID.
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Resume answers the pending interrupts of sessionID and continues the
	// paused invocation.
	Resume(ctx context.Context, sessionID string, responses []interrupt.Response) (string, <-chan Event, <-chan error, error)

	// Cancel requests cooperative termination of an in‑flight invocation.
	Cancel(invocationID string) error
}
