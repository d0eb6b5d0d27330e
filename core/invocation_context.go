package core

import (
	"context"
	"maps"

	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/logging"
)

// InvocationContext carries execution state & helpers for an agent run.
// It encapsulates the mutable, per-invocation execution scope passed to an
// Agent's Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, InvocationID, Agent info)
//   - Input user Content
//   - The emission channel read by the runner or orchestrator node
//   - A working Session that EmitEvent keeps in sync with emitted events
//   - The run's interrupt State used by hooks and tools to pause the run
//   - A per-run model call limiter
//
// State mutations performed via SetState accumulate in StateDelta until the
// next EmitEvent attaches them to an event.
type InvocationContext struct {
	Context      context.Context
	SessionID    string
	InvocationID string
	Agent        AgentInfo
	UserContent  Content
	Emit         chan<- Event
	Session      *Session
	StateDelta   map[string]any
	Branch       string
	Interrupts   *interrupt.State
	Limiter      *ModelLimiter

	*loggerAdapter
}

// InvocationOptions configures optional InvocationContext collaborators.
type InvocationOptions struct {
	Logger        logging.Logger
	Interrupts    *interrupt.State
	MaxModelCalls int
	Branch        string
}

// NewInvocationContext constructs an InvocationContext. A nil session is
// replaced by an empty one; a missing interrupt state is created so hooks can
// always raise.
func NewInvocationContext(
	ctx context.Context,
	sessionID, invocationID string,
	agent AgentInfo,
	userContent Content,
	emit chan<- Event,
	sess *Session,
	optFns ...func(o *InvocationOptions),
) *InvocationContext {
	opts := InvocationOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if sess == nil {
		sess = NewSession(sessionID)
	}

	if opts.Interrupts == nil {
		opts.Interrupts = interrupt.NewState()
	}

	return &InvocationContext{
		Context:       ctx,
		SessionID:     sessionID,
		InvocationID:  invocationID,
		Agent:         agent,
		UserContent:   userContent,
		Emit:          emit,
		Session:       sess,
		StateDelta:    map[string]any{},
		Branch:        opts.Branch,
		Interrupts:    opts.Interrupts,
		Limiter:       NewModelLimiter(opts.MaxModelCalls),
		loggerAdapter: newLoggerAdapter(opts.Logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (ic *InvocationContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ic *InvocationContext) Err() error { return ic.Context.Err() }

// GetState returns a staged (delta) value if present, else the session value.
func (ic *InvocationContext) GetState(k string) (any, bool) {
	if v, ok := ic.StateDelta[k]; ok {
		return v, true
	}

	return ic.Session.GetState(k)
}

// SetState stages a state mutation in the in-memory delta buffer.
func (ic *InvocationContext) SetState(k string, v any) { ic.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (ic *InvocationContext) ApplyStateDelta(d map[string]any) { maps.Copy(ic.StateDelta, d) }

// GetSessionHistory returns the conversation history of the working session.
func (ic *InvocationContext) GetSessionHistory() []Event {
	return ic.Session.GetConversationHistory()
}

// WithAgent returns a shallow copy bound to another agent identity. The
// session, emit channel and interrupt state are shared.
func (ic *InvocationContext) WithAgent(info AgentInfo) *InvocationContext {
	c := *ic
	c.Agent = info
	c.StateDelta = map[string]any{}

	return &c
}

// EmitEvent merges pending StateDelta into complete events, records them
// in the working session and sends the event on the Emit channel. If
// the context is cancelled before emission it returns the cancellation error.
func (ic *InvocationContext) EmitEvent(ev Event) error {
	if len(ic.StateDelta) > 0 && !ev.IsPartial() {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}

		maps.Copy(ev.Actions.StateDelta, ic.StateDelta)
	}

	if ev.InvocationID == "" {
		ev.InvocationID = ic.InvocationID
	}

	if ic.Branch != "" && ev.Branch == nil {
		b := ic.Branch
		ev.Branch = &b
	}

	if !ev.IsPartial() {
		ic.Session.ApplyStateDelta(ev.Actions.StateDelta)
		ic.Session.AddEvent(ev)
		ic.StateDelta = map[string]any{}
	}

	if ic.Emit == nil {
		return nil
	}

	select {
	case <-ic.Context.Done():
		return ic.Context.Err()
	case ic.Emit <- ev:
	}

	return nil
}
