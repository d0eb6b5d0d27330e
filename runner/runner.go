package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/session"
)

var (
	// ErrSessionSuspended is returned by Run while the session waits for
	// interrupt responses.
	ErrSessionSuspended = errors.New("runner: session is suspended; resume it first")

	// ErrNotSuspended is returned by Resume for a session without pending interrupts.
	ErrNotSuspended = errors.New("runner: session has no pending interrupts")

	// ErrSessionBusy is returned when an invocation is already active for the session.
	ErrSessionBusy = errors.New("runner: session already has an active invocation")

	// ErrTooManyInvocations is returned when MaxConcurrentInvocations is reached.
	ErrTooManyInvocations = errors.New("runner: too many concurrent invocations")
)

var _ core.Runner = (*Runner)(nil)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations limits concurrent agent invocations (0 = unlimited).
	MaxConcurrentInvocations int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per invocation (0 = unlimited).
	MaxModelCalls int
	// SessionStore persists conversations.
	SessionStore core.SessionStore
	// Logger receives runner and agent logs.
	Logger logging.Logger
}

// Runner coordinates agent execution: creates invocation contexts, streams
// events, persists history and tracks interrupted sessions. Public methods
// are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int
	sessionStore    core.SessionStore
	logger          logging.Logger
	slots           *semaphore.Weighted

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
	busy       map[string]string
	suspended  map[string]*interrupt.State
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentInvocations: 10,
		EventBufferSize:          100,
		MaxModelCalls:            100,
		SessionStore:             session.NewInMemoryStore(),
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
		busy:            make(map[string]string),
		suspended:       make(map[string]*interrupt.State),
	}

	if opts.MaxConcurrentInvocations > 0 {
		r.slots = semaphore.NewWeighted(int64(opts.MaxConcurrentInvocations))
	}

	return r
}

// Run starts an asynchronous invocation for a new user message.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	r.mu.Lock()
	_, suspended := r.suspended[sessionID]
	r.mu.Unlock()

	if suspended {
		return "", nil, nil, ErrSessionSuspended
	}

	invocationID, err := r.reserve(sessionID)
	if err != nil {
		return "", nil, nil, err
	}

	return r.launch(ctx, sessionID, invocationID, &userContent, interrupt.NewState())
}

// Resume answers pending interrupts of sessionID and continues the paused
// invocation. The session is reserved before the responses are applied, so
// a busy session or a full runner leaves the interrupts unanswered. On a
// validation error the session stays suspended and unchanged.
func (r *Runner) Resume(
	ctx context.Context,
	sessionID string,
	responses []interrupt.Response,
) (string, <-chan core.Event, <-chan error, error) {
	r.mu.Lock()
	state, ok := r.suspended[sessionID]
	r.mu.Unlock()

	if !ok {
		return "", nil, nil, ErrNotSuspended
	}

	invocationID, err := r.reserve(sessionID)
	if err != nil {
		return "", nil, nil, err
	}

	if err := state.Resume(responses); err != nil {
		r.finish(sessionID, invocationID)
		return "", nil, nil, err
	}

	r.logger.Info("runner.resume", "session_id", sessionID, "responses", len(responses))

	return r.launch(ctx, sessionID, invocationID, nil, state)
}

// Pending returns the unanswered interrupts of a suspended session.
func (r *Runner) Pending(sessionID string) []*interrupt.Interrupt {
	r.mu.Lock()
	state, ok := r.suspended[sessionID]
	r.mu.Unlock()

	if !ok {
		return nil
	}

	return state.Pending()
}

// Cancel cancels a running invocation by ID.
func (r *Runner) Cancel(invocationID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[invocationID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}

	cancel()

	return nil
}

// reserve takes a concurrency slot and marks the session busy. Every
// successful reserve is paired with finish.
func (r *Runner) reserve(sessionID string) (string, error) {
	if r.slots != nil && !r.slots.TryAcquire(1) {
		return "", ErrTooManyInvocations
	}

	invocationID := util.NewID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.busy[sessionID]; busy {
		r.release()
		return "", ErrSessionBusy
	}

	r.busy[sessionID] = invocationID

	return invocationID, nil
}

func (r *Runner) launch(
	ctx context.Context,
	sessionID, invocationID string,
	userContent *core.Content,
	state *interrupt.State,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.prepareSession(sessionID, invocationID, userContent)
	if err != nil {
		r.finish(sessionID, invocationID)
		return "", nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[invocationID] = cancel
	r.mu.Unlock()

	content := lastUserContent(sess)
	if userContent != nil {
		content = *userContent
	}

	agentEmit := make(chan core.Event, r.eventBufferSize)
	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	ic := core.NewInvocationContext(
		ctx,
		sessionID,
		invocationID,
		core.AgentInfo{Name: r.agent.Name(), Type: fmt.Sprintf("%T", r.agent)},
		content,
		agentEmit,
		sess,
		func(o *core.InvocationOptions) {
			o.Logger = r.logger
			o.Interrupts = state
			o.MaxModelCalls = r.maxModelCalls
		},
	)

	var agentErr error

	go func() {
		defer close(agentEmit)
		agentErr = r.runAgent(ic)
	}()

	go func() {
		defer func() {
			cancel()
			r.finish(sessionID, invocationID)
			close(eventsCh)
			close(errorsCh)
		}()

		persistErr := r.processEvents(ctx, sessionID, agentEmit, eventsCh)

		err := r.settle(sessionID, state, agentErr)
		if err == nil {
			err = persistErr
		}

		if err != nil {
			errorsCh <- err
		}
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// prepareSession loads the working copy and records the user message.
func (r *Runner) prepareSession(sessionID, invocationID string, userContent *core.Content) (*core.Session, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if userContent == nil {
		return sess, nil
	}

	userEvent := core.NewUserContentEvent(invocationID, userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		return nil, fmt.Errorf("failed to append user event: %w", err)
	}

	sess.AddEvent(userEvent)

	return sess, nil
}

func (r *Runner) runAgent(ic *core.InvocationContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent %s panicked: %v", r.agent.Name(), rec)
		}
	}()

	return r.agent.Run(ic)
}

// settle records or clears the suspension of a session and maps the agent
// error to the terminal error reported to the caller.
func (r *Runner) settle(sessionID string, state *interrupt.State, agentErr error) error {
	if sig, ok := interrupt.AsSignal(agentErr); ok {
		r.mu.Lock()
		r.suspended[sessionID] = state
		r.mu.Unlock()

		ids := make([]string, 0, len(sig.Interrupts))
		for _, i := range sig.Interrupts {
			ids = append(ids, i.ID)
		}

		r.logger.Info("runner.suspended", "session_id", sessionID, "interrupts", ids)

		return sig
	}

	r.mu.Lock()
	delete(r.suspended, sessionID)
	r.mu.Unlock()

	state.Deactivate()

	if agentErr != nil {
		return fmt.Errorf("agent execution failed: %w", agentErr)
	}

	return nil
}

// processEvents persists complete events and forwards every event. After a
// persistence failure or cancellation it keeps draining so the agent never
// blocks on its emit channel.
func (r *Runner) processEvents(
	ctx context.Context,
	sessionID string,
	agentEmit <-chan core.Event,
	eventsCh chan<- core.Event,
) error {
	var persistErr error

	for ev := range agentEmit {
		if persistErr != nil || ctx.Err() != nil {
			continue
		}

		if !ev.IsPartial() {
			if err := r.persist(sessionID, ev); err != nil {
				persistErr = err
				continue
			}
		}

		select {
		case <-ctx.Done():
		case eventsCh <- ev:
			r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID)
		}
	}

	return persistErr
}

func (r *Runner) persist(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
		return fmt.Errorf("failed to append event to session: %w", err)
	}

	if target, ok := ev.Transfer(); ok {
		r.logger.Debug("runner.event.handoff", "target", target, "session_id", sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Debug("runner.event.escalate", "session_id", sessionID)
	}

	return nil
}

func (r *Runner) finish(sessionID, invocationID string) {
	r.mu.Lock()
	delete(r.activeRuns, invocationID)
	if r.busy[sessionID] == invocationID {
		delete(r.busy, sessionID)
	}
	r.mu.Unlock()

	r.release()
}

func (r *Runner) release() {
	if r.slots != nil {
		r.slots.Release(1)
	}
}

// lastUserContent returns the most recent user message of the session.
func lastUserContent(sess *core.Session) core.Content {
	events := sess.GetEvents()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Author == core.RoleUser && events[i].Content != nil {
			return *events[i].Content
		}
	}

	return core.Content{}
}
