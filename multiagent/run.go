package multiagent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/hook"
	"github.com/hupe1980/agentgraph/internal/telemetry"
	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/logging"
)

// Orchestrator is implemented by Graph and Swarm.
type Orchestrator interface {
	Name() string
	Kind() string
	Stream(ctx context.Context, task core.Content) (*Run, error)
	Resume(ctx context.Context, responses []interrupt.Response) (*Run, error)
	Invoke(ctx context.Context, task core.Content) (Outcome, error)

	execute(ctx context.Context, st *State, resumed bool, emit func(Event) error) (*Result, error)
}

// Run is one streaming run of an orchestrator.
type Run struct {
	events chan Event
	done   chan struct{}

	outcome Outcome
	err     error
}

// Events delivers multiplexed events in emission order. The channel is
// closed when the run terminates.
func (r *Run) Events() <-chan Event { return r.events }

// Wait blocks until the run terminates and returns its outcome. Events not
// yet received are discarded. The error is reserved for cancellation and
// internal failures such as a failing hook callback; node failures are
// reported in the Result.
func (r *Run) Wait() (Outcome, error) {
	for range r.events {
	}

	<-r.done

	return r.outcome, r.err
}

// CommonOptions are shared by Graph and Swarm.
type CommonOptions struct {
	Name           string
	HookProviders  []hook.Provider
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// EventBuffer sizes the Run's event channel.
	EventBuffer int
}

// orchestration implements the run lifecycle shared by Graph and Swarm:
// single active run, suspension bookkeeping, orchestrator hooks and
// node activation.
type orchestration struct {
	kind        string
	name        string
	hooks       *hook.Registry
	logger      logging.Logger
	telemetry   *telemetry.Telemetry
	eventBuffer int

	initOnce sync.Once

	mu        sync.Mutex
	active    bool
	suspended *State
}

func newOrchestration(kind string, opts CommonOptions) orchestration {
	name := opts.Name
	if name == "" {
		name = kind
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = 64
	}

	return orchestration{
		kind:        kind,
		name:        name,
		hooks:       hook.NewRegistry(opts.HookProviders...),
		logger:      logger,
		telemetry:   telemetry.New(opts.TracerProvider, opts.MeterProvider),
		eventBuffer: buffer,
	}
}

// Name returns the orchestrator name.
func (o *orchestration) Name() string { return o.name }

// Kind returns "graph" or "swarm".
func (o *orchestration) Kind() string { return o.kind }

// Hooks returns the orchestrator's hook registry.
func (o *orchestration) Hooks() *hook.Registry { return o.hooks }

// Suspended reports whether a run waits for interrupt responses.
func (o *orchestration) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended != nil
}

// Pending returns the unanswered interrupts of the suspended run.
func (o *orchestration) Pending() []*interrupt.Interrupt {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.suspended == nil {
		return nil
	}

	return o.suspended.interrupts.Pending()
}

// Reset discards a suspended run.
func (o *orchestration) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.suspended = nil
}

type executeFunc func(ctx context.Context, st *State, resumed bool, emit func(Event) error) (*Result, error)

func (o *orchestration) stream(ctx context.Context, task core.Content, exec executeFunc) (*Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return nil, ErrRunActive
	}

	if o.suspended != nil {
		return nil, ErrRunSuspended
	}

	o.active = true

	return o.launch(ctx, newState(task, nil), false, exec), nil
}

func (o *orchestration) resume(ctx context.Context, responses []interrupt.Response, exec executeFunc) (*Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return nil, ErrRunActive
	}

	if o.suspended == nil {
		return nil, ErrNotSuspended
	}

	if err := o.suspended.interrupts.Resume(responses); err != nil {
		return nil, err
	}

	st := o.suspended
	o.active = true

	return o.launch(ctx, st, true, exec), nil
}

// launch starts the run goroutine. Caller holds o.mu.
func (o *orchestration) launch(ctx context.Context, st *State, resumed bool, exec executeFunc) *Run {
	run := &Run{
		events: make(chan Event, o.eventBuffer),
		done:   make(chan struct{}),
	}

	emit := func(ev Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case run.events <- ev:
			return nil
		}
	}

	go func() {
		defer close(run.done)

		res, err := o.invoke(ctx, st, resumed, emit, exec)

		var suspension *Suspension
		if sig, ok := interrupt.AsSignal(err); ok {
			suspension = &Suspension{Interrupts: sig.Interrupts, Partial: res}
			_ = emit(&InterruptEvent{Interrupts: sig.Interrupts})
		}

		close(run.events)

		o.mu.Lock()
		o.active = false
		if suspension != nil {
			o.suspended = st
		} else {
			o.suspended = nil
			st.interrupts.Deactivate()
		}
		o.mu.Unlock()

		switch {
		case suspension != nil:
			run.outcome = suspension
		case err != nil:
			run.err = err
		default:
			run.outcome = res
		}
	}()

	return run
}

// invoke wraps one execution with orchestrator hooks, a span and metrics.
// It is shared by top-level runs and nested orchestrator nodes.
func (o *orchestration) invoke(ctx context.Context, st *State, resumed bool, emit func(Event) error, exec executeFunc) (res *Result, err error) {
	o.initOnce.Do(func() {
		if err := o.hooks.Invoke(ctx, &hook.MultiAgentInitialized{Orchestrator: o.kind, Name: o.name}); err != nil {
			o.logger.Warn("multiagent.initialized.hook_failed", "orchestrator", o.kind, "name", o.name, "error", err)
		}
	})

	ctx, span := o.telemetry.StartOrchestration(ctx, o.kind, o.name, resumed)
	defer func() {
		spanErr := err
		if spanErr == nil && res != nil && res.Status == StatusFailed {
			spanErr = res.Err
		}
		telemetry.EndSpan(span, spanErr)
	}()

	o.logger.Info("multiagent.run.start", "orchestrator", o.kind, "name", o.name, "run_id", st.RunID(), "resumed", resumed)

	if err := o.hooks.Invoke(ctx, &hook.BeforeMultiAgentInvocation{
		Orchestrator: o.kind,
		Name:         o.name,
		Task:         st.Task(),
		Resumed:      resumed,
	}); err != nil {
		return nil, err
	}

	res, err = exec(ctx, st, resumed, emit)

	status := StatusFailed
	sig, suspended := interrupt.AsSignal(err)

	switch {
	case suspended:
		status = StatusInterrupted
		o.telemetry.Interrupted(ctx, o.kind, len(sig.Interrupts))
		o.logInterrupt(sig)
	case err == nil && res != nil:
		status = res.Status
	}

	after := &hook.AfterMultiAgentInvocation{Orchestrator: o.kind, Name: o.name, Status: status.String(), Err: err}
	if err == nil && res != nil {
		after.Err = res.Err
	}

	if hookErr := o.hooks.Invoke(ctx, after); hookErr != nil && err == nil {
		return res, hookErr
	}

	o.logger.Info("multiagent.run.end", "orchestrator", o.kind, "name", o.name, "run_id", st.RunID(), "status", status.String())

	return res, err
}

type interruptLogger interface {
	LogInterrupt(source string, interruptIDs []string)
}

func (o *orchestration) logInterrupt(sig *interrupt.Signal) {
	ids := make([]string, 0, len(sig.Interrupts))
	for _, i := range sig.Interrupts {
		ids = append(ids, i.ID)
	}

	if l, ok := o.logger.(interruptLogger); ok {
		l.LogInterrupt(o.kind+"/"+o.name, ids)
		return
	}

	o.logger.Info("multiagent.run.interrupted", "orchestrator", o.kind, "interrupts", ids)
}

type nodeLogger interface {
	LogNodeExecution(nodeID, status string, dur time.Duration, err error)
}

// activate runs one node activation with node hooks, lifecycle events,
// a span and metrics. The node is tracked as executing in st while it runs.
// The returned error is fatal for the run.
func (o *orchestration) activate(ctx context.Context, node *Node, input core.Content, st *State, emit func(Event) error) (*NodeResult, error) {
	before := hook.NewBeforeNodeCall(o.kind, node.ID(), st.interrupts)
	if err := o.hooks.Invoke(ctx, before); err != nil {
		if sig, ok := interrupt.AsSignal(err); ok {
			st.setStatus(node.ID(), StatusInterrupted)

			return &NodeResult{
				NodeID:     node.ID(),
				NodeType:   node.Type(),
				Status:     StatusInterrupted,
				Content:    []core.Part{},
				Interrupts: sig.Interrupts,
			}, nil
		}

		return nil, err
	}

	if cancelled, msg := before.Cancelled(); cancelled {
		if msg == "" {
			msg = "cancelled by hook"
		}

		result := &NodeResult{
			NodeID:   node.ID(),
			NodeType: node.Type(),
			Status:   StatusFailed,
			Content:  []core.Part{},
			Err:      errors.Join(ErrNodeCancelled, errors.New(msg)),
		}

		st.setStatus(node.ID(), StatusFailed)

		return result, o.afterNode(ctx, result, emit)
	}

	st.setStatus(node.ID(), StatusExecuting)

	if err := emit(&NodeStartEvent{NodeID: node.ID(), NodeType: node.Type()}); err != nil {
		st.setStatus(node.ID(), StatusFailed)
		return nil, err
	}

	nodeCtx, span := o.telemetry.StartNode(ctx, o.kind, node.ID(), node.Type())
	result := node.Execute(nodeCtx, input, st, emit, o.logger)
	st.setStatus(node.ID(), result.Status)

	spanErr := result.Err
	if result.Status == StatusInterrupted {
		spanErr = &interrupt.Signal{Interrupts: result.Interrupts}
	}
	telemetry.EndSpan(span, spanErr)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return result, o.afterNode(ctx, result, emit)
}

func (o *orchestration) afterNode(ctx context.Context, result *NodeResult, emit func(Event) error) error {
	o.telemetry.NodeExecuted(ctx, o.kind, result.Status.String(), result.Duration)

	if l, ok := o.logger.(nodeLogger); ok {
		l.LogNodeExecution(result.NodeID, result.Status.String(), result.Duration, result.Err)
	} else {
		o.logger.Debug("multiagent.node.complete", "orchestrator", o.kind, "node", result.NodeID, "status", result.Status.String(), "duration_ms", result.Duration.Milliseconds())
	}

	if err := emit(&NodeCompleteEvent{Result: result}); err != nil {
		return err
	}

	return o.hooks.Invoke(ctx, &hook.AfterNodeCall{
		Orchestrator: o.kind,
		NodeID:       result.NodeID,
		Status:       result.Status.String(),
		Err:          result.Err,
	})
}
