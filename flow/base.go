package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/hook"
	"github.com/hupe1980/agentgraph/internal/telemetry"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

// ErrEmptyModelResponse is returned when a model finished without a final response.
var ErrEmptyModelResponse = errors.New("model returned no final response")

// BaseFlow is a single‑agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	extraTools         []tool.Tool
	executor           FunctionExecutor
	telemetry          *telemetry.Telemetry
}

// NewBaseFlow creates a new basic single-agent flow.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:     agent,
		executor:  NewParallelFunctionExecutor(FunctionExecutorConfig{}),
		telemetry: telemetry.Default(),
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// AddTool exposes an additional flow-provided tool next to the agent's own tools.
func (f *BaseFlow) AddTool(t tool.Tool) {
	f.extraTools = append(f.extraTools, t)
}

// SetFunctionExecutor replaces the executor used for tool batches.
func (f *BaseFlow) SetFunctionExecutor(e FunctionExecutor) {
	f.executor = e
}

// SetTelemetry replaces the tracer and meter used for invocation and model spans.
func (f *BaseFlow) SetTelemetry(t *telemetry.Telemetry) {
	if t != nil {
		f.telemetry = t
	}
}

// Run drives the agent's turn. Function calls left unanswered by an earlier,
// interrupted turn are executed first, reusing their tool-use ids so answered
// interrupts are found again.
func (f *BaseFlow) Run(ic *core.InvocationContext) (err error) {
	hooks := f.agent.Hooks()
	name := f.agent.GetName()

	ctx, span := f.telemetry.StartInvocation(ic.Context, name, ic.InvocationID)
	defer func() { telemetry.EndSpan(span, err) }()

	parent := ic.Context
	ic.Context = ctx
	defer func() { ic.Context = parent }()

	if err := hooks.Invoke(ic.Context, &hook.BeforeInvocation{AgentName: name, InvocationID: ic.InvocationID}); err != nil {
		return err
	}

	defer func() {
		afterErr := hooks.Invoke(ic.Context, &hook.AfterInvocation{AgentName: name, InvocationID: ic.InvocationID, Err: err})
		if err == nil {
			err = afterErr
		}
	}()

	tools := f.resolveTools()
	registry := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}
	defs := tool.Definitions(tools)

	if pending := ic.Session.PendingFunctionCalls(); len(pending) > 0 {
		ic.LogDebug("flow.resume.pending_calls", "agent", name, "count", len(pending))

		done, err := f.executeCalls(ic, registry, pending)
		if err != nil || done {
			return err
		}
	}

	for {
		if err := ic.Err(); err != nil {
			return err
		}

		calls, err := f.runOnce(ic, defs)
		if err != nil {
			return err
		}

		if len(calls) == 0 {
			return nil
		}

		done, err := f.executeCalls(ic, registry, calls)
		if err != nil || done {
			return err
		}
	}
}

func (f *BaseFlow) resolveTools() []tool.Tool {
	tools := make([]tool.Tool, 0, len(f.agent.GetTools())+len(f.extraTools))
	tools = append(tools, f.agent.GetTools()...)
	tools = append(tools, f.extraTools...)
	return tools
}

// emit records ev and notifies MessageAdded hooks for complete events.
func (f *BaseFlow) emit(ic *core.InvocationContext, ev core.Event) error {
	if err := ic.EmitEvent(ev); err != nil {
		return err
	}

	if ev.IsPartial() {
		return nil
	}

	return f.agent.Hooks().Invoke(ic.Context, &hook.MessageAdded{AgentName: f.agent.GetName(), Event: ev})
}

// executeCalls runs a batch of function calls and emits their responses. It
// reports done when a response ends the turn (handoff, skip summarization,
// escalation). Interrupt signals are returned after all completed responses
// were emitted.
func (f *BaseFlow) executeCalls(ic *core.InvocationContext, registry map[string]tool.Tool, calls []core.FunctionCall) (bool, error) {
	events, execErr := f.executor.Execute(ic, f.agent, registry, calls)

	done := false
	for _, ev := range events {
		if err := f.emit(ic, ev); err != nil {
			return false, err
		}

		if ev.IsFinalResponse() || (ev.Actions.Escalate != nil && *ev.Actions.Escalate) {
			done = true
		}
	}

	return done, execErr
}

// runOnce performs one model turn and returns the function calls it requested.
func (f *BaseFlow) runOnce(ic *core.InvocationContext, defs []model.ToolDefinition) ([]core.FunctionCall, error) {
	hooks := f.agent.Hooks()
	name := f.agent.GetName()

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}
	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(ic, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	if len(defs) > 0 {
		req.Tools = defs
	}

	if ic.Limiter != nil {
		if err := ic.Limiter.Increment(); err != nil {
			return nil, err
		}
	}

	llm := f.agent.GetLLM()
	if llm == nil {
		return nil, fmt.Errorf("agent %s has no model", name)
	}

	modelName := llm.Info().Name

	if err := hooks.Invoke(ic.Context, &hook.BeforeModelCall{AgentName: name, ModelName: modelName}); err != nil {
		return nil, err
	}

	ctx, span := f.telemetry.StartModelCall(ic.Context, name, modelName)
	start := time.Now()

	respCh, errCh := llm.Generate(ctx, *req)

	final, err := f.receive(ic, respCh, errCh)
	if err == nil && final == nil {
		err = ErrEmptyModelResponse
	}

	telemetry.EndSpan(span, err)

	after := &hook.AfterModelCall{AgentName: name, ModelName: modelName, Err: err}
	if final != nil {
		after.FinishReason = final.FinishReason
		if final.Usage != nil {
			after.Usage = *final.Usage
			f.telemetry.TokensUsed(ic.Context, modelName, *final.Usage)
		}
	}

	if hookErr := hooks.Invoke(ic.Context, after); hookErr != nil && err == nil {
		err = hookErr
	}

	ic.LogDebug("flow.model.call", "agent", name, "model", modelName, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)

	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelName, err)
	}

	ev := core.NewEvent(ic.InvocationID, name)
	content := final.Content
	if content.Role == "" {
		content.Role = core.RoleAssistant
	}
	ev.Content = &content
	ev.Usage = final.Usage

	calls := ev.GetFunctionCalls()
	if len(calls) == 0 {
		complete := true
		ev.TurnComplete = &complete

		if key := f.agent.GetOutputKey(); key != "" {
			ic.SetState(key, content.Text())
		}
	}

	if err := f.emit(ic, ev); err != nil {
		return nil, err
	}

	return calls, nil
}

// receive relays partial chunks and returns the final response.
func (f *BaseFlow) receive(ic *core.InvocationContext, respCh <-chan model.Response, errCh <-chan error) (*model.Response, error) {
	var final *model.Response

	for resp := range respCh {
		for _, processor := range f.responseProcessors {
			if err := processor.ProcessResponse(ic, &resp, f.agent); err != nil {
				return nil, fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
			}
		}

		if !resp.Partial {
			r := resp
			final = &r
			continue
		}

		ev := core.NewEvent(ic.InvocationID, f.agent.GetName())
		content := resp.Content
		partial := true
		ev.Content = &content
		ev.Partial = &partial

		if err := f.emit(ic, ev); err != nil {
			return nil, err
		}
	}

	if err := <-errCh; err != nil {
		return nil, err
	}

	return final, nil
}
