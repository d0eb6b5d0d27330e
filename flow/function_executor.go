package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/hook"
	"github.com/hupe1980/agentgraph/internal/telemetry"
	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/tool"
)

// FunctionExecutor executes a batch of function/tool calls, possibly in
// parallel. Implementations must:
//   - Respect ic.Context cancellation
//   - Never panic (recover internally and report the panic as a tool error)
//   - Return one FunctionResponse event per completed call, in call order
//   - Apply ToolContext accumulated actions to the returned events
//
// Calls that raised an interrupt produce no event; their signals are merged
// and returned as the error after every other call of the batch finished.
// Any other error is fatal for the run.
type FunctionExecutor interface {
	Execute(ic *core.InvocationContext, agent FlowAgent, tools map[string]tool.Tool, calls []core.FunctionCall) ([]core.Event, error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool // log a start line per function
	Telemetry      *telemetry.Telemetry
}

type parallelFunctionExecutor struct {
	cfg       FunctionExecutorConfig
	telemetry *telemetry.Telemetry
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	t := cfg.Telemetry
	if t == nil {
		t = telemetry.Default()
	}

	return &parallelFunctionExecutor{cfg: cfg, telemetry: t}
}

type callOutcome struct {
	event  *core.Event
	signal *interrupt.Signal
}

func (e *parallelFunctionExecutor) Execute(
	ic *core.InvocationContext,
	agent FlowAgent,
	tools map[string]tool.Tool,
	calls []core.FunctionCall,
) ([]core.Event, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	outcomes := make([]callOutcome, n)
	batchStart := time.Now()

	if n == 1 {
		out, err := e.executeSingle(ic, agent, tools, calls[0])
		if err != nil {
			return nil, err
		}
		outcomes[0] = out
	} else {
		var g errgroup.Group
		g.SetLimit(maxPar)

		for i, fc := range calls {
			g.Go(func() error {
				if err := ic.Err(); err != nil {
					return err
				}

				out, err := e.executeSingle(ic, agent, tools, fc)
				if err != nil {
					return err
				}

				outcomes[i] = out

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	ic.LogDebug(
		"flow.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	events := make([]core.Event, 0, n)
	signals := make([]*interrupt.Signal, 0)

	for _, out := range outcomes {
		if out.event != nil {
			events = append(events, *out.event)
		}
		if out.signal != nil {
			signals = append(signals, out.signal)
		}
	}

	if sig := interrupt.Merge(signals...); sig != nil {
		return events, sig
	}

	return events, nil
}

// executeSingle runs one call including its tool hooks. The returned error is
// fatal; interrupts are reported through the outcome.
func (e *parallelFunctionExecutor) executeSingle(
	ic *core.InvocationContext,
	agent FlowAgent,
	tools map[string]tool.Tool,
	fc core.FunctionCall,
) (callOutcome, error) {
	hooks := agent.Hooks()
	name := agent.GetName()

	args, argErr := parseArguments(fc.Arguments)

	before := hook.NewBeforeToolCall(name, fc.ID, fc.Name, args, ic.Interrupts)
	if err := hooks.Invoke(ic.Context, before); err != nil {
		if sig, ok := interrupt.AsSignal(err); ok {
			ic.LogInfo("flow.tool.interrupted", "agent", name, "function", fc.Name, "function_call_id", fc.ID)
			return callOutcome{signal: sig}, nil
		}
		return callOutcome{}, fmt.Errorf("before tool call hook for %s: %w", fc.Name, err)
	}

	toolCtx := core.NewToolContext(ic, fc.ID)

	var (
		result any
		err    error
	)

	if cancelled, msg := before.Cancelled(); cancelled {
		if msg == "" {
			msg = "tool call cancelled"
		}
		err = fmt.Errorf("%s", msg)
		ic.LogInfo("flow.tool.cancelled", "agent", name, "function", fc.Name, "function_call_id", fc.ID, "reason", msg)
	} else {
		if e.cfg.LogStartEvents {
			ic.LogInfo("flow.tool.start", "agent", name, "function", fc.Name, "function_call_id", fc.ID)
		}

		_, span := e.telemetry.StartToolCall(ic.Context, name, fc.Name, fc.ID)

		start := time.Now()
		if argErr != nil {
			err = argErr
		} else {
			result, err = e.callTool(ic, agent, tools, toolCtx, fc.Name, before.Arguments)
		}

		telemetry.EndSpan(span, err)

		if sig, ok := interrupt.AsSignal(err); ok {
			ic.LogInfo("flow.tool.interrupted", "agent", name, "function", fc.Name, "function_call_id", fc.ID)
			return callOutcome{signal: sig}, nil
		}

		e.telemetry.ToolCalled(ic.Context, fc.Name, err != nil)
		ic.LogInfo(
			"flow.tool.executed",
			"agent", name,
			"function", fc.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err != nil,
		)
	}

	after := &hook.AfterToolCall{AgentName: name, ToolUseID: fc.ID, ToolName: fc.Name, Result: result, Err: err}
	if hookErr := hooks.Invoke(ic.Context, after); hookErr != nil {
		return callOutcome{}, fmt.Errorf("after tool call hook for %s: %w", fc.Name, hookErr)
	}

	respEv := core.NewFunctionResponseEvent(name, fc.ID, fc.Name, after.Result, err)
	toolCtx.ApplyActions(&respEv)

	return callOutcome{event: &respEv}, nil
}

// callTool looks up and invokes the tool, converting panics into errors.
func (e *parallelFunctionExecutor) callTool(
	ic *core.InvocationContext,
	agent FlowAgent,
	tools map[string]tool.Tool,
	toolCtx *core.ToolContext,
	toolName string,
	args map[string]any,
) (result any, err error) {
	impl, ok := tools[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			ic.LogError("flow.tool.panic", "agent", agent.GetName(), "function", toolName, "recover", r)
		}
	}()

	return impl.Call(toolCtx, args)
}

func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}

	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return args, nil
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
