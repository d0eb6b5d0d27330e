package agent

import (
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/hook"
	"github.com/hupe1980/agentgraph/internal/telemetry"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description        string
	Instruction        Instruction
	EnableStreaming    bool
	OutputKey          string
	MaxHistoryMessages int
	MaxParallelTools   int
	Tools              []tool.Tool
	HookProviders      []hook.Provider
	TracerProvider     trace.TracerProvider
	MeterProvider      metric.MeterProvider
}

// ModelAgent integrates a language model with tools, lifecycle hooks and
// optional handoff targets. Each Run executes one turn through the flow
// package: the model is called until it answers without tool calls, a tool
// ends the turn or an interrupt pauses it.
type ModelAgent struct {
	BaseAgent

	llm                model.Model
	instruction        Instruction
	enableStreaming    bool
	outputKey          string
	maxHistoryMessages int
	maxParallelTools   int
	hooks              *hook.Registry
	telemetry          *telemetry.Telemetry

	mu       sync.RWMutex
	tools    []tool.Tool
	handoffs []tool.HandoffTarget
}

// NewModelAgent creates a new model-based agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		enableStreaming:    opts.EnableStreaming,
		outputKey:          opts.OutputKey,
		maxHistoryMessages: opts.MaxHistoryMessages,
		maxParallelTools:   opts.MaxParallelTools,
		hooks:              hook.NewRegistry(opts.HookProviders...),
		telemetry:          telemetry.New(opts.TracerProvider, opts.MeterProvider),
		tools:              slices.Clone(opts.Tools),
	}

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	return a
}

// RegisterTools adds tools to the agent's capability set. A tool with an
// already registered name replaces the previous one.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range tools {
		a.tools = slices.DeleteFunc(a.tools, func(existing tool.Tool) bool { return existing.Name() == t.Name() })
		a.tools = append(a.tools, t)
	}
}

// UnregisterTool removes a tool. It reports whether the tool was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.tools)
	a.tools = slices.DeleteFunc(a.tools, func(t tool.Tool) bool { return t.Name() == name })

	return len(a.tools) != n
}

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return slices.ContainsFunc(a.tools, func(t tool.Tool) bool { return t.Name() == name })
}

// ListTools returns the names of all registered tools in registration order.
func (a *ModelAgent) ListTools() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.tools))
	for _, t := range a.tools {
		names = append(names, t.Name())
	}
	return names
}

// SetHandoffTargets replaces the agents this agent may hand control to. An
// empty list disables the handoff tool.
func (a *ModelAgent) SetHandoffTargets(targets ...tool.HandoffTarget) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handoffs = slices.Clone(targets)
}

// AddHookProvider registers all callbacks of p; the handle removes them again.
func (a *ModelAgent) AddHookProvider(p hook.Provider) hook.Handle { return a.hooks.AddProvider(p) }

// RemoveHookProvider removes the callbacks registered under h.
func (a *ModelAgent) RemoveHookProvider(h hook.Handle) { a.hooks.Remove(h) }

// modelAgentSnapshot is the mutable configuration captured by Snapshot.
type modelAgentSnapshot struct {
	tools    []tool.Tool
	handoffs []tool.HandoffTarget
}

// Snapshot captures the tool set and handoff targets. Tools and hooks may
// change them while a run is in progress.
func (a *ModelAgent) Snapshot() any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return modelAgentSnapshot{tools: slices.Clone(a.tools), handoffs: slices.Clone(a.handoffs)}
}

// Restore reinstates a value returned by Snapshot. Foreign values are ignored.
func (a *ModelAgent) Restore(snapshot any) {
	s, ok := snapshot.(modelAgentSnapshot)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tools = slices.Clone(s.tools)
	a.handoffs = slices.Clone(s.handoffs)
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the registered tools.
func (a *ModelAgent) GetTools() []tool.Tool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.tools)
}

// HandoffTargets returns the agents this agent may hand control to.
func (a *ModelAgent) HandoffTargets() []tool.HandoffTarget {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.handoffs)
}

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// GetOutputKey returns the session state key for saving responses.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns the maximum number of history messages sent to the model.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// Hooks returns the agent's hook registry.
func (a *ModelAgent) Hooks() *hook.Registry { return a.hooks }

// ResolveInstructions produces the system prompt for the invocation.
func (a *ModelAgent) ResolveInstructions(ic *core.InvocationContext) (string, error) {
	return a.instruction.Resolve(ic)
}

// configurableFlow is met by every flow built on flow.BaseFlow.
type configurableFlow interface {
	SetTelemetry(t *telemetry.Telemetry)
	SetFunctionExecutor(e flow.FunctionExecutor)
}

// Run implements core.Agent. The flow is selected per run because handoff
// targets may be assigned after construction.
func (a *ModelAgent) Run(ic *core.InvocationContext) error {
	ic.LogDebug("agent.run.start", "agent", a.Name(), "invocation", ic.InvocationID)

	fl := flow.NewSelector().SelectFlow(a)
	if cf, ok := fl.(configurableFlow); ok {
		cf.SetTelemetry(a.telemetry)
		cf.SetFunctionExecutor(flow.NewParallelFunctionExecutor(flow.FunctionExecutorConfig{
			MaxParallel: a.maxParallelTools,
			Telemetry:   a.telemetry,
		}))
	}

	ic.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	if err := fl.Run(ic); err != nil {
		return err
	}

	ic.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}
