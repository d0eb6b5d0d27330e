package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/hook"
	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

func newRunContext(t *testing.T, prompt string) *core.InvocationContext {
	t.Helper()

	sess := core.NewSession("s1")
	sess.AddEvent(core.NewUserMessageEvent("inv", prompt))

	return core.NewInvocationContext(context.Background(), "s1", "inv", core.AgentInfo{Name: "test"},
		core.NewTextContent(core.RoleUser, prompt), nil, sess)
}

func weatherTool() tool.Tool {
	return tool.NewFunctionTool("get_weather", "Returns the weather", map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return map[string]any{"city": args["city"], "forecast": "sunny"}, nil
	})
}

func TestModelAgent_Defaults(t *testing.T) {
	a := NewModelAgent("helper", model.NewScriptedModel("m"))

	assert.Equal(t, "helper", a.Name())
	assert.Equal(t, "Agent helper", a.Description())
	assert.False(t, a.IsStreamingEnabled())
	assert.Empty(t, a.HandoffTargets())
	assert.NotNil(t, a.Hooks())

	text, err := a.ResolveInstructions(newRunContext(t, "x"))
	require.NoError(t, err)
	assert.Equal(t, "You are helper, a helpful AI assistant.", text)
}

func TestModelAgent_ToolRegistry(t *testing.T) {
	a := NewModelAgent("helper", model.NewScriptedModel("m"), func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{weatherTool()}
		o.Description = "Knows the weather"
	})

	assert.Equal(t, "Knows the weather", a.Description())
	assert.True(t, a.HasTool("get_weather"))

	a.RegisterTools(tool.NewStateTool(), weatherTool())
	assert.Equal(t, []string{"state_manager", "get_weather"}, a.ListTools())

	assert.True(t, a.UnregisterTool("state_manager"))
	assert.False(t, a.UnregisterTool("state_manager"))
	assert.Equal(t, []string{"get_weather"}, a.ListTools())
}

func TestModelAgent_RunWithTools(t *testing.T) {
	llm := model.NewScriptedModel("m",
		model.ToolTurn("c1", "get_weather", map[string]any{"city": "Berlin"}),
		model.TextTurn("It is sunny in Berlin."),
	)

	a := NewModelAgent("forecaster", llm, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{weatherTool()}
		o.OutputKey = "forecast"
	})

	ic := newRunContext(t, "weather in Berlin?")
	require.NoError(t, a.Run(ic))

	v, ok := ic.Session.GetState("forecast")
	require.True(t, ok)
	assert.Equal(t, "It is sunny in Berlin.", v)
	assert.Len(t, ic.Session.GetEvents(), 4)
}

func TestModelAgent_HandoffTargetsSwitchFlow(t *testing.T) {
	llm := model.NewScriptedModel("m",
		model.ToolTurn("h1", tool.HandoffToolName, map[string]any{"agent_name": "critic"}),
	)

	a := NewModelAgent("writer", llm)
	a.SetHandoffTargets(tool.HandoffTarget{Name: "critic", Description: "Critiques"})

	ic := newRunContext(t, "draft")
	require.NoError(t, a.Run(ic))

	events := ic.Session.GetEvents()
	target, ok := events[len(events)-1].Transfer()
	require.True(t, ok)
	assert.Equal(t, "critic", target)
}

func TestModelAgent_SnapshotRestore(t *testing.T) {
	a := NewModelAgent("helper", model.NewScriptedModel("m"))
	a.SetHandoffTargets(tool.HandoffTarget{Name: "other"})

	snap := a.Snapshot()

	a.RegisterTools(weatherTool())
	a.SetHandoffTargets()

	a.Restore(snap)
	assert.Empty(t, a.ListTools())
	assert.Equal(t, []tool.HandoffTarget{{Name: "other"}}, a.HandoffTargets())

	a.Restore("foreign")
	assert.Len(t, a.HandoffTargets(), 1)
}

type approvalHooks struct{ toolName string }

func (p approvalHooks) RegisterHooks(r hook.Registrar) {
	hook.On(r, func(_ context.Context, ev *hook.BeforeToolCall) error {
		if ev.ToolName != p.toolName {
			return nil
		}

		answer, err := ev.Interrupt("approve-"+ev.ToolName, "approve?")
		if err != nil {
			return err
		}

		if answer != "y" {
			ev.Cancel("rejected by reviewer")
		}

		return nil
	})
}

func TestModelAgent_HookProviderInterrupt(t *testing.T) {
	llm := model.NewScriptedModel("m",
		model.ToolTurn("c1", "get_weather", map[string]any{"city": "Oslo"}),
		model.TextTurn("Could not check the weather."),
	)

	a := NewModelAgent("forecaster", llm, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{weatherTool()}
		o.HookProviders = []hook.Provider{approvalHooks{toolName: "get_weather"}}
	})

	ic := newRunContext(t, "weather in Oslo?")

	err := a.Run(ic)
	sig, ok := interrupt.AsSignal(err)
	require.True(t, ok)
	require.Len(t, sig.Interrupts, 1)

	require.NoError(t, ic.Interrupts.Resume([]interrupt.Response{{InterruptID: sig.Interrupts[0].ID, Response: "n"}}))
	require.NoError(t, a.Run(ic))

	events := ic.Session.GetEvents()
	responses := events[2].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "rejected by reviewer", responses[0].Error)
}

func TestModelAgent_RemoveHookProvider(t *testing.T) {
	llm := model.NewScriptedModel("m",
		model.ToolTurn("c1", "get_weather", map[string]any{"city": "Rome"}),
		model.TextTurn("Sunny."),
	)

	a := NewModelAgent("forecaster", llm, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{weatherTool()}
	})

	h := a.AddHookProvider(approvalHooks{toolName: "get_weather"})
	a.RemoveHookProvider(h)

	require.NoError(t, a.Run(newRunContext(t, "weather in Rome?")))
}

func TestFuncAgent(t *testing.T) {
	a := NewFuncAgent("counter", "Counts runs", func(_ *core.InvocationContext, memory map[string]any) (string, error) {
		n, _ := memory["runs"].(int)
		memory["runs"] = n + 1
		return "counted", nil
	})

	assert.Equal(t, "Counts runs", a.Description())

	ic := newRunContext(t, "count")
	snap := a.Snapshot()

	require.NoError(t, a.Run(ic))
	assert.Equal(t, 1, a.Memory()["runs"])

	msg, ok := ic.Session.LastMessage("counter")
	require.True(t, ok)
	assert.Equal(t, "counted", msg.Text())

	a.Restore(snap)
	assert.Empty(t, a.Memory())
}

func TestFuncAgent_Errors(t *testing.T) {
	boom := errors.New("boom")

	failing := NewFuncAgent("f", "", func(*core.InvocationContext, map[string]any) (string, error) { return "", boom })
	assert.ErrorIs(t, failing.Run(newRunContext(t, "x")), boom)

	silent := NewFuncAgent("s", "", func(*core.InvocationContext, map[string]any) (string, error) { return "", nil })
	assert.ErrorIs(t, silent.Run(newRunContext(t, "x")), ErrNoOutput)

	panicky := NewFuncAgent("p", "", func(*core.InvocationContext, map[string]any) (string, error) { panic("bad") })
	err := panicky.Run(newRunContext(t, "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: bad")

	emitter := NewFuncAgent("e", "", func(ic *core.InvocationContext, _ map[string]any) (string, error) {
		return "", ic.EmitEvent(core.NewMessageEvent("e", "emitted"))
	})
	assert.NoError(t, emitter.Run(newRunContext(t, "x")))
}
