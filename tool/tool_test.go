package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

func dummyInvocationContext() *core.InvocationContext {
	return core.NewInvocationContext(
		context.Background(),
		"sess-1", "inv-1",
		core.AgentInfo{Name: "Agent", Type: "test"},
		core.Content{},
		nil,
		core.NewSession("sess-1"),
	)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	tc := core.NewToolContext(dummyInvocationContext(), "fc1")
	result, err := sumTool.Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(core.NewToolContext(dummyInvocationContext(), "fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(core.NewToolContext(dummyInvocationContext(), "fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestFunctionTool_PanicBecomesToolError(t *testing.T) {
	panicky := NewFunctionTool("panicky", "Panics", nil, func(*core.ToolContext, map[string]any) (any, error) {
		panic("nil map")
	})

	_, err := panicky.Call(core.NewToolContext(dummyInvocationContext(), "fc4"), nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodePanic, toolErr.Code)
	assert.Contains(t, toolErr.Message, "nil map")
}

func TestTypedTool(t *testing.T) {
	type lookup struct {
		City string `json:"city" description:"city name"`
		Days int    `json:"days,omitempty"`
	}

	forecast := NewTypedTool("forecast", "Forecast", func(_ *core.ToolContext, args lookup) (any, error) {
		return fmt.Sprintf("%s/%d", args.City, args.Days), nil
	})

	assert.Equal(t, []string{"city"}, forecast.Parameters()["required"])

	tc := core.NewToolContext(dummyInvocationContext(), "fc5")

	got, err := forecast.Call(tc, map[string]any{"city": "Oslo", "days": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, "Oslo/3", got)

	_, err = forecast.Call(tc, map[string]any{"city": 7})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_InterruptPassesThrough(t *testing.T) {
	ic := dummyInvocationContext()
	approve := NewFunctionTool("approve", "Ask for approval", map[string]any{"type": "object"},
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			answer, err := tc.Interrupt("approval", "delete everything?")
			if err != nil {
				return nil, err
			}
			return answer, nil
		})

	_, err := approve.Call(core.NewToolContext(ic, "fc4"), map[string]any{})
	sig, ok := interrupt.AsSignal(err)
	require.True(t, ok, "expected interrupt signal, got %v", err)
	require.Len(t, sig.Interrupts, 1)

	require.NoError(t, ic.Interrupts.Resume([]interrupt.Response{{InterruptID: sig.Interrupts[0].ID, Response: "yes"}}))

	result, err := approve.Call(core.NewToolContext(ic, "fc4"), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "yes", result)
}

// -------------------- Handoff Tool --------------------

func TestHandoffTool_RecordsTransfer(t *testing.T) {
	h := NewHandoffTool(HandoffTarget{Name: "writer", Description: "Writes prose"})
	assert.Contains(t, h.Description(), "writer: Writes prose")

	tc := core.NewToolContext(dummyInvocationContext(), "fc-h")
	res, err := h.Call(tc, map[string]any{
		"agent_name": "writer",
		"message":    "draft the summary",
		"context":    map[string]any{"topic": "go"},
	})
	require.NoError(t, err)
	assert.Equal(t, "writer", res.(map[string]any)["agent_name"])

	actions := tc.Actions()
	require.NotNil(t, actions.TransferToAgent)
	assert.Equal(t, "writer", *actions.TransferToAgent)
	assert.Equal(t, "draft the summary", actions.TransferMessage)
	assert.Equal(t, "go", actions.TransferContext["topic"])
}

func TestHandoffTool_Rejections(t *testing.T) {
	h := NewHandoffTool(HandoffTarget{Name: "writer"}, HandoffTarget{Name: "Agent"})

	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{"missing name", map[string]any{"message": "x"}, "VALIDATION_ERROR"},
		{"unknown agent", map[string]any{"agent_name": "ghost"}, "UNKNOWN_AGENT"},
		{"self handoff", map[string]any{"agent_name": "Agent"}, "INVALID_TARGET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := core.NewToolContext(dummyInvocationContext(), "fc")
			_, err := h.Call(tc, tt.args)
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.code, toolErr.Code)
			assert.Nil(t, tc.Actions().TransferToAgent)
		})
	}
}

// -------------------- Set --------------------

func TestSet_Filter(t *testing.T) {
	a := NewFunctionTool("a", "", nil, nil)
	b := NewFunctionTool("b", "", nil, nil)

	s, err := NewSet(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Names())

	selected, missing := s.Filter([]string{"b", "zzz", "b"})
	require.Len(t, selected, 1)
	assert.Equal(t, "b", selected[0].Name())
	assert.Equal(t, []string{"zzz"}, missing)

	all, missing := s.Filter(nil)
	assert.Len(t, all, 2)
	assert.Empty(t, missing)

	_, err = NewSet(a, a)
	assert.Error(t, err)

	defs := Definitions(s.Tools())
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Function.Name)
}

// -------------------- State Tool --------------------

func TestStateTool_SetAndGetState(t *testing.T) {
	sm := NewStateTool()
	ic := dummyInvocationContext()

	tc := core.NewToolContext(ic, "fc-set")
	_, err := sm.Call(tc, map[string]any{"operation": "set_state", "key": "foo", "value": "bar"})
	require.NoError(t, err)
	assert.Equal(t, "bar", tc.Actions().StateDelta["foo"])

	ev := core.NewFunctionResponseEvent("Agent", "fc-set", sm.Name(), nil, nil)
	tc.ApplyActions(&ev)
	require.NoError(t, ic.EmitEvent(ev))

	res, err := sm.Call(core.NewToolContext(ic, "fc-get"), map[string]any{"operation": "get_state", "key": "foo"})
	require.NoError(t, err)
	gm := res.(map[string]any)
	assert.True(t, gm["exists"].(bool))
	assert.Equal(t, "bar", gm["value"])
}

func TestStateTool_FlowControl(t *testing.T) {
	sm := NewStateTool()
	ic := dummyInvocationContext()

	tc := core.NewToolContext(ic, "fc-esc")
	_, err := sm.Call(tc, map[string]any{"operation": "escalate"})
	require.NoError(t, err)
	require.NotNil(t, tc.Actions().Escalate)

	tc = core.NewToolContext(ic, "fc-skip")
	_, err = sm.Call(tc, map[string]any{"operation": "skip_summarization"})
	require.NoError(t, err)
	require.NotNil(t, tc.Actions().SkipSummarization)

	_, err = sm.Call(tc, map[string]any{"operation": "nope"})
	assert.Error(t, err)
}

func TestStateTool_RequestInput(t *testing.T) {
	sm := NewStateTool()
	ic := dummyInvocationContext()

	_, err := sm.Call(core.NewToolContext(ic, "fc-in"), map[string]any{"operation": "request_input", "key": "budget", "question": "How much?"})
	sig, ok := interrupt.AsSignal(err)
	require.True(t, ok)
	assert.Equal(t, "How much?", sig.Interrupts[0].Reason)

	require.NoError(t, ic.Interrupts.Resume([]interrupt.Response{{InterruptID: sig.Interrupts[0].ID, Response: 100}}))

	res, err := sm.Call(core.NewToolContext(ic, "fc-in"), map[string]any{"operation": "request_input", "key": "budget"})
	require.NoError(t, err)
	assert.Equal(t, 100, res.(map[string]any)["answer"])
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
