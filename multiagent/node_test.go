package multiagent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/hupe1980/agentgraph/logging"
)

type execFunc func(ctx context.Context, req *ExecRequest) (*ExecResponse, error)

type funcExecutor struct{ fn execFunc }

func (funcExecutor) NodeType() string { return "custom" }

func (e funcExecutor) Execute(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	return e.fn(ctx, req)
}

func newTestState() *State { return newState(task("t"), nil) }

func collectEmit(events *[]Event) func(Event) error {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestNodeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		n := NewAgentNode("a", agent.NewTextAgent("a", "hello"))

		var events []Event
		r := n.Execute(context.Background(), task("hi"), newTestState(), collectEmit(&events), logging.NoOpLogger{})

		assert.Equal(t, StatusCompleted, r.Status)
		assert.Equal(t, "hello", r.Text())
		assert.Equal(t, NodeTypeAgent, r.NodeType)
		assert.GreaterOrEqual(t, r.DurationSeconds(), 0.0)
		assert.NoError(t, r.Err)
	})

	t.Run("failure", func(t *testing.T) {
		n := NewAgentNode("a", failAgent("a", errBoom))

		r := n.Execute(context.Background(), task("hi"), newTestState(), collectEmit(new([]Event)), logging.NoOpLogger{})

		assert.Equal(t, StatusFailed, r.Status)
		assert.ErrorIs(t, r.Err, errBoom)
		assert.NotNil(t, r.Content)
		assert.Empty(t, r.Content)
		assert.GreaterOrEqual(t, r.DurationSeconds(), 0.0)
	})

	t.Run("executor panic", func(t *testing.T) {
		n := NewNode("p", funcExecutor{fn: func(context.Context, *ExecRequest) (*ExecResponse, error) {
			panic("kaboom")
		}})

		r := n.Execute(context.Background(), task("hi"), newTestState(), collectEmit(new([]Event)), logging.NoOpLogger{})

		assert.Equal(t, StatusFailed, r.Status)
		assert.ErrorContains(t, r.Err, "kaboom")
		assert.Equal(t, "custom", r.NodeType)
	})

	t.Run("interrupt", func(t *testing.T) {
		st := newTestState()
		n := NewNode("i", funcExecutor{fn: func(_ context.Context, req *ExecRequest) (*ExecResponse, error) {
			_, err := req.State.Interrupts().Raise("test", req.NodeID, "approve", "why")
			return nil, err
		}})

		r := n.Execute(context.Background(), task("hi"), st, collectEmit(new([]Event)), logging.NoOpLogger{})

		assert.Equal(t, StatusInterrupted, r.Status)
		require.Len(t, r.Interrupts, 1)
		assert.Equal(t, interrupt.NewID("test", "i", "approve"), r.Interrupts[0].ID)
		assert.NoError(t, r.Err)
	})
}

func TestNodeTagsEvents(t *testing.T) {
	n := NewAgentNode("writer", agent.NewTextAgent("w", "text"))

	var events []Event
	r := n.Execute(context.Background(), task("hi"), newTestState(), collectEmit(&events), logging.NoOpLogger{})
	require.Equal(t, StatusCompleted, r.Status)
	require.NotEmpty(t, events)

	for _, ev := range events {
		env, ok := ev.(*NodeStreamEvent)
		require.True(t, ok)
		assert.Equal(t, "writer", env.NodeID)
		assert.Equal(t, NodeTypeAgent, env.NodeType)

		path, inner := Unwrap(ev)
		assert.Equal(t, []string{"writer"}, path)
		_, isAgent := inner.(*AgentEvent)
		assert.True(t, isAgent)
	}
}

func TestNodeDropsLateEvents(t *testing.T) {
	var relay func(Event) error

	n := NewNode("late", funcExecutor{fn: func(_ context.Context, req *ExecRequest) (*ExecResponse, error) {
		relay = req.Emit
		return &ExecResponse{}, nil
	}})

	var events []Event
	n.Execute(context.Background(), task("hi"), newTestState(), collectEmit(&events), logging.NoOpLogger{})

	require.NotNil(t, relay)
	assert.Error(t, relay(&HandoffEvent{}))
	assert.Empty(t, events)
}

func TestAgentNodeRestoresAgent(t *testing.T) {
	a := agent.NewFuncAgent("counter", "", func(_ *core.InvocationContext, memory map[string]any) (string, error) {
		n, _ := memory["count"].(int)
		memory["count"] = n + 1
		return "counted", nil
	})

	before := a.Memory()
	n := NewAgentNode("counter", a)

	for range 2 {
		r := n.Execute(context.Background(), task("go"), newTestState(), collectEmit(new([]Event)), logging.NoOpLogger{})
		require.Equal(t, StatusCompleted, r.Status)
	}

	assert.Equal(t, before, a.Memory())
}

func TestAgentNodeSharesState(t *testing.T) {
	st := newTestState()
	st.Set("seed", "s1")

	a := agent.NewFuncAgent("w", "", func(ic *core.InvocationContext, _ map[string]any) (string, error) {
		seed, _ := ic.GetState("seed")
		ic.SetState("written", seed)
		return "ok", nil
	})

	r := NewAgentNode("w", a).Execute(context.Background(), task("go"), st, collectEmit(new([]Event)), logging.NoOpLogger{})
	require.Equal(t, StatusCompleted, r.Status)

	v, ok := st.Get("written")
	require.True(t, ok)
	assert.Equal(t, "s1", v)
}

func TestAgentNodeHandoff(t *testing.T) {
	n := NewAgentNode("r", handoffAgent("r", "a", "over to you", map[string]any{"k": "v"}))

	r := n.Execute(context.Background(), task("go"), newTestState(), collectEmit(new([]Event)), logging.NoOpLogger{})
	require.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.Handoff)
	assert.Equal(t, "a", r.Handoff.Target)
	assert.Equal(t, "over to you", r.Handoff.Message)
	assert.Equal(t, map[string]any{"k": "v"}, r.Handoff.Context)
	assert.Equal(t, "r done", r.Text())
}

func TestAgentNodeEmitFailureCancelsAgent(t *testing.T) {
	emitErr := errors.New("consumer gone")
	n := NewAgentNode("a", agent.NewTextAgent("a", "hello"))

	r := n.Execute(context.Background(), task("hi"), newTestState(), func(Event) error { return emitErr }, logging.NoOpLogger{})

	assert.Equal(t, StatusFailed, r.Status)
}
