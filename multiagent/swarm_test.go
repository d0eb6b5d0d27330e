package multiagent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

type warnRecorder struct {
	mu    sync.Mutex
	warns []string
}

func (r *warnRecorder) Debug(string, ...any) {}
func (r *warnRecorder) Info(string, ...any)  {}
func (r *warnRecorder) Error(string, ...any) {}

func (r *warnRecorder) Warn(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, fmt.Sprint(append([]any{msg}, args...)...))
}

func TestSwarmHandoffChain(t *testing.T) {
	var writerInput string

	writer := agent.NewFuncAgent("writer", "writes reports", func(ic *core.InvocationContext, _ map[string]any) (string, error) {
		writerInput = ic.UserContent.Text()
		return "final report", nil
	})

	s, err := NewSwarm([]core.Agent{
		handoffAgent("researcher", "analyst", "analyse the findings", map[string]any{"sources": 2}),
		handoffAgent("analyst", "writer", "write it up", nil),
		writer,
	})
	require.NoError(t, err)
	assert.Equal(t, "researcher", s.EntryPoint())

	run, err := s.Stream(context.Background(), task("research quantum batteries"))
	require.NoError(t, err)

	events, out := drain(t, run)

	res := asResult(t, out)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"researcher", "analyst", "writer"}, res.NodeHistory)
	assert.Equal(t, 3, res.ExecutionCount)
	assert.Equal(t, "final report", res.Text())
	assert.Len(t, res.Results, 3)

	var handoffs []string
	for _, ev := range events {
		if h, ok := ev.(*HandoffEvent); ok {
			handoffs = append(handoffs, h.From+"->"+h.To)
		}
	}
	assert.Equal(t, []string{"researcher->analyst", "analyst->writer"}, handoffs)

	assert.Contains(t, writerInput, "Handoff Message: write it up")
	assert.Contains(t, writerInput, "User Request: research quantum batteries")
	assert.Contains(t, writerInput, "Previous agents who worked on this: researcher → analyst")
	assert.Contains(t, writerInput, `• researcher: {"sources":2}`)
	assert.Contains(t, writerInput, "Agent name: researcher. Agent description: researcher agent")
	assert.NotContains(t, writerInput, "Agent name: writer.")
}

func TestSwarmDeduplicatesNames(t *testing.T) {
	s, err := NewSwarmFromSpecs([]AgentSpec{
		{Name: "duplicate", Agent: replyAgent("duplicate")},
		{Name: "duplicate", Agent: replyAgent("duplicate")},
		{Name: "duplicate", Agent: replyAgent("duplicate")},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"duplicate", "duplicate_1", "duplicate_2"}, s.Members())

	_, ok := s.Node("duplicate_1")
	assert.True(t, ok)
}

func TestSwarmConfigErrors(t *testing.T) {
	tooMany := make([]core.Agent, MaxAgentSpecs+1)
	for i := range tooMany {
		tooMany[i] = replyAgent(fmt.Sprintf("a%d", i))
	}

	tests := []struct {
		name   string
		agents []core.Agent
		opts   func(o *SwarmOptions)
		msg    string
	}{
		{name: "empty", msg: "at least one agent"},
		{name: "too many", agents: tooMany, msg: "at most 10 agents"},
		{name: "entry point", agents: []core.Agent{replyAgent("a")}, opts: func(o *SwarmOptions) { o.EntryPoint = "b" }, msg: `entry point "b"`},
		{name: "iterations", agents: []core.Agent{replyAgent("a")}, opts: func(o *SwarmOptions) { o.MaxIterations = 0 }, msg: "max iterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var optFns []func(o *SwarmOptions)
			if tt.opts != nil {
				optFns = append(optFns, tt.opts)
			}

			_, err := NewSwarm(tt.agents, optFns...)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "swarm", cfgErr.Orchestrator)
			assert.Contains(t, cfgErr.Message, tt.msg)
		})
	}
}

func pingPong(t *testing.T, optFns ...func(o *SwarmOptions)) *Result {
	t.Helper()

	s, err := NewSwarm([]core.Agent{
		handoffAgent("ping", "pong", "your turn", nil),
		handoffAgent("pong", "ping", "your turn", nil),
	}, optFns...)
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), task("rally"))
	require.NoError(t, err)

	return asResult(t, out)
}

func TestSwarmLimits(t *testing.T) {
	t.Run("max handoffs", func(t *testing.T) {
		res := pingPong(t, func(o *SwarmOptions) { o.MaxHandoffs = 3 })

		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, ErrMaxHandoffs)
		assert.Equal(t, []string{"ping", "pong", "ping", "pong"}, res.NodeHistory)
	})

	t.Run("max iterations", func(t *testing.T) {
		res := pingPong(t, func(o *SwarmOptions) { o.MaxIterations = 3 })

		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, ErrMaxIterations)
		assert.Equal(t, []string{"ping", "pong", "ping"}, res.NodeHistory)
	})

	t.Run("repetitive handoffs", func(t *testing.T) {
		res := pingPong(t, func(o *SwarmOptions) {
			o.RepetitiveHandoffWindow = 4
			o.RepetitiveHandoffMinUnique = 3
		})

		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, ErrRepetitiveHandoff)
		assert.Equal(t, []string{"ping", "pong", "ping"}, res.NodeHistory)
	})
}

func TestSwarmUnknownHandoffTarget(t *testing.T) {
	s, err := NewSwarm([]core.Agent{handoffAgent("lost", "ghost", "", nil), replyAgent("other")})
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), task("go"))
	require.NoError(t, err)

	res := asResult(t, out)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrUnknownHandoffTarget)
	assert.ErrorContains(t, res.Err, `"ghost"`)
}

func TestSwarmFailedNode(t *testing.T) {
	s, err := NewSwarm([]core.Agent{handoffAgent("a", "b", "", nil), failAgent("b", errBoom)})
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), task("go"))
	require.NoError(t, err)

	res := asResult(t, out)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, errBoom)
	assert.Equal(t, []string{"a", "b"}, res.NodeHistory)
	assert.Equal(t, StatusCompleted, res.Results["a"].Status)
}

func TestSwarmEntryPointOption(t *testing.T) {
	s, err := NewSwarm([]core.Agent{replyAgent("a"), replyAgent("b")}, func(o *SwarmOptions) { o.EntryPoint = "b" })
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), task("go"))
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, asResult(t, out).NodeHistory)
}

func TestSwarmModelAgentsUseHandoffTool(t *testing.T) {
	researcherLLM := model.NewScriptedModel("r-model",
		model.ToolTurn("call-1", tool.HandoffToolName, map[string]any{
			"agent_name": "writer",
			"message":    "summarise the notes",
			"context":    map[string]any{"notes": "n1"},
		}),
	)
	writerLLM := model.NewScriptedModel("w-model", model.TextTurn("summary"))

	researcher := agent.NewModelAgent("researcher", researcherLLM, func(o *agent.ModelAgentOptions) { o.Description = "finds facts" })
	writer := agent.NewModelAgent("writer", writerLLM, func(o *agent.ModelAgentOptions) { o.Description = "writes" })

	s, err := NewSwarm([]core.Agent{researcher, writer})
	require.NoError(t, err)

	assert.Equal(t, []tool.HandoffTarget{{Name: "writer", Description: "writes"}}, researcher.HandoffTargets())

	out, err := s.Invoke(context.Background(), task("explain tides"))
	require.NoError(t, err)

	res := asResult(t, out)
	require.Equal(t, StatusCompleted, res.Status, "err: %v", res.Err)
	assert.Equal(t, []string{"researcher", "writer"}, res.NodeHistory)
	assert.Equal(t, "summary", res.Text())

	reqs := writerLLM.Requests()
	require.Len(t, reqs, 1)
	last := reqs[0].Contents[len(reqs[0].Contents)-1]
	assert.Contains(t, last.Text(), "Handoff Message: summarise the notes")
	assert.Contains(t, last.Text(), `• researcher: {"notes":"n1"}`)

	var names []string
	for _, def := range researcherLLM.Requests()[0].Tools {
		names = append(names, def.Function.Name)
	}
	assert.Contains(t, names, tool.HandoffToolName)
}

func TestSwarmToolFiltering(t *testing.T) {
	lookup := tool.NewFunctionTool("lookup", "looks things up", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return "found", nil
	})
	calc := tool.NewFunctionTool("calc", "calculates", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return 42, nil
	})

	a := agent.NewModelAgent("a", model.NewScriptedModel("m", model.TextTurn("ok")))
	b := agent.NewModelAgent("b", model.NewScriptedModel("m", model.TextTurn("ok")))
	logger := &warnRecorder{}

	_, err := NewSwarmFromSpecs(
		[]AgentSpec{
			{Name: "a", Agent: a, Tools: []string{"lookup", "missing"}},
			{Name: "b", Agent: b},
		},
		func(o *SwarmOptions) {
			o.Tools = []tool.Tool{lookup, calc}
			o.Logger = logger
		},
	)
	require.NoError(t, err)

	assert.True(t, a.HasTool("lookup"))
	assert.False(t, a.HasTool("calc"))
	assert.True(t, b.HasTool("lookup"))
	assert.True(t, b.HasTool("calc"))

	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "swarm.tool.unknown")
	assert.Contains(t, logger.warns[0], "missing")
}

func TestSwarmRevisitedNodeKeepsLatestResult(t *testing.T) {
	var visits int

	lead := agent.NewFuncAgent("lead", "", func(ic *core.InvocationContext, _ map[string]any) (string, error) {
		visits++
		if visits == 1 {
			ev := core.NewEvent("", "lead")
			target := "helper"
			ev.Actions.TransferToAgent = &target
			if err := ic.EmitEvent(ev); err != nil {
				return "", err
			}
			return "delegating", nil
		}
		return "wrapped up", nil
	})

	s, err := NewSwarm([]core.Agent{lead, handoffAgent("helper", "lead", "done helping", nil)})
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), task("go"))
	require.NoError(t, err)

	res := asResult(t, out)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"lead", "helper", "lead"}, res.NodeHistory)
	assert.Equal(t, 3, res.ExecutionCount)
	assert.Equal(t, "wrapped up", res.Results["lead"].Text())
}
