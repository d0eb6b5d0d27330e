package multiagent

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/testutil"
)

func task(text string) core.Content { return core.NewTextContent(core.RoleUser, text) }

// drain collects all events of a run and its outcome.
func drain(t *testing.T, run *Run) ([]Event, Outcome) {
	t.Helper()

	var events []Event
	for ev := range run.Events() {
		events = append(events, ev)
	}

	out, err := run.Wait()
	require.NoError(t, err)

	return events, out
}

func asResult(t *testing.T, out Outcome) *Result {
	t.Helper()
	res, ok := out.(*Result)
	require.Truef(t, ok, "expected *Result, got %T", out)
	return res
}

func asSuspension(t *testing.T, out Outcome) *Suspension {
	t.Helper()
	s, ok := out.(*Suspension)
	require.Truef(t, ok, "expected *Suspension, got %T", out)
	return s
}

// replyAgent answers with its name and the first line of its input.
func replyAgent(name string) *agent.FuncAgent {
	return agent.NewFuncAgent(name, name+" agent", func(ic *core.InvocationContext, _ map[string]any) (string, error) {
		first, _, _ := strings.Cut(ic.UserContent.Text(), "\n")
		return name + ": " + first, nil
	})
}

func failAgent(name string, err error) *agent.FuncAgent {
	return agent.NewFuncAgent(name, "", func(*core.InvocationContext, map[string]any) (string, error) {
		return "", err
	})
}

// handoffAgent hands control to target and answers with "<name> done".
func handoffAgent(name, target, message string, handoffContext map[string]any) *agent.FuncAgent {
	return agent.NewFuncAgent(name, name+" agent", func(ic *core.InvocationContext, _ map[string]any) (string, error) {
		ev := testutil.NewEventBuilder().Author(name).Handoff(target, message, handoffContext).Build()
		if err := ic.EmitEvent(ev); err != nil {
			return "", err
		}
		return name + " done", nil
	})
}

var errBoom = errors.New("boom")

// nodeIDs returns the node ids of all NodeCompleteEvents in order.
func completedNodes(events []Event) []string {
	var ids []string
	for _, ev := range events {
		if c, ok := ev.(*NodeCompleteEvent); ok {
			ids = append(ids, c.Result.NodeID)
		}
	}
	return ids
}
