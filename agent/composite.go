package agent

import (
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/interrupt"
)

// NewEscalationEvent returns a message event that asks an enclosing
// LoopAgent to stop.
func NewEscalationEvent(author, text string) core.Event {
	escalate := true

	ev := core.NewMessageEvent(author, text)
	ev.Actions.Escalate = &escalate

	return ev
}

// childOutcome summarizes the events a child appended to the working session.
type childOutcome struct {
	text      string
	escalated bool
}

func outcomeSince(sess *core.Session, from int) childOutcome {
	var out childOutcome

	events := sess.GetEvents()
	for _, ev := range events[min(from, len(events)):] {
		if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
			out.escalated = true
		}

		if ev.Content == nil || ev.Content.Role != core.RoleAssistant || !ev.IsFinalResponse() {
			continue
		}

		if text := ev.Content.Text(); text != "" {
			out.text = text
		}
	}

	return out
}

// position reads a composite agent's resume position from the working
// session. Positions are kept out of event state deltas so they never reach
// an orchestrator's shared values.
func position(ic *core.InvocationContext, key string) int {
	v, ok := ic.Session.GetState(key)
	if !ok {
		return 0
	}

	n, _ := v.(int)

	return n
}

func setPosition(ic *core.InvocationContext, key string, n int) {
	ic.Session.ApplyStateDelta(map[string]any{key: n})
}

// emitResult re-emits the final child answer under the composite's name, so
// callers looking for the composite's last message find it.
func emitResult(ic *core.InvocationContext, author, text string) error {
	if text == "" {
		return nil
	}

	ev := core.NewMessageEvent(author, text)
	complete := true
	ev.TurnComplete = &complete

	return ic.EmitEvent(ev)
}

func isSignal(err error) bool {
	_, ok := interrupt.AsSignal(err)
	return ok
}

func snapshotChildren(children []core.Agent) any {
	snaps := make([]any, len(children))
	for i, c := range children {
		if s, ok := c.(core.Snapshotter); ok {
			snaps[i] = s.Snapshot()
		}
	}

	return snaps
}

func restoreChildren(children []core.Agent, snapshot any) {
	snaps, ok := snapshot.([]any)
	if !ok || len(snaps) != len(children) {
		return
	}

	for i, c := range children {
		if s, ok := c.(core.Snapshotter); ok {
			s.Restore(snaps[i])
		}
	}
}
