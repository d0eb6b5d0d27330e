package testutil

import (
	"encoding/json"
	"maps"

	"github.com/hupe1980/agentgraph/core"
)

// SessionBuilder assembles a working session the way a node would see it:
// shared values, a user turn and the replies, tool calls and handoffs of
// agents.
//
//	sess := NewSessionBuilder("run/research").
//		State("topic", "go").
//		User("find sources").
//		ToolCall("researcher", "c1", "search", map[string]any{"q": "go"}).
//		Build()
type SessionBuilder struct {
	id           string
	invocationID string
	state        map[string]any
	events       []core.Event
}

// NewSessionBuilder creates a builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, invocationID: "inv-" + id, state: map[string]any{}}
}

// State sets a shared value.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Values merges several shared values.
func (b *SessionBuilder) Values(vals map[string]any) *SessionBuilder {
	maps.Copy(b.state, vals)
	return b
}

// User appends a user turn.
func (b *SessionBuilder) User(text string) *SessionBuilder {
	return b.Events(core.NewUserMessageEvent(b.invocationID, text))
}

// Reply appends a final assistant answer by author.
func (b *SessionBuilder) Reply(author, text string) *SessionBuilder {
	return b.Events(NewEventBuilder().Invocation(b.invocationID).Author(author).AssistantText(text).TurnComplete(true).Build())
}

// ToolCall appends an unanswered tool call by author.
func (b *SessionBuilder) ToolCall(author, id, name string, args map[string]any) *SessionBuilder {
	raw, _ := json.Marshal(args)
	return b.Events(NewEventBuilder().Invocation(b.invocationID).Author(author).FunctionCall(id, name, string(raw)).Build())
}

// ToolResult answers the tool call id.
func (b *SessionBuilder) ToolResult(author, id, name string, result any) *SessionBuilder {
	return b.Events(NewEventBuilder().Invocation(b.invocationID).Author(author).FunctionResponse(id, name, result, nil).Build())
}

// Handoff appends a transfer of control from author to target.
func (b *SessionBuilder) Handoff(author, target, message string) *SessionBuilder {
	return b.Events(NewEventBuilder().Invocation(b.invocationID).Author(author).Handoff(target, message, nil).Build())
}

// Events appends prebuilt events.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns the session. Shared values are applied before the history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.ApplyStateDelta(b.state)

	for _, ev := range b.events {
		s.AddEvent(ev)
	}

	return s
}
