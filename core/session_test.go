package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession("s1")
	s.ApplyStateDelta(map[string]any{"a": 1, "b": "x"})

	v, ok := s.GetState("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clone := s.Clone()
	assert.NotSame(t, s, clone)

	clone.SetState("c", 2)
	_, exists := s.GetState("c")
	assert.False(t, exists, "original should not see clone's new key")

	clone.AddEvent(NewMessageEvent("a", "x"))
	assert.Empty(t, s.GetEvents())
}

func TestSession_AddEventAndHistory(t *testing.T) {
	s := NewSession("s2")
	s.AddEvent(NewMessageEvent("assistant", "hello"))
	s.AddEvent(NewUserMessageEvent("inv-123", "hi"))

	partial := true
	p := NewMessageEvent("assistant", "h")
	p.Partial = &partial
	s.AddEvent(p)

	sys := NewEvent("inv", "system")
	s.AddEvent(sys)

	all := s.GetEvents()
	require.Len(t, all, 4)

	all[0].Author = "changed"
	assert.Equal(t, "assistant", s.GetEvents()[0].Author, "events slice should be copied on read")

	assert.Len(t, s.GetConversationHistory(), 2)
}

func TestSession_PendingFunctionCalls(t *testing.T) {
	s := NewSession("s")
	s.AddEvent(NewUserMessageEvent("inv", "do it"))

	call := NewEvent("inv", "agent")
	call.Content = &Content{Role: RoleAssistant, Parts: []Part{
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "a"}},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c2", Name: "b"}},
	}}
	s.AddEvent(call)
	s.AddEvent(NewFunctionResponseEvent("agent", "c1", "a", "ok", nil))

	pending := s.PendingFunctionCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)

	s.AddEvent(NewFunctionResponseEvent("agent", "c2", "b", "ok", nil))
	assert.Empty(t, s.PendingFunctionCalls())

	s.AddEvent(NewMessageEvent("agent", "done"))
	assert.Empty(t, s.PendingFunctionCalls())
}

func TestSession_LastMessage(t *testing.T) {
	s := NewSession("s")
	s.AddEvent(NewMessageEvent("a", "first"))
	s.AddEvent(NewMessageEvent("b", "other"))
	s.AddEvent(NewFunctionCallEvent("a", "c1", "f", "{}"))

	c, ok := s.LastMessage("a")
	require.True(t, ok)
	assert.Equal(t, "first", c.Text())

	_, ok = s.LastMessage("missing")
	assert.False(t, ok)
}
