package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("inv-123", "authorA")
	if e.Author != "authorA" || e.InvocationID != "inv-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("agent1", "hello world")
	if msg.Content == nil || msg.Content.Role != RoleAssistant || msg.Content.Text() != "hello world" {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	user := NewUserMessageEvent("inv", "hi")
	if user.Content == nil || user.Content.Role != RoleUser {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}

	fCall := NewFunctionCallEvent("agent2", "call-1", "do_stuff", `{"x":1}`)
	calls := fCall.GetFunctionCalls()
	if len(calls) != 1 || calls[0].Name != "do_stuff" || calls[0].ID != "call-1" {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}

	fRespOK := NewFunctionResponseEvent("agent2", "call-1", "do_stuff", 42, nil)
	resps := fRespOK.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("Function response success extraction failed: %+v", resps)
	}

	fRespErr := NewFunctionResponseEvent("agent2", "call-2", "do_stuff", nil, errors.New("boom"))
	if fRespErr.GetFunctionResponses()[0].Error != "boom" {
		t.Fatalf("Expected error message in function response")
	}
}

func TestEvent_IsFinalResponseLogic(t *testing.T) {
	if !NewEvent("inv", "authorA").IsFinalResponse() {
		t.Error("Expected basic event to be final")
	}

	partial := true
	e2 := NewEvent("inv", "agent")
	e2.Partial = &partial
	if e2.IsFinalResponse() {
		t.Error("Partial event should not be final")
	}

	if NewFunctionCallEvent("agent", "c", "f", "").IsFinalResponse() {
		t.Error("Event with function call should not be final")
	}

	e4 := NewFunctionResponseEvent("agent", "call-3", "f", "ok", nil)
	if e4.IsFinalResponse() {
		t.Error("Event with function response should not be final")
	}

	skip := true
	e4.Actions.SkipSummarization = &skip
	if !e4.IsFinalResponse() {
		t.Error("SkipSummarization should force final")
	}
}

func TestEvent_Transfer(t *testing.T) {
	e := NewEvent("inv", "a")
	if _, ok := e.Transfer(); ok {
		t.Fatal("unexpected transfer")
	}

	target := "writer"
	e.Actions.TransferToAgent = &target
	if got, ok := e.Transfer(); !ok || got != "writer" {
		t.Fatalf("Transfer() = %q, %v", got, ok)
	}
}

func TestEventActions_MergeCarriesHandoff(t *testing.T) {
	target := "b"
	a := EventActions{StateDelta: map[string]any{"x": 1}}
	a.merge(EventActions{
		StateDelta:      map[string]any{"y": 2},
		TransferToAgent: &target,
		TransferMessage: "take over",
		TransferContext: map[string]any{"k": "v"},
	})

	if len(a.StateDelta) != 2 || *a.TransferToAgent != "b" || a.TransferMessage != "take over" || a.TransferContext["k"] != "v" {
		t.Fatalf("merge result unexpected: %+v", a)
	}
}

func TestUsage_Add(t *testing.T) {
	u := Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}.Add(Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	if u != (Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}) {
		t.Fatalf("unexpected usage %+v", u)
	}
	if !(Usage{}).IsZero() || u.IsZero() {
		t.Fatal("IsZero mismatch")
	}
}

func TestTextOf(t *testing.T) {
	parts := []Part{
		TextPart{Text: "hello"},
		DataPart{Data: map[string]any{"k": "v"}},
		TextPart{Text: ""},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "f"}},
		TextPart{Text: "world"},
	}
	if got := TextOf(parts); got != "hello\nworld" {
		t.Fatalf("TextOf() = %q", got)
	}
}
