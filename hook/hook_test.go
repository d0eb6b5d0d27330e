package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentgraph/interrupt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(order *[]string, label string) Callback {
	return func(context.Context, Event) error {
		*order = append(*order, label)
		return nil
	}
}

func TestInvoke_ForwardForBeforeReverseForAfter(t *testing.T) {
	r := NewRegistry()

	var order []string

	r.Add(KindBeforeModelCall, recorder(&order, "b1"))
	r.Add(KindBeforeModelCall, recorder(&order, "b2"))
	r.Add(KindAfterModelCall, recorder(&order, "a1"))
	r.Add(KindAfterModelCall, recorder(&order, "a2"))

	require.NoError(t, r.Invoke(context.Background(), &BeforeModelCall{}))
	require.NoError(t, r.Invoke(context.Background(), &AfterModelCall{}))

	assert.Equal(t, []string{"b1", "b2", "a2", "a1"}, order)
}

type auditProvider struct{ calls *[]string }

func (p auditProvider) RegisterHooks(r Registrar) {
	r.Add(KindBeforeToolCall, recorder(p.calls, "audit.before"))
	r.Add(KindAfterToolCall, recorder(p.calls, "audit.after"))
}

func TestProvider_RemoveOnlyItsCallbacks(t *testing.T) {
	r := NewRegistry()

	var calls []string

	other := r.Add(KindBeforeToolCall, recorder(&calls, "other"))
	h := r.AddProvider(auditProvider{calls: &calls})

	assert.True(t, h.Valid())
	assert.Equal(t, 2, r.Len(KindBeforeToolCall))
	assert.Equal(t, 1, r.Len(KindAfterToolCall))

	r.Remove(h)

	assert.Equal(t, 1, r.Len(KindBeforeToolCall))
	assert.False(t, r.Has(KindAfterToolCall))

	require.NoError(t, r.Invoke(context.Background(), NewBeforeToolCall("a", "t", "x", nil, nil)))
	assert.Equal(t, []string{"other"}, calls)

	r.Remove(other)
	assert.False(t, r.Has(KindBeforeToolCall))
}

func TestInvoke_NonInterruptErrorStopsDispatch(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")

	var order []string

	r.Add(KindBeforeInvocation, func(context.Context, Event) error { return boom })
	r.Add(KindBeforeInvocation, recorder(&order, "never"))

	err := r.Invoke(context.Background(), &BeforeInvocation{})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, order)
}

func TestInvoke_CollectsInterruptsFromAllCallbacks(t *testing.T) {
	r := NewRegistry()
	state := interrupt.NewState()

	On(r, func(_ context.Context, ev *BeforeToolCall) error {
		_, err := ev.Interrupt("first", nil)
		return err
	})
	On(r, func(_ context.Context, ev *BeforeToolCall) error {
		_, err := ev.Interrupt("second", nil)
		return err
	})

	err := r.Invoke(context.Background(), NewBeforeToolCall("agent", "tool-1", "delete", nil, state))

	sig, ok := interrupt.AsSignal(err)
	require.True(t, ok)
	require.Len(t, sig.Interrupts, 2)
	assert.Equal(t, "first", sig.Interrupts[0].Name)
	assert.Equal(t, "second", sig.Interrupts[1].Name)
	assert.Equal(t, interrupt.NewID(InterruptKindToolCall, "tool-1", "first"), sig.Interrupts[0].ID)
}

func TestBeforeToolCall_ResumedInterruptReturnsResponse(t *testing.T) {
	r := NewRegistry()
	state := interrupt.NewState()

	var got any

	On(r, func(_ context.Context, ev *BeforeToolCall) error {
		resp, err := ev.Interrupt("approval", "run "+ev.ToolName)
		if err != nil {
			return err
		}

		got = resp
		if resp != "yes" {
			ev.Cancel("denied")
		}

		return nil
	})

	err := r.Invoke(context.Background(), NewBeforeToolCall("agent", "tool-1", "rm", nil, state))
	sig, ok := interrupt.AsSignal(err)
	require.True(t, ok)

	require.NoError(t, state.Resume([]interrupt.Response{{InterruptID: sig.Interrupts[0].ID, Response: "no"}}))

	ev := NewBeforeToolCall("agent", "tool-1", "rm", nil, state)
	require.NoError(t, r.Invoke(context.Background(), ev))
	assert.Equal(t, "no", got)

	cancelled, msg := ev.Cancelled()
	assert.True(t, cancelled)
	assert.Equal(t, "denied", msg)
}

func TestBeforeNodeCall_InterruptKeyedByNodeID(t *testing.T) {
	state := interrupt.NewState()
	ev := NewBeforeNodeCall("graph", "review", state)

	_, err := ev.Interrupt("gate", nil)
	sig, ok := interrupt.AsSignal(err)
	require.True(t, ok)
	assert.Equal(t, interrupt.NewID(InterruptKindNodeCall, "review", "gate"), sig.Interrupts[0].ID)
}

func TestInterrupt_WithoutState(t *testing.T) {
	ev := NewBeforeToolCall("agent", "t", "x", nil, nil)

	_, err := ev.Interrupt("approval", nil)
	assert.ErrorIs(t, err, ErrInterruptsUnavailable)
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry

	assert.NoError(t, r.Invoke(context.Background(), &BeforeInvocation{}))
	assert.False(t, r.Has(KindBeforeInvocation))
}
