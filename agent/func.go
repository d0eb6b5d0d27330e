package agent

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// ErrNoOutput is returned by FuncAgent.Run when the function produced no text
// and emitted no event of its own.
var ErrNoOutput = errors.New("agent produced no output")

// FuncAgent adapts a Go function to core.Agent. The returned text is emitted
// as the agent's final message. The function may emit further events itself
// (for example a handoff) and may raise interrupts through ic.Interrupts.
//
// A FuncAgent keeps a small key/value memory that survives across runner
// invocations. Orchestrator nodes restore it after every activation through
// core.Snapshotter.
type FuncAgent struct {
	BaseAgent

	fn func(ic *core.InvocationContext, memory map[string]any) (string, error)

	mu     sync.Mutex
	memory map[string]any
}

// NewFuncAgent creates a FuncAgent.
func NewFuncAgent(name, description string, fn func(ic *core.InvocationContext, memory map[string]any) (string, error)) *FuncAgent {
	a := &FuncAgent{
		BaseAgent: NewBaseAgent(name),
		fn:        fn,
		memory:    map[string]any{},
	}

	if description != "" {
		a.SetDescription(description)
	}

	return a
}

// NewTextAgent returns a FuncAgent that always answers with text.
func NewTextAgent(name, text string) *FuncAgent {
	return NewFuncAgent(name, "", func(*core.InvocationContext, map[string]any) (string, error) {
		return text, nil
	})
}

// Memory returns a copy of the agent's memory.
func (a *FuncAgent) Memory() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.memory)
}

// Snapshot implements core.Snapshotter.
func (a *FuncAgent) Snapshot() any { return a.Memory() }

// Restore implements core.Snapshotter.
func (a *FuncAgent) Restore(snapshot any) {
	m, ok := snapshot.(map[string]any)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = maps.Clone(m)
}

// Run implements core.Agent. Panics in the function are converted into errors.
func (a *FuncAgent) Run(ic *core.InvocationContext) (err error) {
	a.mu.Lock()
	memory := a.memory
	a.mu.Unlock()

	before := len(ic.Session.GetEvents())

	text, err := func() (text string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("agent %s panicked: %v", a.Name(), r)
			}
		}()

		return a.fn(ic, memory)
	}()
	if err != nil {
		return err
	}

	if text == "" {
		if len(ic.Session.GetEvents()) > before {
			return nil
		}

		return ErrNoOutput
	}

	ev := core.NewMessageEvent(a.Name(), text)
	complete := true
	ev.TurnComplete = &complete

	return ic.EmitEvent(ev)
}
