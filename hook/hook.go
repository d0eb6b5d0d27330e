// Package hook provides the run-scoped callback registry through which
// cross-cutting behavior (logging, approvals, interrupts) is attached to the
// lifecycle of agents, tool calls and orchestrator nodes.
//
// A Registry maps an event Kind to an ordered list of callbacks. Before-style
// events dispatch in registration order; after-style events dispatch in
// reverse so that paired handlers nest like scoped resources. Callbacks
// registered together by a Provider can later be removed as one unit through
// the Handle returned on registration.
package hook

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/agentgraph/interrupt"
)

// Kind identifies a lifecycle event.
type Kind string

const (
	KindBeforeInvocation           Kind = "before_invocation"
	KindAfterInvocation            Kind = "after_invocation"
	KindBeforeModelCall            Kind = "before_model_call"
	KindAfterModelCall             Kind = "after_model_call"
	KindBeforeToolCall             Kind = "before_tool_call"
	KindAfterToolCall              Kind = "after_tool_call"
	KindMessageAdded               Kind = "message_added"
	KindMultiAgentInitialized      Kind = "multi_agent_initialized"
	KindBeforeMultiAgentInvocation Kind = "before_multi_agent_invocation"
	KindAfterMultiAgentInvocation  Kind = "after_multi_agent_invocation"
	KindBeforeNodeCall             Kind = "before_node_call"
	KindAfterNodeCall              Kind = "after_node_call"
)

// Event is implemented by every hook payload.
type Event interface {
	// Kind returns the registry key. Implementations must not dereference
	// the receiver so the method can be called on a typed nil.
	Kind() Kind
	// IsAfter reports whether callbacks run in reverse registration order.
	IsAfter() bool
}

// Callback receives an event. Returning an *interrupt.Signal pauses the run;
// any other error aborts dispatch.
type Callback func(ctx context.Context, ev Event) error

// Handle identifies a registration (single callback or a whole provider).
type Handle struct{ id uint64 }

// Valid reports whether h was returned by a registration.
func (h Handle) Valid() bool { return h.id != 0 }

// Registrar is the registration surface handed to providers.
type Registrar interface {
	Add(kind Kind, cb Callback) Handle
}

// Provider registers a related group of callbacks.
type Provider interface {
	RegisterHooks(r Registrar)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(r Registrar)

// RegisterHooks implements Provider.
func (f ProviderFunc) RegisterHooks(r Registrar) { f(r) }

type entry struct {
	owner uint64
	cb    Callback
}

// Registry is safe for concurrent registration and dispatch. Mutating the
// registry from inside a callback of the same dispatch is not supported.
type Registry struct {
	mu      sync.RWMutex
	nextID  uint64
	entries map[Kind][]entry
}

// NewRegistry creates an empty registry and registers the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{entries: make(map[Kind][]entry)}

	for _, p := range providers {
		r.AddProvider(p)
	}

	return r
}

func (r *Registry) newID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++

	return r.nextID
}

func (r *Registry) add(owner uint64, kind Kind, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[kind] = append(r.entries[kind], entry{owner: owner, cb: cb})
}

// Add registers one callback.
func (r *Registry) Add(kind Kind, cb Callback) Handle {
	id := r.newID()
	r.add(id, kind, cb)

	return Handle{id: id}
}

type scopedRegistrar struct {
	r     *Registry
	owner uint64
}

func (s scopedRegistrar) Add(kind Kind, cb Callback) Handle {
	s.r.add(s.owner, kind, cb)
	return Handle{id: s.owner}
}

// AddProvider registers all callbacks of p under a single handle.
func (r *Registry) AddProvider(p Provider) Handle {
	id := r.newID()
	p.RegisterHooks(scopedRegistrar{r: r, owner: id})

	return Handle{id: id}
}

// Remove deregisters every callback registered under h.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for kind, entries := range r.entries {
		kept := entries[:0:0]

		for _, e := range entries {
			if e.owner != h.id {
				kept = append(kept, e)
			}
		}

		if len(kept) == 0 {
			delete(r.entries, kind)
		} else {
			r.entries[kind] = kept
		}
	}
}

// Has reports whether any callback is registered for kind.
func (r *Registry) Has(kind Kind) bool {
	if r == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries[kind]) > 0
}

// Len returns the number of callbacks registered for kind.
func (r *Registry) Len(kind Kind) int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries[kind])
}

// Invoke dispatches ev. Interrupt signals from all callbacks are collected and
// returned as one merged *interrupt.Signal after every callback ran; any other
// error stops dispatch and is returned as is. A nil registry is a no-op.
func (r *Registry) Invoke(ctx context.Context, ev Event) error {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	callbacks := slices.Clone(r.entries[ev.Kind()])
	r.mu.RUnlock()

	if ev.IsAfter() {
		slices.Reverse(callbacks)
	}

	var signals []*interrupt.Signal

	for _, e := range callbacks {
		if err := e.cb(ctx, ev); err != nil {
			if sig, ok := interrupt.AsSignal(err); ok {
				signals = append(signals, sig)
				continue
			}

			return err
		}
	}

	if merged := interrupt.Merge(signals...); merged != nil {
		return merged
	}

	return nil
}

// On registers a callback typed on a concrete event.
//
//	hook.On(reg, func(ctx context.Context, ev *hook.BeforeToolCall) error {
//		_, err := ev.Interrupt("approval", ev.ToolName)
//		return err
//	})
func On[E Event](r Registrar, fn func(ctx context.Context, ev E) error) Handle {
	var zero E

	return r.Add(zero.Kind(), func(ctx context.Context, ev Event) error {
		typed, ok := ev.(E)
		if !ok {
			return nil
		}

		return fn(ctx, typed)
	})
}
