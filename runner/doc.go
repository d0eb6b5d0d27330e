// Package runner drives a single root agent against a session store.
//
// A Runner owns the invocation lifecycle: it loads the session, appends the
// user message, runs the agent in a goroutine, persists every complete event
// and streams all events to the caller. When the agent pauses on an
// interrupt the runner keeps the interrupt state per session; Resume answers
// the pending interrupts and continues the same conversation, so tool calls
// that were waiting for approval execute with their original tool-use ids.
//
// Multi-agent runs are driven by the multiagent package instead; an
// orchestrator can still be exposed through a Runner by wrapping it as an
// agent.
package runner
