// Package core provides the foundational domain types and execution contexts
// shared by agents, flows and orchestrators:
//
//   - Agents (units of model-driven work driven by an InvocationContext)
//   - Sessions (conversational containers with state and event history)
//   - Events (immutable communication and handoff records)
//   - InvocationContext / ToolContext (scoped execution, tool sandboxing and
//     interrupt raising)
//   - Usage accounting and the optional Snapshotter contract
//
// Persistence backends, concrete agents and orchestration strategies live in
// other packages; core only exposes the small interfaces they meet at.
package core
