// Package agent contains the executable units driven by runners and
// orchestrator nodes:
//
//  1. ModelAgent, a model-driven conversational agent with tools, hooks and
//     optional handoff targets, executed through the flow package
//  2. FuncAgent, a plain Go function adapted to core.Agent
//  3. LoopAgent and SequentialAgent, composites that repeat one child or
//     chain several on a single working session and appear as one node
//  4. BaseAgent, the shared identity plumbing all of them embed
//
// Agents never own a session. Everything they produce is emitted through the
// InvocationContext they receive, so the same agent value can be driven by a
// runner, a Graph node or a Swarm member.
package agent
