// Package multiagent composes agents into coordinated runs.
//
// Every unit of work is wrapped in a Node, which owns timing and failure
// isolation and tags each produced event with the node's identity. Two
// orchestrators drive nodes:
//
//   - Graph executes a static DAG. A node runs once all of its predecessors
//     completed and every edge condition holds; independent nodes of a
//     ready batch run concurrently. A failed node only blocks its
//     dependents.
//   - Swarm lets the active member decide who works next by handing off
//     through the handoff_to_agent tool. The run ends when a member answers
//     without a handoff or a limit is reached.
//
// Both stream multiplexed events through a Run and terminate with an
// Outcome: a *Result, or a *Suspension carrying the pending interrupts of a
// paused run. Resume answers those interrupts and continues the same run;
// interrupted nodes are re-executed while completed results are kept.
//
// Graphs and swarms nest: NewMultiAgentNode turns an orchestrator into a node
// of another one, and its events arrive wrapped in one more NodeStreamEvent.
package multiagent
