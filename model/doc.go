// Package model is the boundary between agents and language model providers.
//
// A Model turns a Request (instructions, conversation, tool declarations)
// into a stream of Responses: partial chunks followed by one final response
// carrying tool calls, the finish reason and token usage. Usage travels up
// through agent events into node and run results.
//
// ScriptedModel replays fixed turns for deterministic tests of agents,
// graphs and swarms; MockModel answers by prompt lookup. The anthropic and
// openai subpackages adapt the vendor SDKs.
package model
