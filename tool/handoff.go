package tool

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/agentgraph/core"
)

// HandoffToolName is the name under which the handoff tool is exposed to models.
const HandoffToolName = "handoff_to_agent"

// HandoffTarget describes an agent control can be handed to.
type HandoffTarget struct {
	Name        string
	Description string
}

// HandoffTool lets a model pass control to another agent together with a
// message and a context map for the receiving agent. The request is recorded
// as transfer actions on the function response event; orchestrators act on
// them after the agent turn ends.
type HandoffTool struct {
	targets []HandoffTarget
}

// NewHandoffTool builds a handoff tool restricted to targets. With no targets
// any agent name is accepted and the orchestrator validates it.
func NewHandoffTool(targets ...HandoffTarget) *HandoffTool {
	return &HandoffTool{targets: slices.Clone(targets)}
}

// Name implements Tool.
func (t *HandoffTool) Name() string { return HandoffToolName }

// Description implements Tool.
func (t *HandoffTool) Description() string {
	var sb strings.Builder
	sb.WriteString("Transfer control to another agent when it is better suited to continue the task. ")
	sb.WriteString("Pass a message describing what they should do and any context they need.")

	if len(t.targets) > 0 {
		sb.WriteString("\nAvailable agents:")
		for _, target := range t.targets {
			sb.WriteString("\n- ")
			sb.WriteString(target.Name)
			if target.Description != "" {
				sb.WriteString(": ")
				sb.WriteString(target.Description)
			}
		}
	}

	return sb.String()
}

// Parameters implements Tool.
func (t *HandoffTool) Parameters() map[string]any {
	agentName := map[string]any{"type": "string", "description": "Name of the agent to hand off to"}
	if len(t.targets) > 0 {
		names := make([]any, 0, len(t.targets))
		for _, target := range t.targets {
			names = append(names, target.Name)
		}
		agentName["enum"] = names
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": agentName,
			"message":    map[string]any{"type": "string", "description": "Message for the receiving agent"},
			"context":    map[string]any{"type": "object", "description": "Additional context to share"},
		},
		"required": []string{"agent_name", "message"},
	}
}

// Call implements Tool.
func (t *HandoffTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	name, _ := args["agent_name"].(string)
	if name == "" {
		return nil, NewToolError(HandoffToolName, "field 'agent_name' must be a non-empty string", CodeValidation)
	}

	if len(t.targets) > 0 && !slices.ContainsFunc(t.targets, func(h HandoffTarget) bool { return h.Name == name }) {
		return nil, NewToolError(HandoffToolName, fmt.Sprintf("unknown agent %q", name), "UNKNOWN_AGENT")
	}

	if name == tc.AgentName() {
		return nil, NewToolError(HandoffToolName, "cannot hand off to yourself", "INVALID_TARGET")
	}

	message, _ := args["message"].(string)
	handoffContext, _ := args["context"].(map[string]any)

	tc.Handoff(name, message, handoffContext)

	return map[string]any{"status": "handed_off", "agent_name": name}, nil
}
