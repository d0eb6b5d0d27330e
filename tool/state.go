package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentgraph/core"
)

// StateTool lets a model read and write shared state, inspect the
// conversation, end its turn, escalate, or ask a human for input.
//
// Values written with set_state travel on the function response event; inside
// an orchestrated run they are merged into the run's shared state so later
// nodes can read them.
type StateTool struct {
	name        string
	description string
}

// NewStateTool creates the state tool.
func NewStateTool() *StateTool {
	return &StateTool{
		name: "state_manager",
		description: "Manages shared state and flow control. " +
			"Supports operations: get_state, set_state, get_session_history, " +
			"skip_summarization, escalate, request_input.",
	}
}

// Name returns the tool identifier.
func (t *StateTool) Name() string { return t.name }

// Description returns the tool description.
func (t *StateTool) Description() string { return t.description }

// Parameters returns the JSON schema for tool parameters.
func (t *StateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{
					"get_state", "set_state", "get_session_history",
					"skip_summarization", "escalate", "request_input",
				},
				"description": "The operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key for get_state/set_state, input name for request_input",
			},
			"value": map[string]any{
				"description": "Value for set_state (any type)",
			},
			"question": map[string]any{
				"type":        "string",
				"description": "Question shown to the human for request_input",
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface.
func (t *StateTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, _ := args["operation"].(string)

	switch operation {
	case "get_state":
		return t.handleGetState(args, toolCtx)
	case "set_state":
		return t.handleSetState(args, toolCtx)
	case "get_session_history":
		return t.handleGetSessionHistory(toolCtx)
	case "skip_summarization":
		toolCtx.SkipSummarization()
		return map[string]any{"success": true, "message": "Turn ends with this result"}, nil
	case "escalate":
		toolCtx.Escalate()
		return map[string]any{"success": true, "message": "Escalation initiated"}, nil
	case "request_input":
		return t.handleRequestInput(args, toolCtx)
	case "":
		return nil, fmt.Errorf("operation parameter is required")
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

func (t *StateTool) handleGetState(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("key parameter is required for get_state operation")
	}

	value, exists := toolCtx.GetState(key)

	return map[string]any{"key": key, "exists": exists, "value": value}, nil
}

func (t *StateTool) handleSetState(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("key parameter is required for set_state operation")
	}

	value := args["value"]
	toolCtx.SetState(key, value)

	return map[string]any{
		"key":     key,
		"value":   value,
		"success": true,
	}, nil
}

// handleRequestInput pauses the run until a human answers. On resume the
// answer is returned as the tool result.
func (t *StateTool) handleRequestInput(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	name, _ := args["key"].(string)
	if name == "" {
		name = "input"
	}

	question, _ := args["question"].(string)

	answer, err := toolCtx.Interrupt(name, question)
	if err != nil {
		return nil, err
	}

	return map[string]any{"key": name, "answer": answer}, nil
}

func (t *StateTool) handleGetSessionHistory(toolCtx *core.ToolContext) (any, error) {
	history := toolCtx.GetSessionHistory()

	events := make([]map[string]any, len(history))
	for i, ev := range history {
		events[i] = map[string]any{
			"author":    ev.Author,
			"timestamp": ev.Timestamp,
		}

		if ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}

		var summary []string
		for _, part := range ev.Content.Parts {
			switch p := part.(type) {
			case core.TextPart:
				preview := p.Text
				if len(preview) > 100 {
					preview = preview[:100] + "..."
				}
				summary = append(summary, "text: "+preview)
			case core.FunctionCallPart:
				summary = append(summary, "function_call: "+p.FunctionCall.Name)
			case core.FunctionResponsePart:
				summary = append(summary, "function_response: "+p.FunctionResponse.Name)
			default:
				summary = append(summary, "other")
			}
		}
		events[i]["content_summary"] = strings.Join(summary, ", ")
	}

	return map[string]any{"events": events, "count": len(events)}, nil
}
