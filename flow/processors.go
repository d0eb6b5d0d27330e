package flow

import (
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	internalutil "github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/model"
)

// InstructionsProcessor handles system prompt and instruction processing.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest renders the agent instructions against session state.
func (p *InstructionsProcessor) ProcessRequest(ic *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(ic)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	ic.LogDebug("flow.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	req.Instructions, err = internalutil.RenderTemplate(instructions, ic.Session.StateSnapshot())
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return nil
}

// ContentsProcessor adds the conversation history of the working session.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds history to the request. A truncated window never starts
// with a tool response whose call was cut off.
func (p *ContentsProcessor) ProcessRequest(ic *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	events := ic.Session.GetConversationHistory()

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
		for len(events) > 0 && events[0].Content.Role == core.RoleTool {
			events = events[1:]
		}
	}

	contents := make([]core.Content, 0, len(events))
	for _, ev := range events {
		if len(ev.Content.Parts) > 0 {
			contents = append(contents, *ev.Content)
		}
	}

	req.Contents = contents

	return nil
}
