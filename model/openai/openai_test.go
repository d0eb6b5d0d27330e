package openai

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
)

func TestBuildMessages_OrderAndToolMessages(t *testing.T) {
	req := model.Request{
		Instructions: "be brief",
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "hi"),
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "f", Arguments: "{}"}},
			}},
			{Role: core.RoleTool, Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "f", Response: "ok"}},
			}},
			core.NewTextContent(core.RoleAssistant, "done"),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestToolResultText(t *testing.T) {
	assert.Equal(t, "plain", toolResultText(core.FunctionResponse{Response: "plain"}))
	assert.Equal(t, `{"n":1}`, toolResultText(core.FunctionResponse{Response: map[string]int{"n": 1}}))
	assert.Equal(t, "error: boom", toolResultText(core.FunctionResponse{Error: errors.New("boom").Error()}))
}

func TestFinalParts_SortedByIndex(t *testing.T) {
	var b strings.Builder
	b.WriteString("thinking")

	parts := finalParts(&b, map[int64]*aggCall{
		1: {id: "b", name: "second"},
		0: {id: "a", name: "first"},
	})

	require.Len(t, parts, 3)
	assert.Equal(t, "thinking", parts[0].(core.TextPart).Text)
	assert.Equal(t, "first", parts[1].(core.FunctionCallPart).FunctionCall.Name)
	assert.Equal(t, "second", parts[2].(core.FunctionCallPart).FunctionCall.Name)
}
