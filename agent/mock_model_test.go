package agent

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
)

// mockModel answers Generate with whatever the expectation returns.
type mockModel struct{ mock.Mock }

func (m *mockModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(ctx, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	if resp, ok := args.Get(0).(*model.Response); ok && resp != nil {
		respCh <- *resp
	}
	if err := args.Error(1); err != nil {
		errCh <- err
	}

	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *mockModel) Info() model.Info {
	return m.Called().Get(0).(model.Info)
}

func TestModelAgent_RequestShape(t *testing.T) {
	llm := &mockModel{}
	llm.On("Info").Return(model.Info{Name: "mocked", Provider: "mock", SupportsTools: true})
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		hasTool := slices.ContainsFunc(req.Tools, func(d model.ToolDefinition) bool {
			return d.Function.Name == "get_weather"
		})
		return hasTool && strings.Contains(req.Instructions, "Answer briefly.") && len(req.Contents) > 0
	})).Return(&model.Response{
		Content:      core.NewTextContent(core.RoleAssistant, "sunny"),
		FinishReason: "stop",
		Usage:        &model.TokenUsage{PromptTokens: 7, CompletionTokens: 1, TotalTokens: 8},
	}, nil).Once()

	a := NewModelAgent("forecaster", llm, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Answer briefly.")
		o.OutputKey = "answer"
	})
	a.RegisterTools(weatherTool())

	ic := newRunContext(t, "weather?")
	require.NoError(t, a.Run(ic))

	v, ok := ic.Session.GetState("answer")
	require.True(t, ok)
	assert.Equal(t, "sunny", v)

	events := ic.Session.GetEvents()
	last := events[len(events)-1]
	require.NotNil(t, last.Usage)
	assert.Equal(t, 8, last.Usage.TotalTokens)

	llm.AssertExpectations(t)
}

func TestModelAgent_ModelErrorPropagates(t *testing.T) {
	errUpstream := errors.New("rate limited")

	llm := &mockModel{}
	llm.On("Info").Return(model.Info{Name: "mocked"})
	llm.On("Generate", mock.Anything, mock.Anything).Return(nil, errUpstream).Once()

	a := NewModelAgent("helper", llm)

	err := a.Run(newRunContext(t, "hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpstream)
	assert.Contains(t, err.Error(), "model mocked")

	llm.AssertExpectations(t)
}
