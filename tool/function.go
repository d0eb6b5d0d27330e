package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/interrupt"
)

// Error codes set on *ToolError by the adapters of this package.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
)

// FunctionTool exposes a Go function as a tool. Arguments are validated
// against the parameter schema before the function runs. Failures surface
// as *ToolError; an *interrupt.Signal passes through unchanged so the run
// can pause. A FunctionTool is immutable and safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from the fields of
// structType (see util.CreateSchema for the tag rules).
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// NewTypedTool derives the schema from T and decodes the validated
// arguments into a T before calling fn.
func NewTypedTool[T any](name, description string, fn func(toolCtx *core.ToolContext, args T) (any, error)) *FunctionTool {
	var zero T

	return NewFunctionTool(name, description, util.CreateSchema(zero), func(tc *core.ToolContext, raw map[string]any) (any, error) {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, NewToolError(name, err.Error(), CodeValidation)
		}

		var args T
		if err := json.Unmarshal(b, &args); err != nil {
			return nil, NewToolError(name, fmt.Sprintf("decode arguments: %v", err), CodeValidation)
		}

		return fn(tc, args)
	})
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and runs the function. A panic in the function is
// reported as a CodePanic tool error.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (result any, err error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool.call.panic", "tool", t.name, "panic", r)
			result, err = nil, NewToolError(t.name, fmt.Sprintf("panic: %v", r), CodePanic)
		}
	}()

	result, err = t.fn(toolCtx, args)

	switch {
	case err == nil:
		logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
		return result, nil
	case isSignal(err):
		logger.Debug("tool.call.interrupted", "tool", t.name)
		return nil, err
	}

	logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return nil, toolErr
	}

	return nil, NewToolError(t.name, err.Error(), CodeExecution)
}

func isSignal(err error) bool {
	_, ok := interrupt.AsSignal(err)
	return ok
}
