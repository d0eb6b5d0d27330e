// Package telemetry wraps OpenTelemetry tracing and metrics for orchestrated
// runs. Providers default to the globally registered ones, so nothing is
// exported unless the application installs an SDK.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentgraph/interrupt"
)

const instrumentationName = "github.com/hupe1980/agentgraph"

// Telemetry bundles a tracer and the metric instruments.
type Telemetry struct {
	tracer  trace.Tracer
	metrics *Metrics
}

// New creates a Telemetry from the given providers. Nil providers fall back to
// the global ones.
func New(tp trace.TracerProvider, mp metric.MeterProvider) *Telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	return &Telemetry{
		tracer:  tp.Tracer(instrumentationName),
		metrics: newMetricsOrNoop(mp),
	}
}

// Default returns a Telemetry bound to the global providers.
func Default() *Telemetry { return New(nil, nil) }

// StartOrchestration starts a span for one graph or swarm run.
func (t *Telemetry) StartOrchestration(ctx context.Context, kind, name string, resumed bool) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "multiagent."+kind,
		trace.WithAttributes(
			attribute.String("orchestrator.kind", kind),
			attribute.String("orchestrator.name", name),
			attribute.Bool("orchestrator.resumed", resumed),
		),
	)
}

// StartNode starts a span for one node activation.
func (t *Telemetry) StartNode(ctx context.Context, orchestrator, nodeID, nodeType string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "node",
		trace.WithAttributes(
			attribute.String("orchestrator.name", orchestrator),
			attribute.String("node.id", nodeID),
			attribute.String("node.type", nodeType),
		),
	)
}

// StartInvocation starts a span for one agent invocation.
func (t *Telemetry) StartInvocation(ctx context.Context, agentName, invocationID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "invocation",
		trace.WithAttributes(
			attribute.String("agent.name", agentName),
			attribute.String("invocation.id", invocationID),
		),
	)
}

// StartModelCall starts a span for a single model request.
func (t *Telemetry) StartModelCall(ctx context.Context, agentName, modelName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "model",
		trace.WithAttributes(
			attribute.String("agent.name", agentName),
			attribute.String("model.name", modelName),
		),
	)
}

// StartToolCall starts a span for a tool call.
func (t *Telemetry) StartToolCall(ctx context.Context, agentName, toolName, callID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("agent.name", agentName),
			attribute.String("toolcall.tool", toolName),
			attribute.String("toolcall.id", callID),
		),
	)
}

// EndSpan ends span recording err. An interrupt is a pause, not a failure,
// and only marks the span as interrupted.
func EndSpan(span trace.Span, err error) {
	defer span.End()

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	if sig, ok := interrupt.AsSignal(err); ok {
		span.SetAttributes(
			attribute.Bool("interrupted", true),
			attribute.Int("interrupt.count", len(sig.Interrupts)),
		)
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
