package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/hupe1980/agentgraph/core"
)

// Metrics holds all metric instruments.
type Metrics struct {
	NodeExecutions metric.Int64Counter
	NodeDuration   metric.Float64Histogram
	Handoffs       metric.Int64Counter
	Interrupts     metric.Int64Counter
	ToolCalls      metric.Int64Counter
	Tokens         metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	m.NodeExecutions, err = meter.Int64Counter("agentgraph.node.executions",
		metric.WithDescription("Number of node activations by terminal status"))
	if err != nil {
		return nil, err
	}

	m.NodeDuration, err = meter.Float64Histogram("agentgraph.node.duration_seconds",
		metric.WithDescription("Node execution duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.Handoffs, err = meter.Int64Counter("agentgraph.handoffs",
		metric.WithDescription("Number of swarm handoffs"))
	if err != nil {
		return nil, err
	}

	m.Interrupts, err = meter.Int64Counter("agentgraph.interrupts",
		metric.WithDescription("Number of interrupts raised"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("agentgraph.tool.calls",
		metric.WithDescription("Number of tool calls"))
	if err != nil {
		return nil, err
	}

	m.Tokens, err = meter.Int64Counter("agentgraph.tokens",
		metric.WithDescription("Model tokens consumed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func newMetricsOrNoop(mp metric.MeterProvider) *Metrics {
	if m, err := NewMetrics(mp); err == nil {
		return m
	}

	m, _ := NewMetrics(noop.NewMeterProvider())

	return m
}

// NodeExecuted records one node activation.
func (t *Telemetry) NodeExecuted(ctx context.Context, orchestrator, status string, dur time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("orchestrator.name", orchestrator),
		attribute.String("node.status", status),
	)
	t.metrics.NodeExecutions.Add(ctx, 1, attrs)
	t.metrics.NodeDuration.Record(ctx, dur.Seconds(), attrs)
}

// Handoff records a swarm handoff.
func (t *Telemetry) Handoff(ctx context.Context, orchestrator, from, to string) {
	t.metrics.Handoffs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("orchestrator.name", orchestrator),
		attribute.String("handoff.from", from),
		attribute.String("handoff.to", to),
	))
}

// Interrupted records n interrupts raised by source.
func (t *Telemetry) Interrupted(ctx context.Context, source string, n int) {
	if n <= 0 {
		return
	}
	t.metrics.Interrupts.Add(ctx, int64(n), metric.WithAttributes(attribute.String("interrupt.source", source)))
}

// ToolCalled records a tool call.
func (t *Telemetry) ToolCalled(ctx context.Context, toolName string, failed bool) {
	t.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("toolcall.tool", toolName),
		attribute.Bool("toolcall.failed", failed),
	))
}

// TokensUsed records prompt and completion tokens for a model call.
func (t *Telemetry) TokensUsed(ctx context.Context, modelName string, u core.Usage) {
	if u.IsZero() {
		return
	}
	t.metrics.Tokens.Add(ctx, int64(u.PromptTokens), metric.WithAttributes(
		attribute.String("model.name", modelName), attribute.String("token.type", "prompt")))
	t.metrics.Tokens.Add(ctx, int64(u.CompletionTokens), metric.WithAttributes(
		attribute.String("model.name", modelName), attribute.String("token.type", "completion")))
}
