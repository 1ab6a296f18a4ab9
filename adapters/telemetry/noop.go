package telemetry

import (
	"context"

	"go.trai.ch/fanout/core/ports"
)

// NoopTracer is a ports.Tracer that records nothing.
type NoopTracer struct{}

// NewNoopTracer returns a tracer that discards all spans.
func NewNoopTracer() *NoopTracer {
	return &NoopTracer{}
}

// Start returns a span that does nothing.
func (*NoopTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

// EmitPlan does nothing.
func (*NoopTracer) EmitPlan(context.Context, []string) {}

type noopSpan struct{}

func (noopSpan) End()                     {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) SetAttribute(string, any) {}
