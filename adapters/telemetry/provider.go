package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewProvider installs an SDK tracer provider as the global one and returns
// it together with a shutdown function. Callers that already manage their own
// provider can skip this and construct OTelTracer directly.
func NewProvider(opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, func(context.Context) error) {
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown
}
