package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "taskline/agent"

var (
	AttrPlanID    = attribute.Key("taskline.plan.id")
	AttrLoopStep  = attribute.Key("taskline.loop.step")
	AttrToolName  = attribute.Key("taskline.tool.name")
	AttrModel     = attribute.Key("taskline.llm.model")
	AttrChannel   = attribute.Key("taskline.channel")
	AttrDuplicate = attribute.Key("taskline.delivery.duplicate")
)

// Tracer returns the global tracer. It is a no-op until a provider is installed.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts an internal span with common attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan starts a span for an outbound call (reasoning agent, channel send).
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
