package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/orbit-agents/orbit"

// StartModelSpan opens a span around one model call.
func StartModelSpan(ctx context.Context, sessionID string, iteration int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "orbit.model_call",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("session.iteration", iteration),
		))
}

// StartToolSpan opens a span around one tool handler execution.
func StartToolSpan(ctx context.Context, tool, invocationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "orbit.tool_exec",
		trace.WithAttributes(
			attribute.String("tool.name", tool),
			attribute.String("tool.invocation_id", invocationID),
		))
}
