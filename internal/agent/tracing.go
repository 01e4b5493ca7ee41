package agent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer binds lazily to the globally registered provider, so runs
// without one cost nothing.
var tracer = otel.Tracer("github.com/vinayprograms/taskagent/internal/agent")

func startRunSpan(ctx context.Context, role, model string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "agent.run")
	span.SetAttributes(
		attribute.String("agent.role", role),
		attribute.String("agent.model", model),
	)
	return ctx, span
}

// endRunSpan closes the run span with its outcome. status names how the
// run ended: complete, round_limit, repeat_guard, missing_file_guard or
// transport_error.
func endRunSpan(span trace.Span, status string, rounds int, err error) {
	span.SetAttributes(
		attribute.String("agent.status", status),
		attribute.Int("agent.rounds", rounds),
	)
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func startRoundSpan(ctx context.Context, round int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "agent.round")
	span.SetAttributes(attribute.Int("agent.round", round))
	return ctx, span
}

func startToolSpan(ctx context.Context, tool string, round int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "tool."+tool)
	span.SetAttributes(
		attribute.String("tool.name", tool),
		attribute.Int("tool.round", round),
	)
	return ctx, span
}

func endToolSpan(span trace.Span, isError bool, err error) {
	span.SetAttributes(attribute.Bool("tool.error", isError))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
