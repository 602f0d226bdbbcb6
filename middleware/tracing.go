package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/simd-personal/Inno-Supps/job"
)

// tracerName is the instrumentation scope name for job tracing.
const tracerName = "github.com/simd-personal/Inno-Supps"

// Tracing returns middleware that wraps job execution in an OpenTelemetry
// span from the global TracerProvider. Without a configured provider the
// noop tracer makes this a pass-through.
//
// Span attributes: innosupps.job.id, innosupps.job.type, innosupps.queue,
// innosupps.workspace_id, innosupps.attempts and innosupps.retries.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "innosupps.job.execute",
			trace.WithAttributes(
				attribute.String("innosupps.job.id", j.ID.String()),
				attribute.String("innosupps.job.type", j.Type),
				attribute.String("innosupps.queue", j.Queue),
				attribute.String("innosupps.workspace_id", j.WorkspaceID),
				attribute.Int("innosupps.attempts", j.Attempts),
				attribute.Int("innosupps.retries", j.Retries),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
