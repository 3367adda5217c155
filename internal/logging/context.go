package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// extractContextFields returns trace_id and span_id from the span stored
// in ctx, or nil when ctx carries no valid span.
func extractContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil
	}

	return map[string]interface{}{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	}
}
