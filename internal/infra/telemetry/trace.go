package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type traceContextKey struct{}

// TraceMeta correlates all tool-call audit records within one user turn.
type TraceMeta struct {
	TraceID string
}

func (m TraceMeta) IsZero() bool {
	return m.TraceID == ""
}

// NewTraceID returns a fresh trace identifier for one user turn.
func NewTraceID() string {
	return uuid.NewString()
}

func WithTraceMeta(ctx context.Context, meta TraceMeta) context.Context {
	if meta.IsZero() {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceContextKey{}, meta)
}

func TraceMetaFromContext(ctx context.Context) (TraceMeta, bool) {
	if ctx == nil {
		return TraceMeta{}, false
	}
	meta, ok := ctx.Value(traceContextKey{}).(TraceMeta)
	return meta, ok && !meta.IsZero()
}

// SpanTraceIDFromContext reads the trace id off an instrumented span
// context, when the orchestrator handed one in.
func SpanTraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}

// TraceIDFromContext returns the turn's trace id. An explicit TraceMeta
// wins over an instrumented span context; one is minted only when the
// orchestrator supplied neither.
func TraceIDFromContext(ctx context.Context) string {
	if meta, ok := TraceMetaFromContext(ctx); ok {
		return meta.TraceID
	}
	if traceID, ok := SpanTraceIDFromContext(ctx); ok {
		return traceID
	}
	return NewTraceID()
}
