package telemetry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func instrumentedContext(t *testing.T) (context.Context, string) {
	t.Helper()
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
	})
	return trace.ContextWithSpanContext(context.Background(), sc), sc.TraceID().String()
}

func TestTraceIDFromContext_PrefersExplicitMeta(t *testing.T) {
	ctx, _ := instrumentedContext(t)
	ctx = WithTraceMeta(ctx, TraceMeta{TraceID: "turn-1"})

	require.Equal(t, "turn-1", TraceIDFromContext(ctx))
}

func TestTraceIDFromContext_ReadsSpanContext(t *testing.T) {
	ctx, want := instrumentedContext(t)

	got, ok := SpanTraceIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, want, got)
	require.Equal(t, want, TraceIDFromContext(ctx))
}

func TestTraceIDFromContext_MintsWhenAbsent(t *testing.T) {
	first := TraceIDFromContext(context.Background())
	second := TraceIDFromContext(context.Background())

	_, err := uuid.Parse(first)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, ok := SpanTraceIDFromContext(context.Background())
	require.False(t, ok)
}
