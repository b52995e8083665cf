package tracer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSampler(t *testing.T) {
	assert.True(t, strings.Contains(Sampler(1).Description(), "AlwaysOnSampler"))
	assert.True(t, strings.Contains(Sampler(0).Description(), "AlwaysOffSampler"))
	assert.True(t, strings.Contains(Sampler(0.25).Description(), "TraceIDRatioBased{0.25}"))
}

func TestInit_DisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTraceAndSpanID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, SpanID(context.Background()))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.Len(t, TraceID(ctx), 32)
	assert.Len(t, SpanID(ctx), 16)
}
