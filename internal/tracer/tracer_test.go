package tracer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitDisabledIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(Config{ServiceName: "contentgen"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.Same(t, before, otel.GetTracerProvider())

	ctx, span := Start(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
}

func TestInitExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Init(Config{ServiceName: "contentgen", Enabled: true, SampleRate: 1, Output: &buf})
	require.NoError(t, err)

	ctx, span := Start(context.Background(), "llm.generate")
	id := TraceID(ctx)
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Len(t, id, 32)
	assert.Contains(t, buf.String(), `"Name":"llm.generate"`)
	assert.Contains(t, buf.String(), id)
	assert.Contains(t, buf.String(), "contentgen")
}

func TestSamplerBounds(t *testing.T) {
	sr := tracetest.NewSpanRecorder()

	never := sdktrace.NewTracerProvider(sdktrace.WithSampler(Sampler(0)), sdktrace.WithSpanProcessor(sr))
	_, span := never.Tracer(Name).Start(context.Background(), "dropped")
	span.End()
	assert.Empty(t, sr.Ended())

	always := sdktrace.NewTracerProvider(sdktrace.WithSampler(Sampler(1)), sdktrace.WithSpanProcessor(sr))
	_, span = always.Tracer(Name).Start(context.Background(), "kept")
	span.End()
	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, "kept", sr.Ended()[0].Name())
}
