package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/amoylab/boom/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.TracingConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Protocols(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	for _, proto := range []string{"http", "grpc", ""} {
		t.Run(proto, func(t *testing.T) {
			cfg := &config.TracingConfig{
				Enabled:     true,
				ServiceName: "boom-test",
				Protocol:    proto,
				Insecure:    true,
				SamplerRate: 2,
				Headers:     map[string]string{"x-key": "v"},
			}
			shutdown, err := InitTracing(context.Background(), cfg, zap.NewNop())
			require.NoError(t, err)
			require.NotNil(t, shutdown)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = shutdown(ctx)
		})
	}
}

func TestClampRate(t *testing.T) {
	assert.Equal(t, 0.0, clampRate(-1))
	assert.Equal(t, 0.5, clampRate(0.5))
	assert.Equal(t, 1.0, clampRate(3))
}

func TestBuilder_WithInMemoryProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	scope := Tracer("boom/test").Start(context.Background(), "op").
		WithAttrs(attribute.String("k", "v")).
		Fail(errors.New("boom"), "failed")
	scope.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("k", "v"))
}

func TestSpanScope_NilSafety(t *testing.T) {
	var s *SpanScope
	assert.NotPanics(t, func() {
		s.WithAttrs(attribute.Int("a", 1)).Fail(errors.New("x"), "x").End()
	})
}
