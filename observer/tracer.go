package observer

import (
	"context"
	"fmt"

	awakener "github.com/nevra/awakener"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// otelTracer implements awakener.Tracer using OpenTelemetry.
type otelTracer struct {
	inner trace.Tracer
}

// NewTracer returns an awakener.Tracer backed by the global OTEL
// TracerProvider. Call Init first to configure the provider; otherwise
// spans go to a no-op backend.
func NewTracer() awakener.Tracer {
	return &otelTracer{inner: otel.Tracer(scopeName)}
}

func (t *otelTracer) Start(ctx context.Context, name string) (context.Context, awakener.Span) {
	ctx, span := t.inner.Start(ctx, name)
	return ctx, &otelSpan{inner: span}
}

// otelSpan implements awakener.Span using an OTEL trace.Span.
type otelSpan struct {
	inner trace.Span
}

func (s *otelSpan) SetAttribute(key string, value any) {
	s.inner.SetAttributes(toOTELAttr(key, value))
}

func (s *otelSpan) RecordError(err error) {
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) End() {
	s.inner.End()
}

func toOTELAttr(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// compile-time checks
var (
	_ awakener.Tracer = (*otelTracer)(nil)
	_ awakener.Span   = (*otelSpan)(nil)
)
