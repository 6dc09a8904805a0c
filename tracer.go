package awakener

import "context"

// Tracer records round and tool spans. The observer package provides an
// OpenTelemetry-backed implementation; NoopTracer keeps instrumentation
// optional everywhere else.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span is one traced operation.
type Span interface {
	SetAttribute(key string, value any)
	RecordError(err error)
	End()
}

// NoopTracer discards all spans.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) End()                     {}
