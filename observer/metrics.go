package observer

import (
	"context"
	"time"

	awakener "github.com/nevra/awakener"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// otelMetrics implements awakener.Metrics on the OTLP instruments.
type otelMetrics struct {
	inst *Instruments
}

// NewMetrics returns an awakener.Metrics that feeds the given instruments.
func NewMetrics(inst *Instruments) awakener.Metrics {
	return &otelMetrics{inst: inst}
}

func (m *otelMetrics) RoundCompleted(round, toolsUsed int, duration time.Duration) {
	ctx := context.Background()
	m.inst.Rounds.Add(ctx, 1)
	m.inst.RoundDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Int("tools_used", toolsUsed)))
}

func (m *otelMetrics) LLMRequest(usage awakener.Usage, duration time.Duration, err error) {
	ctx := context.Background()
	m.inst.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("success", err == nil)))
	m.inst.LLMDuration.Record(ctx, float64(duration.Milliseconds()))
	if usage.InputTokens > 0 {
		m.inst.TokenUsage.Add(ctx, int64(usage.InputTokens),
			metric.WithAttributes(attribute.String("direction", "input")))
	}
	if usage.OutputTokens > 0 {
		m.inst.TokenUsage.Add(ctx, int64(usage.OutputTokens),
			metric.WithAttributes(attribute.String("direction", "output")))
	}
}

func (m *otelMetrics) ToolExecuted(name string) {
	m.inst.ToolExecutions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("tool", name)))
}

var _ awakener.Metrics = (*otelMetrics)(nil)
