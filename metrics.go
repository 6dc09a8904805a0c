package awakener

import "time"

// Metrics receives the runtime's throughput measurements: completed rounds,
// LLM requests with their token usage, and tool executions. Implementations
// are called from the scheduler's worker only. NoopMetrics is the default.
type Metrics interface {
	RoundCompleted(round, toolsUsed int, duration time.Duration)
	LLMRequest(usage Usage, duration time.Duration, err error)
	ToolExecuted(name string)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RoundCompleted(int, int, time.Duration) {}
func (NoopMetrics) LLMRequest(Usage, time.Duration, error) {}
func (NoopMetrics) ToolExecuted(string)                    {}
