package awakener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// scriptedProvider returns pre-baked responses in order, streaming each one
// as a minimal chunk sequence. Shared across loop_test.go and
// scheduler_test.go.
type scriptedProvider struct {
	responses []ChatResponse
	errs      []error
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) next() (ChatResponse, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return ChatResponse{}, p.errs[i]
	}
	if i >= len(p.responses) {
		return ChatResponse{Content: "done", FinishReason: "stop"}, nil
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) Chat(_ context.Context, _ ChatRequest) (ChatResponse, error) {
	return p.next()
}

func (p *scriptedProvider) ChatStream(ctx context.Context, _ ChatRequest, ch chan<- StreamChunk) (ChatResponse, error) {
	resp, err := p.next()
	if err != nil {
		close(ch)
		return ChatResponse{}, err
	}
	if resp.Reasoning != "" {
		ch <- StreamChunk{Reasoning: resp.Reasoning}
	}
	if resp.Content != "" {
		ch <- StreamChunk{Text: resp.Content}
	}
	ch <- StreamChunk{FinishReason: resp.FinishReason}
	close(ch)
	return resp, nil
}

// echoTool records invocations and echoes its arguments.
type echoTool struct {
	name  string
	calls []json.RawMessage
}

func (t *echoTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: t.name, Description: "echo arguments"}}
}

func (t *echoTool) Execute(_ context.Context, name string, args json.RawMessage) string {
	t.calls = append(t.calls, args)
	return fmt.Sprintf("echo %s: %s", name, string(args))
}

func call(id, name, args string) ToolCall {
	return ToolCall{ID: id, Name: name, Args: json.RawMessage(args)}
}

// recordingMetrics counts measurements for assertions.
type recordingMetrics struct {
	rounds   int
	llmCalls int
	tokens   int
	tools    []string
}

func (m *recordingMetrics) RoundCompleted(_, _ int, _ time.Duration) {
	m.rounds++
}

func (m *recordingMetrics) LLMRequest(usage Usage, _ time.Duration, _ error) {
	m.llmCalls++
	m.tokens += usage.InputTokens + usage.OutputTokens
}

func (m *recordingMetrics) ToolExecuted(name string) {
	m.tools = append(m.tools, name)
}
