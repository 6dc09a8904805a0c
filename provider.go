package awakener

import "context"

// Provider abstracts the LLM backend.
type Provider interface {
	// Chat sends a request and returns a complete response. Used by the
	// snapshot auditor, which never streams.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatStream streams deltas into ch, then returns the fully accumulated
	// response. The provider closes ch when the stream ends. When req.Tools
	// is non-empty, the response may carry ToolCalls assembled from
	// per-index argument fragments.
	ChatStream(ctx context.Context, req ChatRequest, ch chan<- StreamChunk) (ChatResponse, error)
	// Name returns the provider name (e.g. "deepseek", "openrouter").
	Name() string
}

// StreamChunk is one discriminated delta from a streamed LLM call.
// Exactly one field group is meaningful per chunk.
type StreamChunk struct {
	// Text is an incremental piece of assistant content.
	Text string
	// Reasoning is an incremental piece of thinking-model output.
	Reasoning string
	// ToolCallDeltas are per-index tool call fragments.
	ToolCallDeltas []ToolCallDelta
	// FinishReason is set on the final chunk ("stop", "tool_calls", ...).
	FinishReason string
}

// ToolCallDelta is a partial tool call from one stream chunk. ID and Name
// arrive once; Args arrives as string fragments to be concatenated.
type ToolCallDelta struct {
	Index int
	ID    string
	Name  string
	Args  string
}
