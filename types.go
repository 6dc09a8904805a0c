package awakener

import "encoding/json"

// --- LLM protocol types ---

// ChatMessage is one turn in a round's conversation sequence. The sequence is
// rebuilt fresh every round; nothing is carried across rounds except through
// the timeline replay in the context builder.
type ChatMessage struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	Reasoning  string     `json:"reasoning_content,omitempty"` // assistant only (thinking models)
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`        // assistant only
	ToolCallID string     `json:"tool_call_id,omitempty"`      // tool only
	Stamp      string     `json:"-"`                           // local HH:MM:SS, assistant only
}

// ToolCall is a single tool invocation requested by the LLM. The ID is opaque
// and assigned by the provider; Args may be malformed JSON (see jsonrepair).
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type ChatRequest struct {
	Messages    []ChatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// ChatResponse is the fully accumulated result of one LLM call. For streamed
// calls the provider folds all deltas into this before returning.
type ChatResponse struct {
	Content      string     `json:"content"`
	Reasoning    string     `json:"reasoning_content,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        Usage      `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolDefinition describes one callable tool in OpenAI function-calling form.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// --- Round types ---

// RoundResult is what one pass through the tool loop produces.
// Err is non-nil only for stream/API failures; the summary accumulated up to
// the failure point is still valid.
type RoundResult struct {
	ToolsUsed int
	Summary   string // all assistant text of the round, timestamp-prefixed
	ActionLog string // assistant text of turns that triggered tool calls
	Err       error
}

// TimelineEntry is the per-round durable record, one JSON line in
// data/timeline/YYYY-MM-DD.jsonl. Unknown fields are tolerated on read.
type TimelineEntry struct {
	Round     int     `json:"round"`
	Timestamp string  `json:"timestamp"` // UTC, RFC 3339
	ToolsUsed int     `json:"tools_used"`
	Duration  float64 `json:"duration"` // seconds
	Summary   string  `json:"summary"`
	ActionLog string  `json:"action_log"`
}

// FeedPost is the public per-round activity record derived from the auditor
// delta, one JSON line in data/feed.jsonl.
type FeedPost struct {
	Round     int      `json:"round"`
	Timestamp string   `json:"timestamp"` // UTC, RFC 3339
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Quote     string   `json:"quote,omitempty"`
}

// --- Run state ---

// State is the scheduler's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateWaiting  State = "waiting"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// RunState is the process-wide status snapshot. Mutated only by the
// scheduler's worker; read by the control plane and the broadcast bus.
type RunState struct {
	State            State  `json:"state"`
	CurrentRound     int    `json:"current_round"`
	TotalRounds      int    `json:"total_rounds"`
	LastRoundTools   int    `json:"last_round_tools"`
	LastRoundSummary string `json:"last_round_summary"`
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}
