package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	awakener "github.com/nevra/awakener"
)

// StreamSSE reads an SSE stream from body, sends delta chunks to ch, and
// returns the fully accumulated response (content + reasoning + tool calls
// + usage).
//
// The channel is closed when streaming completes. Callers should read from
// ch in a separate goroutine. The context cancels channel sends when the
// consumer is no longer interested.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
func StreamSSE(ctx context.Context, body io.Reader, ch chan<- awakener.StreamChunk) (awakener.ChatResponse, error) {
	defer close(ch)

	scanner := bufio.NewScanner(body)
	// Increase buffer for large SSE payloads.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var content, reasoning strings.Builder
	var usage awakener.Usage
	finishReason := ""

	// Tool calls stream incrementally: each fragment carries an index, and
	// arguments arrive as string pieces to be concatenated per index.
	type partialToolCall struct {
		ID   string
		Name string
		Args strings.Builder
	}
	// Pointers: a strings.Builder must not be copied once written to, and
	// append would copy the structs when the slice grows.
	var toolCalls []*partialToolCall

	for scanner.Scan() {
		line := scanner.Text()

		// SSE lines that carry data start with "data: ".
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		// End-of-stream sentinel.
		if data == "[DONE]" {
			break
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}

		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			// Usage-only chunk (some providers send this).
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
		delta := choice.Delta
		if delta == nil {
			continue
		}

		out := awakener.StreamChunk{
			Text:      delta.Content,
			Reasoning: delta.ReasoningContent,
		}
		content.WriteString(delta.Content)
		reasoning.WriteString(delta.ReasoningContent)

		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			for len(toolCalls) <= idx {
				toolCalls = append(toolCalls, &partialToolCall{})
			}
			if tc.ID != "" {
				toolCalls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[idx].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[idx].Args.WriteString(tc.Function.Arguments)
			}
			out.ToolCallDeltas = append(out.ToolCallDeltas, awakener.ToolCallDelta{
				Index: idx,
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Args:  tc.Function.Arguments,
			})
		}

		if out.Text == "" && out.Reasoning == "" && len(out.ToolCallDeltas) == 0 {
			continue
		}
		select {
		case ch <- out:
		case <-ctx.Done():
			return awakener.ChatResponse{}, ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return awakener.ChatResponse{}, err
	}

	// Assemble the accumulated tool calls. Argument fragments may still be
	// malformed JSON; the loop's repair path deals with that, not the
	// provider.
	var calls []awakener.ToolCall
	for _, tc := range toolCalls {
		if tc.ID == "" && tc.Name == "" {
			continue
		}
		calls = append(calls, awakener.ToolCall{
			ID:   tc.ID,
			Name: tc.Name,
			Args: json.RawMessage(tc.Args.String()),
		})
	}

	return awakener.ChatResponse{
		Content:      content.String(),
		Reasoning:    reasoning.String(),
		ToolCalls:    calls,
		FinishReason: finishReason,
		Usage:        usage,
	}, nil
}
