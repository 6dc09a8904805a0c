package openaicompat

import (
	"encoding/json"
	"fmt"

	awakener "github.com/nevra/awakener"
)

// ParseResponse converts a non-streaming API response into the accumulated
// form the rest of the runtime consumes.
func ParseResponse(resp ChatResponse) (awakener.ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return awakener.ChatResponse{}, fmt.Errorf("response has no choices")
	}
	choice := resp.Choices[0]
	if choice.Message == nil {
		return awakener.ChatResponse{}, fmt.Errorf("response choice has no message")
	}

	out := awakener.ChatResponse{
		Content:      choice.Message.Content,
		Reasoning:    choice.Message.ReasoningContent,
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, awakener.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	if resp.Usage != nil {
		out.Usage = awakener.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out, nil
}
