package openaicompat

import (
	"encoding/json"

	awakener "github.com/nevra/awakener"
)

// BuildBody converts an awakener chat request into the OpenAI wire format.
func BuildBody(req awakener.ChatRequest, model string) ChatRequest {
	body := ChatRequest{
		Model:       model,
		Messages:    make([]Message, 0, len(req.Messages)),
		Temperature: req.Temperature,
	}

	for _, m := range req.Messages {
		msg := Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args := string(tc.Args)
			if args == "" {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCallRequest{
				ID:   tc.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		body.Messages = append(body.Messages, msg)
	}

	for _, def := range req.Tools {
		params := def.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		body.Tools = append(body.Tools, Tool{
			Type: "function",
			Function: Function{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}

	return body
}
