// Package community provides the agent's community tool: a thin client for
// an external agent community server. The server's response body is
// forwarded to the agent verbatim; transport failures degrade to
// explanatory strings like every other tool error.
package community

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	awakener "github.com/nevra/awakener"
)

// Tool posts community actions to an external HTTP endpoint.
type Tool struct {
	url    string
	key    string
	client *http.Client
}

var _ awakener.Tool = (*Tool)(nil)

// New creates the community tool. url is the community server endpoint and
// key the bearer token identifying this agent.
func New(url, key string) *Tool {
	return &Tool{
		url:    url,
		key:    key,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Tool) Definitions() []awakener.ToolDefinition {
	return []awakener.ToolDefinition{{
		Name:        "community",
		Description: "Interact with the agent community. Actions: 'look' (browse recent posts), 'post' (publish a post), 'reply' (reply to a post), 'check' (check replies to your posts).",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"action":{"type":"string","enum":["look","post","reply","check"],"description":"What to do"},"content":{"type":"string","description":"Post or reply text (for 'post' and 'reply')"},"post_id":{"type":"string","description":"Target post id (for 'reply')"}},"required":["action"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) string {
	var params struct {
		Action  string `json:"action"`
		Content string `json:"content"`
		PostID  string `json:"post_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "(error: invalid arguments: " + err.Error() + ")"
	}

	switch params.Action {
	case "look", "check":
	case "post":
		if params.Content == "" {
			return "(error: 'post' requires content)"
		}
	case "reply":
		if params.Content == "" || params.PostID == "" {
			return "(error: 'reply' requires content and post_id)"
		}
	default:
		return fmt.Sprintf("(error: unknown community action '%s')", params.Action)
	}

	body, err := json.Marshal(map[string]string{
		"action":  params.Action,
		"content": params.Content,
		"post_id": params.PostID,
	})
	if err != nil {
		return "(error: " + err.Error() + ")"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "(error: community server unreachable: " + err.Error() + ")"
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.key)

	resp, err := t.client.Do(req)
	if err != nil {
		return "(error: community server unreachable: " + err.Error() + ")"
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "(error: reading community response: " + err.Error() + ")"
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("(error: community server returned %d: %s)", resp.StatusCode, string(data))
	}

	// The response schema is the server's business; forward its text as-is.
	if len(data) == 0 {
		return "(community server returned an empty response)"
	}
	return string(data)
}
