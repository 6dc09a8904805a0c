package community

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func run(t *testing.T, tool *Tool, args string) string {
	t.Helper()
	return tool.Execute(context.Background(), "community", json.RawMessage(args))
}

func TestExecuteForwardsRequestAndResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("request body: %v", err)
		}
		io.WriteString(w, "Posted! Your post id is 77.")
	}))
	defer srv.Close()

	tool := New(srv.URL, "agent-key")
	got := run(t, tool, `{"action": "post", "content": "hello world"}`)

	// The server's wording reaches the agent untouched.
	if got != "Posted! Your post id is 77." {
		t.Errorf("response = %q", got)
	}
	if gotAuth != "Bearer agent-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["action"] != "post" || gotBody["content"] != "hello world" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestExecuteValidatesArguments(t *testing.T) {
	tool := New("http://unused.invalid", "k")

	tests := []struct {
		args string
		want string
	}{
		{`{"action": "post"}`, "'post' requires content"},
		{`{"action": "reply", "content": "hi"}`, "'reply' requires content and post_id"},
		{`{"action": "shout"}`, "unknown community action"},
	}
	for _, tt := range tests {
		if got := run(t, tool, tt.args); !strings.Contains(got, tt.want) {
			t.Errorf("Execute(%s) = %q, want mention of %q", tt.args, got, tt.want)
		}
	}
}

func TestExecuteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	got := run(t, New(srv.URL, "k"), `{"action": "look"}`)
	if !strings.Contains(got, "429") || !strings.Contains(got, "rate limited") {
		t.Errorf("response = %q", got)
	}
}

func TestExecuteUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	got := run(t, New(srv.URL, "k"), `{"action": "check"}`)
	if !strings.HasPrefix(got, "(error: community server unreachable:") {
		t.Errorf("response = %q", got)
	}
}

func TestExecuteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	got := run(t, New(srv.URL, "k"), `{"action": "look"}`)
	if got != "(community server returned an empty response)" {
		t.Errorf("response = %q", got)
	}
}
