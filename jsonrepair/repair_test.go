package jsonrepair

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	if raw == nil {
		t.Fatal("repair returned nil")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("repaired output does not parse: %v\n%s", err, raw)
	}
	return m
}

func TestRepairValidInputPassesThrough(t *testing.T) {
	got := decode(t, Repair(`{"command": "echo hi"}`, "shell_execute"))
	if got["command"] != "echo hi" {
		t.Errorf("command = %v", got["command"])
	}
}

func TestRepairInvalidEscapes(t *testing.T) {
	got := decode(t, Repair(`{"path": "C:\Users\agent"}`, "read_file"))
	if got["path"] != "C:Usersagent" {
		t.Errorf("path = %v", got["path"])
	}
}

func TestRepairTruncatedObject(t *testing.T) {
	// The model ran out of tokens mid-string.
	got := decode(t, Repair(`{"path": "/tmp/a.txt", "content": "hello`, "write_file"))
	if got["path"] != "/tmp/a.txt" {
		t.Errorf("path = %v", got["path"])
	}
	if got["content"] != "hello" {
		t.Errorf("content = %v", got["content"])
	}
}

func TestRepairTruncatedNestedArray(t *testing.T) {
	got := decode(t, Repair(`{"items": ["a", "b`, "other"))
	items, ok := got["items"].([]any)
	if !ok || len(items) != 2 || items[1] != "b" {
		t.Errorf("items = %v", got["items"])
	}
}

func TestRepairRegexFallbackShell(t *testing.T) {
	// Trailing garbage defeats escape fixing and balancing alike.
	got := decode(t, Repair(`{"command": "ls -la", ???}`, "shell_execute"))
	if got["command"] != "ls -la" {
		t.Errorf("command = %v", got["command"])
	}
}

func TestRepairRegexFallbackFileFields(t *testing.T) {
	raw := `{"path": "/etc/motd", "append": true, "content": "hi there", ???}`
	got := decode(t, Repair(raw, "write_file"))
	if got["path"] != "/etc/motd" || got["content"] != "hi there" || got["append"] != true {
		t.Errorf("fields = %v", got)
	}
}

func TestRepairGivesUp(t *testing.T) {
	if got := Repair("total nonsense", "shell_execute"); got != nil {
		t.Errorf("Repair = %s, want nil", got)
	}
}
