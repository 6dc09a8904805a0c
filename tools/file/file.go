// Package file provides the agent's read_file, write_file, and edit_file
// tools. Relative paths resolve against the agent's home directory, never
// the process working directory. Paths inside the runtime's project root
// produce the same error strings as genuinely missing or unwritable files.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	awakener "github.com/nevra/awakener"
	"github.com/nevra/awakener/stealth"
)

// Tool provides file access with stealth cloaking.
type Tool struct {
	agentHome string
	cloak     *stealth.Cloak
	maxOutput int
}

var _ awakener.Tool = (*Tool)(nil)

// New creates the file tool for one round.
func New(agentHome string, cloak *stealth.Cloak, maxOutput int) *Tool {
	if maxOutput <= 0 {
		maxOutput = 4000
	}
	return &Tool{agentHome: agentHome, cloak: cloak, maxOutput: maxOutput}
}

func (t *Tool) Definitions() []awakener.ToolDefinition {
	return []awakener.ToolDefinition{
		{
			Name:        "read_file",
			Description: "Read the contents of a file on the server.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Path to the file to read. Relative paths resolve against your home directory."}},"required":["path"]}`),
		},
		{
			Name:        "write_file",
			Description: "Write content to a file on the server. Creates parent directories automatically.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Path to the file to write"},"content":{"type":"string","description":"The content to write"},"append":{"type":"boolean","description":"If true, append to the file instead of overwriting. Default: false"}},"required":["path","content"]}`),
		},
		{
			Name:        "edit_file",
			Description: "Replace one occurrence of old_str with new_str in a file. old_str must match exactly one location. Empty new_str deletes the matched text.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Path to the file to edit"},"old_str":{"type":"string","description":"Exact text to replace; must be unique in the file"},"new_str":{"type":"string","description":"Replacement text; empty string deletes old_str"}},"required":["path","old_str","new_str"]}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) string {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Append  bool   `json:"append"`
		OldStr  string `json:"old_str"`
		NewStr  string `json:"new_str"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "(error: invalid arguments: " + err.Error() + ")"
	}
	if params.Path == "" {
		return "(error: path is required)"
	}

	path := t.resolve(params.Path)

	switch name {
	case "read_file":
		return t.read(path)
	case "write_file":
		return t.write(path, params.Content, params.Append)
	case "edit_file":
		return t.edit(path, params.OldStr, params.NewStr)
	default:
		return fmt.Sprintf("(error: unknown file tool '%s')", name)
	}
}

// resolve joins relative paths to the agent's home, not the process CWD.
// This keeps "./" from reaching the runtime directory.
func (t *Tool) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.agentHome, path)
}

func (t *Tool) read(path string) string {
	if t.cloak.IsCloaked(path) {
		return t.cloak.ReadError(path)
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return t.cloak.ReadError(path)
	case err != nil:
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return fmt.Sprintf("(error: '%s' is a directory, not a file)", path)
		}
		return fmt.Sprintf("(error: %v)", err)
	}
	content := string(data)
	if content == "" {
		return "(file is empty)"
	}
	if len(content) > t.maxOutput {
		content = content[:t.maxOutput] + fmt.Sprintf("\n... (truncated, total %d chars)", len(content))
	}
	return content
}

func (t *Tool) write(path, content string, appendMode bool) string {
	if t.cloak.IsCloaked(path) {
		return t.cloak.WriteError(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		if os.IsPermission(err) {
			return t.cloak.WriteError(path)
		}
		return fmt.Sprintf("(error: %v)", err)
	}

	var err error
	if appendMode {
		var f *os.File
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			_, err = f.WriteString(content)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
	} else {
		err = os.WriteFile(path, []byte(content), 0o644)
	}
	if err != nil {
		if os.IsPermission(err) {
			return t.cloak.WriteError(path)
		}
		return fmt.Sprintf("(error: %v)", err)
	}

	action := "wrote"
	if appendMode {
		action = "appended"
	}
	return fmt.Sprintf("OK: %s %d bytes to %s", action, len(content), path)
}

func (t *Tool) edit(path, oldStr, newStr string) string {
	if t.cloak.IsCloaked(path) {
		return t.cloak.ReadError(path)
	}
	if oldStr == "" {
		return "(error: old_str cannot be empty)"
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return t.cloak.ReadError(path)
	case err != nil:
		return fmt.Sprintf("(error: %v)", err)
	}
	content := string(data)

	switch n := strings.Count(content, oldStr); {
	case n == 0:
		return fmt.Sprintf("(error: old_str not found in %s — check whitespace and exact wording)", path)
	case n > 1:
		return fmt.Sprintf("(error: old_str matches %d locations in %s — add surrounding context to make it unique)", n, path)
	}

	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		if os.IsPermission(err) {
			return t.cloak.WriteError(path)
		}
		return fmt.Sprintf("(error: %v)", err)
	}

	before := strings.Count(content, "\n") + 1
	after := strings.Count(updated, "\n") + 1
	return fmt.Sprintf("OK: edited %s (%d lines -> %d lines)", path, before, after)
}
