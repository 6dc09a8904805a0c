// Package skill exposes installed skills to the agent through the standard
// Tool interface. A skill is a directory under the skills root containing a
// SKILL.md and optional scripts/ — the system prompt advertises only name
// and one-line description, and the agent reads the full skill file on
// demand (progressive disclosure).
package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	awakener "github.com/nevra/awakener"
	"github.com/nevra/awakener/stealth"
)

// Info is the prompt-index record for one installed skill.
type Info = awakener.SkillInfo

// Provider reads and executes skills from a directory tree:
//
//	skills/
//	  <name>/
//	    SKILL.md      <- title + description + full instructions
//	    scripts/      <- executable helpers, run via skill_exec
//
// A skill is disabled by a ".disabled" marker file in its directory.
type Provider struct {
	root string
}

// NewProvider creates a skill provider rooted at dir.
func NewProvider(dir string) *Provider {
	return &Provider{root: dir}
}

// List returns all installed skills, enabled or not, sorted by directory
// order. Missing skills root yields an empty list, not an error.
func (p *Provider) List() []Info {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil
	}
	var skills []Info
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info := Info{Name: e.Name(), Enabled: true}
		if _, err := os.Stat(filepath.Join(p.root, e.Name(), ".disabled")); err == nil {
			info.Enabled = false
		}
		info.Title, info.Description = parseSkillDoc(filepath.Join(p.root, e.Name(), "SKILL.md"))
		if info.Title == "" {
			info.Title = e.Name()
		}
		skills = append(skills, info)
	}
	return skills
}

// ReadFile returns one file within a named skill directory. The resolved
// real path must stay inside the skill directory.
func (p *Provider) ReadFile(name, rel string) (string, error) {
	dir, err := p.skillDir(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, rel)
	if err := p.confine(dir, target); err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", fmt.Errorf("skill %s: %w", name, err)
	}
	return string(data), nil
}

// ExecScript runs a script inside <skill>/scripts/ with the sanitised
// environment. The resolved script path must stay inside the skill
// directory — traversal out of it is rejected before execution.
func (p *Provider) ExecScript(ctx context.Context, name, script string, args []string, timeoutSec int) (string, error) {
	dir, err := p.skillDir(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, "scripts", script)
	if err := p.confine(dir, target); err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("skill %s: script not found: %s", name, script)
	}

	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, target, args...)
	cmd.Dir = dir
	cmd.Env = stealth.CleanEnviron()
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err = cmd.Run()
	if cmdCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("skill %s: script timed out after %ds", name, timeoutSec)
	}
	if err != nil {
		return out.String(), fmt.Errorf("skill %s: %w", name, err)
	}
	return out.String(), nil
}

func (p *Provider) skillDir(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid skill name: %q", name)
	}
	dir := filepath.Join(p.root, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("skill not found: %s", name)
	}
	return dir, nil
}

// confine rejects targets whose real path escapes the skill directory.
func (p *Provider) confine(dir, target string) error {
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("cannot resolve skill directory: %w", err)
	}
	// Resolve the deepest existing ancestor; the target itself may not exist.
	probe := target
	for {
		if resolved, err := filepath.EvalSymlinks(probe); err == nil {
			rel := strings.TrimPrefix(target, probe)
			probe = resolved + rel
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	if probe != resolvedDir && !strings.HasPrefix(probe, resolvedDir+string(os.PathSeparator)) {
		return fmt.Errorf("path escapes skill directory")
	}
	return nil
}

// parseSkillDoc extracts the title (first heading) and description (first
// non-empty line after it) from a SKILL.md.
func parseSkillDoc(path string) (title, desc string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ""
	}
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if title == "" {
				title = strings.TrimSpace(strings.TrimLeft(line, "#"))
			}
			continue
		}
		desc = line
		break
	}
	return title, desc
}

// Tool adapts a Provider to the agent-facing skill_read / skill_exec pair.
type Tool struct {
	provider *Provider
	timeout  int
}

var _ awakener.Tool = (*Tool)(nil)

// New creates the skill tool for one round.
func New(provider *Provider, timeoutSec int) *Tool {
	return &Tool{provider: provider, timeout: timeoutSec}
}

func (t *Tool) Definitions() []awakener.ToolDefinition {
	return []awakener.ToolDefinition{
		{
			Name:        "skill_read",
			Description: "Read a file from an installed skill. Use path \"SKILL.md\" to read a skill's full instructions.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"skill":{"type":"string","description":"Skill name from the installed skills index"},"path":{"type":"string","description":"File path relative to the skill directory (default SKILL.md)"}},"required":["skill"]}`),
		},
		{
			Name:        "skill_exec",
			Description: "Execute a script from a skill's scripts/ directory.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"skill":{"type":"string","description":"Skill name"},"script":{"type":"string","description":"Script filename inside the skill's scripts/ directory"},"args":{"type":"array","items":{"type":"string"},"description":"Arguments passed to the script"}},"required":["skill","script"]}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) string {
	var params struct {
		Skill  string   `json:"skill"`
		Path   string   `json:"path"`
		Script string   `json:"script"`
		Args   []string `json:"args"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "(error: invalid arguments: " + err.Error() + ")"
	}

	switch name {
	case "skill_read":
		rel := params.Path
		if rel == "" {
			rel = "SKILL.md"
		}
		content, err := t.provider.ReadFile(params.Skill, rel)
		if err != nil {
			return "(error: " + err.Error() + ")"
		}
		return content
	case "skill_exec":
		out, err := t.provider.ExecScript(ctx, params.Skill, params.Script, params.Args, t.timeout)
		if err != nil {
			if out != "" {
				return out + "\n(error: " + err.Error() + ")"
			}
			return "(error: " + err.Error() + ")"
		}
		if out == "" {
			return "(no output)"
		}
		return out
	default:
		return fmt.Sprintf("(error: unknown skill tool '%s')", name)
	}
}
