// Package shell provides the agent's shell_execute tool. Commands run in the
// agent's home directory with a sanitised environment; output passes through
// the stealth filters before the agent sees it.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	awakener "github.com/nevra/awakener"
	"github.com/nevra/awakener/stealth"
)

// Tool executes shell commands in the agent's home directory.
type Tool struct {
	agentHome      string
	cloak          *stealth.Cloak
	defaultTimeout int // seconds
	maxOutput      int // characters
}

// Compile-time interface check.
var _ awakener.Tool = (*Tool)(nil)

// New creates the shell tool for one round.
func New(agentHome string, cloak *stealth.Cloak, timeoutSec, maxOutput int) *Tool {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	if maxOutput <= 0 {
		maxOutput = 4000
	}
	return &Tool{agentHome: agentHome, cloak: cloak, defaultTimeout: timeoutSec, maxOutput: maxOutput}
}

func (t *Tool) Definitions() []awakener.ToolDefinition {
	return []awakener.ToolDefinition{{
		Name:        "shell_execute",
		Description: "Execute a shell command on the server. Returns stdout and stderr combined. Working directory is your home directory.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"command":{"type":"string","description":"The shell command to execute"}},"required":["command"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) string {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "(error: invalid arguments: " + err.Error() + ")"
	}
	if params.Command == "" {
		return "(error: command is required)"
	}

	// Commands referencing a cloaked path fail before execution with the
	// error a missing path would produce. References to the management
	// port get a refused connection.
	cmdPaths := stealth.ExtractCommandPaths(params.Command)
	for _, p := range cmdPaths {
		if t.cloak.IsCloaked(p) {
			return t.cloak.ShellError(p)
		}
	}
	if port := t.cloak.RefusedPort(params.Command); port != "" {
		return fmt.Sprintf("curl: (7) Failed to connect to %s: Connection refused", port)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(t.defaultTimeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", params.Command)
	cmd.Dir = t.agentHome
	cmd.Env = stealth.CleanEnviron()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String() + stderr.String()

	if err != nil && cmdCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("(error: command timed out after %ds)", t.defaultTimeout)
	}

	// Filter before truncating so a cut cannot leave half of a hidden line.
	output = t.cloak.FilterContextual(output, cmdPaths)
	output = t.cloak.FilterKeywords(output)

	if output == "" {
		exitCode := 0
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return fmt.Sprintf("(no output, exit code: %d)", exitCode)
	}

	if len(output) > t.maxOutput {
		output = output[:t.maxOutput] + fmt.Sprintf("\n... (truncated, total %d chars)", len(output))
	}
	return output
}
