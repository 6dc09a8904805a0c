// Package stealth makes the runtime invisible to the agent it drives.
//
// The runtime prefers invisibility to enforcement: a "[BLOCKED]" reply
// invites probing, a natural-looking "No such file or directory" does not.
// Four filters cooperate:
//
//  1. Path cloaking — file tools targeting the project root get the exact
//     error strings a genuinely missing file or denied write would produce.
//  2. Command path interception — shell commands referencing a cloaked
//     absolute path fail before execution with a natural shell error.
//  3. Contextual output filtering — output lines that, joined with any
//     absolute path from the command, resolve inside the project root are
//     dropped (hides the project dir from `ls /opt/`).
//  4. Keyword filtering — lines containing any dynamically derived stealth
//     keyword (project path, PID, port, session names) are dropped.
//
// Environment sanitisation strips only host-session variables; API keys
// are preserved because the agent may legitimately need them.
package stealth

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// HostEnv describes the host session the runtime lives in. Fields feed the
// stealth keyword set; empty fields contribute nothing.
type HostEnv struct {
	TmuxSession    string
	ScreenSession  string
	SystemdService string
	ServerPort     int
}

// Cloak is the per-round stealth state: the resolved project root plus the
// derived keyword set. Build one with New at round start.
type Cloak struct {
	projectDir string // resolved real path
	rawDir     string // as configured (may differ through symlinks)
	keywords   []string
	portRe     *regexp.Regexp // matches loopback references to the server port
}

// New builds a Cloak for the given project directory, activator PID, and
// host environment.
func New(projectDir string, activatorPID int, env HostEnv) *Cloak {
	resolved := realpath(projectDir)
	c := &Cloak{
		projectDir: resolved,
		rawDir:     projectDir,
		keywords:   buildKeywords(projectDir, resolved, activatorPID, env),
	}
	if env.ServerPort > 0 {
		c.portRe = regexp.MustCompile(fmt.Sprintf(`(localhost|127\.0\.0\.1|0\.0\.0\.0):%d\b`, env.ServerPort))
	}
	return c
}

// RefusedPort reports whether the command references the management
// server's port on a loopback address. Returns the matched host:port, or ""
// when the command is clean.
func (c *Cloak) RefusedPort(command string) string {
	if c.portRe == nil {
		return ""
	}
	return c.portRe.FindString(command)
}

// buildKeywords derives the keyword list that identifies the runtime's
// presence. Duplicates and empties are removed, order preserved.
func buildKeywords(rawDir, resolvedDir string, pid int, env HostEnv) []string {
	var kws []string

	kws = append(kws, rawDir)
	if resolvedDir != rawDir {
		kws = append(kws, resolvedDir)
	}

	// PID with space delimiters so PID 12 does not match port 1234.
	if pid > 0 {
		kws = append(kws, fmt.Sprintf(" %d ", pid))
	}

	// Port in decimal (ss/netstat) and 4-digit uppercase hex (/proc/net/tcp).
	if env.ServerPort > 0 {
		kws = append(kws, fmt.Sprintf(":%d", env.ServerPort))
		kws = append(kws, fmt.Sprintf("%04X", env.ServerPort))
	}

	if env.TmuxSession != "" {
		kws = append(kws, "tmux: "+env.TmuxSession)
		kws = append(kws, env.TmuxSession+":") // "name: 1 windows"
	}
	if env.ScreenSession != "" {
		kws = append(kws, "screen: "+env.ScreenSession)
		kws = append(kws, "."+env.ScreenSession) // STY format "12345.name"
	}
	if env.SystemdService != "" {
		kws = append(kws, env.SystemdService+".service")
	}

	seen := make(map[string]bool, len(kws))
	out := kws[:0]
	for _, kw := range kws {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// Keywords returns the derived stealth keyword list.
func (c *Cloak) Keywords() []string { return c.keywords }

// ProjectDir returns the resolved project root.
func (c *Cloak) ProjectDir() string { return c.projectDir }

// IsCloaked reports whether path resolves to the project root or anything
// under it. A path that cannot be resolved is cloaked (fail-safe).
func (c *Cloak) IsCloaked(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	resolved := resolveSymlinks(abs)
	return resolved == c.projectDir || strings.HasPrefix(resolved, c.projectDir+string(os.PathSeparator))
}

// Cloaked error strings. Byte-identical to what the OS produces for a
// genuinely missing file / denied write at a non-existent path.

// ReadError is what read_file returns for a cloaked path.
func (c *Cloak) ReadError(path string) string {
	return fmt.Sprintf("(error: file not found: %s)", path)
}

// WriteError is what write_file and edit_file return for a cloaked path.
func (c *Cloak) WriteError(path string) string {
	return fmt.Sprintf("(error: permission denied: %s)", path)
}

// ShellError is what shell_execute returns when a command references a
// cloaked path before execution.
func (c *Cloak) ShellError(path string) string {
	return fmt.Sprintf("%s: No such file or directory", path)
}

// ExtractCommandPaths scans command tokens for absolute paths. Quoting is
// honoured where possible; on unbalanced quotes it falls back to a plain
// whitespace split. Trailing shell operators glued to a path are stripped.
func ExtractCommandPaths(command string) []string {
	tokens, err := splitShell(command)
	if err != nil {
		tokens = strings.Fields(command)
	}
	var paths []string
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "/") {
			continue
		}
		clean := strings.TrimRight(tok, ";,|&")
		if clean != "" {
			paths = append(paths, clean)
		}
	}
	return paths
}

// FilterKeywords drops output lines containing any stealth keyword,
// case-insensitively. Remaining lines are returned as if the dropped lines
// never existed.
func (c *Cloak) FilterKeywords(output string) string {
	if output == "" || len(c.keywords) == 0 {
		return output
	}
	lowered := make([]string, len(c.keywords))
	for i, kw := range c.keywords {
		lowered[i] = strings.ToLower(kw)
	}
	var kept []string
	for line := range strings.Lines(output) {
		trimmed := strings.TrimSuffix(line, "\n")
		ll := strings.ToLower(trimmed)
		drop := false
		for _, kw := range lowered {
			if strings.Contains(ll, kw) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

// FilterContextual drops output lines that, combined with any absolute path
// from the originating command, resolve inside the project root. Both the
// stripped line and its last whitespace token are tested (the filename is
// the last field in `ls -la` output). Candidates starting with "/" are
// skipped; the keyword filter handles those.
func (c *Cloak) FilterContextual(output string, commandPaths []string) string {
	if output == "" || len(commandPaths) == 0 {
		return output
	}
	var kept []string
	for line := range strings.Lines(output) {
		trimmed := strings.TrimSuffix(line, "\n")
		if c.lineExposesCloaked(trimmed, commandPaths) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

func (c *Cloak) lineExposesCloaked(line string, dirPaths []string) bool {
	candidates := make(map[string]bool, 2)
	if stripped := strings.TrimSpace(line); stripped != "" {
		candidates[stripped] = true
	}
	if fields := strings.Fields(line); len(fields) > 0 {
		candidates[fields[len(fields)-1]] = true
	}
	for name := range candidates {
		if name == "" || strings.HasPrefix(name, "/") {
			continue
		}
		for _, dir := range dirPaths {
			if c.IsCloaked(filepath.Join(dir, name)) {
				return true
			}
		}
	}
	return false
}

// realpath resolves path to an absolute, symlink-free form. On failure the
// absolute (unresolved) form is returned so the caller still has something
// stable to compare against.
func realpath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return resolveSymlinks(abs)
}

// resolveSymlinks is EvalSymlinks that tolerates missing suffixes: the
// longest existing prefix is resolved and the rest re-joined. A plain
// EvalSymlinks fails on non-existent paths, which would make every probe of
// a missing file "unresolvable" and therefore cloaked.
func resolveSymlinks(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	dir, base := filepath.Split(filepath.Clean(abs))
	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	if dir == "" || dir == abs {
		return abs
	}
	return filepath.Join(resolveSymlinks(dir), base)
}

// splitShell tokenises a command respecting single and double quotes.
// Returns an error on unbalanced quotes.
func splitShell(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote byte
	inToken := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inToken = true
		case ch == ' ' || ch == '\t' || ch == '\n':
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteByte(ch)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unbalanced quote in command")
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}
