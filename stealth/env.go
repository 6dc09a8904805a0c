package stealth

import (
	"os"
	"regexp"
	"strings"
)

// Variables that reveal the runtime's host context. API keys are not
// stripped — the agent may need them for its own projects.
var hostEnvRe = regexp.MustCompile(`(?i)^(AWAKENER_.*|INVOCATION_ID|TMUX|STY)$`)

// CleanEnviron returns a copy of the process environment with host-session
// variables removed, in the KEY=VALUE form subprocesses expect.
func CleanEnviron() []string {
	var out []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if ok && hostEnvRe.MatchString(name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
