package stealth

import (
	"os"
	"strings"
)

// DetectHostEnv inspects the process environment and cgroup to work out
// which host session the runtime lives in. The result feeds the stealth
// keyword set; serverPort comes from config.
func DetectHostEnv(serverPort int) HostEnv {
	env := HostEnv{ServerPort: serverPort}

	// TMUX looks like "/tmp/tmux-1000/default,12345,0"; the session socket
	// path's base is the session name.
	if tmux := os.Getenv("TMUX"); tmux != "" {
		if sock, _, ok := strings.Cut(tmux, ","); ok || sock != "" {
			parts := strings.Split(sock, "/")
			env.TmuxSession = parts[len(parts)-1]
		}
	}

	// STY looks like "12345.session-name".
	if sty := os.Getenv("STY"); sty != "" {
		if _, name, ok := strings.Cut(sty, "."); ok && name != "" {
			env.ScreenSession = name
		}
	}

	// INVOCATION_ID is set by systemd; the unit name comes from the cgroup.
	if os.Getenv("INVOCATION_ID") != "" {
		env.SystemdService = serviceFromCgroup("/proc/self/cgroup")
	}

	return env
}

// serviceFromCgroup extracts the systemd unit name from a cgroup file.
// Lines look like "0::/system.slice/myservice.service".
func serviceFromCgroup(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for line := range strings.Lines(string(data)) {
		idx := strings.LastIndex(line, "/")
		if idx < 0 {
			continue
		}
		unit := strings.TrimSpace(line[idx+1:])
		if name, ok := strings.CutSuffix(unit, ".service"); ok {
			return name
		}
	}
	return ""
}
