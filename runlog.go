package awakener

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RoundLogger writes the human-readable activity log under data/logs/,
// sharded per UTC date, and mirrors every line to the bus as a log event
// so connected operators see it live.
type RoundLogger struct {
	dataDir string
	bus     *Bus
	log     *slog.Logger
}

// NewRoundLogger creates a logger writing under dataDir/logs.
func NewRoundLogger(dataDir string, bus *Bus, log *slog.Logger) *RoundLogger {
	if log == nil {
		log = slog.Default()
	}
	return &RoundLogger{dataDir: dataDir, bus: bus, log: log}
}

// RoundStart writes the separator that opens a round's section.
func (l *RoundLogger) RoundStart(round int) {
	l.Line(fmt.Sprintf("========== ROUND %d ==========", round))
}

// RoundEnd writes the closing line for a round.
func (l *RoundLogger) RoundEnd(round, toolsUsed int, duration time.Duration) {
	l.Line(fmt.Sprintf("---------- round %d done: %d tools, %.1fs ----------", round, toolsUsed, duration.Seconds()))
}

// Tool logs a tool invocation.
func (l *RoundLogger) Tool(name, args string) {
	l.Line(fmt.Sprintf("[TOOL] %s %s", name, compact(args, 200)))
}

// Result logs a tool result.
func (l *RoundLogger) Result(result string) {
	l.Line("[RESULT] " + compact(result, 200))
}

// Thought logs an assistant turn's text.
func (l *RoundLogger) Thought(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	l.Line("[THOUGHT] " + compact(text, 400))
}

// Wait logs the inter-round sleep.
func (l *RoundLogger) Wait(interval time.Duration) {
	l.Line(fmt.Sprintf("[WAIT] sleeping %s until next round", interval))
}

// Line appends one timestamped line to today's log shard and mirrors it to
// the bus. File failures are logged and swallowed; the activity log is
// best-effort. An empty data dir disables the file shard entirely.
func (l *RoundLogger) Line(text string) {
	stamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s\n", stamp, text)

	if l.dataDir == "" {
		if l.bus != nil {
			l.bus.Publish(EventLog, map[string]any{"message": text})
		}
		return
	}

	dir := filepath.Join(l.dataDir, "logs")
	if err := os.MkdirAll(dir, 0o755); err == nil {
		path := filepath.Join(dir, time.Now().UTC().Format("2006-01-02")+".log")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			if _, werr := f.WriteString(line); werr != nil {
				l.log.Warn("activity log write failed", "error", werr)
			}
			f.Close()
		} else {
			l.log.Warn("activity log open failed", "error", err)
		}
	}

	if l.bus != nil {
		l.bus.Publish(EventLog, map[string]any{"message": text})
	}
}

// compact flattens newlines and truncates for log readability. The full
// text still reaches the timeline; this is only the operator-facing line.
func compact(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
