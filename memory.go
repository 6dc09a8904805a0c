package awakener

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Memory owns the durable round files under the data directory:
//
//	data/
//	  timeline/YYYY-MM-DD.jsonl   one TimelineEntry per line
//	  feed.jsonl                  one FeedPost per line
//	  snapshot.yaml               see snapshot.go
//	  inspiration.txt             one-shot operator note, absent when empty
//
// All writes happen on the scheduler's worker; readers tolerate a partial
// last line by parsing and skipping. The files are the durable truth: the
// round counter is rebuilt from the timeline shards at startup, nothing
// else is rebuilt.
type Memory struct {
	dataDir string
	log     *slog.Logger
}

// NewMemory creates a Memory rooted at dataDir.
func NewMemory(dataDir string, log *slog.Logger) *Memory {
	if log == nil {
		log = slog.Default()
	}
	return &Memory{dataDir: dataDir, log: log}
}

// DataDir returns the root data directory.
func (m *Memory) DataDir() string { return m.dataDir }

func (m *Memory) timelineDir() string { return filepath.Join(m.dataDir, "timeline") }

// AppendTimeline writes one entry to the current UTC date's shard. Append
// failure is not fatal to the loop; callers log and continue.
func (m *Memory) AppendTimeline(entry TimelineEntry) error {
	if err := os.MkdirAll(m.timelineDir(), 0o755); err != nil {
		return fmt.Errorf("create timeline dir: %w", err)
	}
	shard := filepath.Join(m.timelineDir(), time.Now().UTC().Format("2006-01-02")+".jsonl")
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal timeline entry: %w", err)
	}
	f, err := os.OpenFile(shard, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open timeline shard: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append timeline entry: %w", err)
	}
	return nil
}

// LastRound scans every timeline shard and returns the highest round number
// seen, or 0 when no timeline exists. Malformed lines are skipped.
func (m *Memory) LastRound() int {
	shards, err := filepath.Glob(filepath.Join(m.timelineDir(), "*.jsonl"))
	if err != nil || len(shards) == 0 {
		return 0
	}
	last := 0
	for _, shard := range shards {
		for _, entry := range m.readShard(shard) {
			if entry.Round > last {
				last = entry.Round
			}
		}
	}
	return last
}

// RecentEntries returns the last n timeline entries across all shards,
// ordered oldest first. Used by the context builder's history replay.
func (m *Memory) RecentEntries(n int) []TimelineEntry {
	if n <= 0 {
		return nil
	}
	shards, err := filepath.Glob(filepath.Join(m.timelineDir(), "*.jsonl"))
	if err != nil || len(shards) == 0 {
		return nil
	}
	// Shard filenames are UTC dates, so lexical order is chronological.
	sort.Strings(shards)

	var entries []TimelineEntry
	for i := len(shards) - 1; i >= 0 && len(entries) < n; i-- {
		shard := m.readShard(shards[i])
		for j := len(shard) - 1; j >= 0 && len(entries) < n; j-- {
			entries = append(entries, shard[j])
		}
	}
	// Collected newest-first; flip to oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func (m *Memory) readShard(path string) []TimelineEntry {
	f, err := os.Open(path)
	if err != nil {
		m.log.Warn("cannot open timeline shard", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	var entries []TimelineEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry TimelineEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// Partial last line after a crash; skip.
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// AppendFeed writes one post to feed.jsonl.
func (m *Memory) AppendFeed(post FeedPost) error {
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	line, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal feed post: %w", err)
	}
	path := filepath.Join(m.dataDir, "feed.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append feed post: %w", err)
	}
	return nil
}

func (m *Memory) inspirationPath() string {
	return filepath.Join(m.dataDir, "inspiration.txt")
}

// WriteInspiration stores a one-shot operator note for the next round,
// replacing any pending one. Write-then-rename so a round starting mid-write
// never reads a half note.
func (m *Memory) WriteInspiration(text string) error {
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := m.inspirationPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write inspiration: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace inspiration: %w", err)
	}
	return nil
}

// TakeInspiration reads and deletes the pending inspiration. Returns ""
// when none is pending.
func (m *Memory) TakeInspiration() string {
	path := m.inspirationPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if err := os.Remove(path); err != nil {
		m.log.Warn("cannot remove inspiration file", "error", err)
	}
	return strings.TrimSpace(string(data))
}
