package awakener

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTimelineAppendAndLastRound(t *testing.T) {
	m := NewMemory(t.TempDir(), nil)

	if got := m.LastRound(); got != 0 {
		t.Fatalf("LastRound on empty memory = %d, want 0", got)
	}

	for r := 1; r <= 3; r++ {
		if err := m.AppendTimeline(TimelineEntry{Round: r, Timestamp: NowUTC(), Summary: "x"}); err != nil {
			t.Fatalf("AppendTimeline(%d): %v", r, err)
		}
	}
	if got := m.LastRound(); got != 3 {
		t.Errorf("LastRound = %d, want 3", got)
	}
}

func TestLastRoundScansAllShards(t *testing.T) {
	dir := t.TempDir()
	m := NewMemory(dir, nil)

	// Older shards from prior days must still count.
	shardDir := filepath.Join(dir, "timeline")
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := `{"round":42,"timestamp":"2026-08-20T10:00:00Z","tools_used":2,"duration":3.5,"summary":"old","action_log":""}` + "\n"
	if err := os.WriteFile(filepath.Join(shardDir, "2026-08-20.jsonl"), []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := m.LastRound(); got != 42 {
		t.Errorf("LastRound = %d, want 42", got)
	}
}

func TestReadShardSkipsPartialLine(t *testing.T) {
	dir := t.TempDir()
	m := NewMemory(dir, nil)
	shardDir := filepath.Join(dir, "timeline")
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// A crash can leave a truncated last line; it must be skipped.
	data := `{"round":7,"summary":"ok"}` + "\n" + `{"round":8,"sum`
	if err := os.WriteFile(filepath.Join(shardDir, "2026-08-21.jsonl"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := m.LastRound(); got != 7 {
		t.Errorf("LastRound = %d, want 7", got)
	}
}

func TestRecentEntriesOrder(t *testing.T) {
	m := NewMemory(t.TempDir(), nil)
	for r := 1; r <= 5; r++ {
		if err := m.AppendTimeline(TimelineEntry{Round: r}); err != nil {
			t.Fatal(err)
		}
	}

	entries := m.RecentEntries(3)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []int{3, 4, 5} {
		if entries[i].Round != want {
			t.Errorf("entries[%d].Round = %d, want %d", i, entries[i].Round, want)
		}
	}
}

func TestInspirationOneShot(t *testing.T) {
	m := NewMemory(t.TempDir(), nil)

	if got := m.TakeInspiration(); got != "" {
		t.Fatalf("TakeInspiration with none pending = %q", got)
	}
	if err := m.WriteInspiration("look at the garden"); err != nil {
		t.Fatal(err)
	}
	if got := m.TakeInspiration(); got != "look at the garden" {
		t.Errorf("TakeInspiration = %q", got)
	}
	// Read-and-delete: second take finds nothing.
	if got := m.TakeInspiration(); got != "" {
		t.Errorf("second TakeInspiration = %q, want empty", got)
	}
}

func TestInspirationReplacedAtomically(t *testing.T) {
	dir := t.TempDir()
	m := NewMemory(dir, nil)

	if err := m.WriteInspiration("first note"); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteInspiration("second note"); err != nil {
		t.Fatal(err)
	}

	// The note lands via rename; no staging file survives.
	if _, err := os.Stat(filepath.Join(dir, "inspiration.txt.tmp")); !os.IsNotExist(err) {
		t.Error("staging file left behind")
	}
	if got := m.TakeInspiration(); got != "second note" {
		t.Errorf("TakeInspiration = %q, want the replacement", got)
	}
}

func TestAppendFeed(t *testing.T) {
	dir := t.TempDir()
	m := NewMemory(dir, nil)
	if err := m.AppendFeed(FeedPost{Round: 1, Timestamp: NowUTC(), Content: "hello", Tags: []string{"t"}}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "feed.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Errorf("feed line not newline-terminated: %q", data)
	}
}
