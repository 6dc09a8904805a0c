package awakener

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureHomeBootstraps(t *testing.T) {
	home := filepath.Join(t.TempDir(), "agent-home")
	if err := EnsureHome(home); err != nil {
		t.Fatal(err)
	}

	note, err := os.ReadFile(filepath.Join(home, "WAKE_UP.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(note), home) {
		t.Error("wake-up note does not mention the home directory")
	}
	if _, err := os.Stat(filepath.Join(home, "knowledge", "index.md")); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureHomeNeverOverwrites(t *testing.T) {
	home := t.TempDir()
	if err := EnsureHome(home); err != nil {
		t.Fatal(err)
	}

	// The agent rewrote both files; a restart must leave them alone.
	note := filepath.Join(home, "WAKE_UP.md")
	index := filepath.Join(home, "knowledge", "index.md")
	for _, path := range []string{note, index} {
		if err := os.WriteFile(path, []byte("my own version"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := EnsureHome(home); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{note, index} {
		data, _ := os.ReadFile(path)
		if string(data) != "my own version" {
			t.Errorf("%s overwritten on second bootstrap", filepath.Base(path))
		}
	}
}

func TestTruncateIndex(t *testing.T) {
	short := "a short index"
	if got := truncateIndex(short); got != short {
		t.Errorf("short index modified: %q", got)
	}

	long := strings.Repeat("x", knowledgeIndexLimit+500)
	got := truncateIndex(long)
	if len(got) >= len(long) {
		t.Error("long index not truncated")
	}
	if !strings.HasSuffix(got, "move details into separate files)") {
		t.Errorf("truncation warning missing: %q", got[len(got)-80:])
	}
}
