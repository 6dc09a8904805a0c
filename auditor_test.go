package awakener

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const auditorDelta = "```yaml\n" +
	"add:\n  services:\n    - name: web\n      port: 80\n" +
	"activity:\n  content: started a web server\n  tags: [web]\n  quote: \"it is alive\"\n" +
	"```"

func TestAuditorUpdatesSnapshotAndFeed(t *testing.T) {
	dir := t.TempDir()
	memory := NewMemory(dir, nil)
	provider := &scriptedProvider{responses: []ChatResponse{{Content: auditorDelta}}}
	auditor := NewAuditor(provider, provider, memory, nil)

	if err := auditor.UpdateSnapshot(context.Background(), 4, "[10:00:01] set up nginx", "it is alive"); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadSnapshot(filepath.Join(dir, "snapshot.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Services) != 1 || snap.Services[0]["name"] != "web" {
		t.Errorf("services = %v", snap.Services)
	}
	if snap.Meta.Round != 4 {
		t.Errorf("meta.round = %d", snap.Meta.Round)
	}

	f, err := os.Open(filepath.Join(dir, "feed.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("feed is empty")
	}
	var post FeedPost
	if err := json.Unmarshal(sc.Bytes(), &post); err != nil {
		t.Fatal(err)
	}
	if post.Round != 4 || post.Content != "started a web server" || post.Quote != "it is alive" {
		t.Errorf("feed post = %+v", post)
	}
}

func TestAuditorFallsBackToMainModel(t *testing.T) {
	dir := t.TempDir()
	memory := NewMemory(dir, nil)
	primary := &scriptedProvider{errs: []error{errors.New("model down")}}
	fallback := &scriptedProvider{responses: []ChatResponse{{Content: "no_changes: true\nactivity:\n  content: quiet round\n"}}}
	auditor := NewAuditor(primary, fallback, memory, nil)

	if err := auditor.UpdateSnapshot(context.Background(), 2, "", ""); err != nil {
		t.Fatalf("fallback should have succeeded: %v", err)
	}
	snap, err := LoadSnapshot(filepath.Join(dir, "snapshot.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Meta.Round != 2 {
		t.Errorf("meta.round = %d", snap.Meta.Round)
	}
}

func TestAuditorBothModelsFailing(t *testing.T) {
	memory := NewMemory(t.TempDir(), nil)
	primary := &scriptedProvider{errs: []error{errors.New("down")}}
	fallback := &scriptedProvider{errs: []error{errors.New("also down")}}
	auditor := NewAuditor(primary, fallback, memory, nil)

	err := auditor.UpdateSnapshot(context.Background(), 1, "", "")
	var fatal *SnapshotUpdateError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want SnapshotUpdateError", err)
	}
}

func TestAuditorNoFeedWithoutActivity(t *testing.T) {
	dir := t.TempDir()
	memory := NewMemory(dir, nil)
	provider := &scriptedProvider{responses: []ChatResponse{{Content: "no_changes: true\n"}}}
	auditor := NewAuditor(provider, provider, memory, nil)

	if err := auditor.UpdateSnapshot(context.Background(), 1, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "feed.jsonl")); !os.IsNotExist(err) {
		t.Error("feed written without an activity block")
	}
}
