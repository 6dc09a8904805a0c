package awakener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const auditorSystemPrompt = `You maintain a YAML snapshot describing the current state of a server that an autonomous agent operates. After each of the agent's activity rounds you receive the current snapshot, the agent's working log, and its final output. Respond with ONE YAML document describing what changed.

Rules:
- Output YAML only. A markdown fence is acceptable, prose is not.
- Sections: services (key: name), projects (key: path), tools (key: path), documents (key: path), environment (flat map), issues (key: summary).
- Use "add" for new entries, "update" for changed entries (include the key field plus only the changed fields), "remove" for entries that no longer exist.
- When an issue is fixed, update it with status: resolved.
- If nothing structural changed, output "no_changes: true" instead of add/update/remove.
- Always include an "activity" block: content (one or two sentences, third person, what the agent did this round), tags (short lowercase keywords), and optionally quote (a short verbatim phrase taken ONLY from the agent's final output).

Describe current state, not history. Never invent entries the log does not support.`

// Auditor produces and applies the per-round snapshot delta. It prefers a
// smaller dedicated model and falls back to the main model; if both fail
// the error is fatal to the loop.
type Auditor struct {
	primary  Provider
	fallback Provider
	memory   *Memory
	log      *slog.Logger
}

// NewAuditor creates an auditor. fallback may equal primary when no
// dedicated snapshot model is configured.
func NewAuditor(primary, fallback Provider, memory *Memory, log *slog.Logger) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{primary: primary, fallback: fallback, memory: memory, log: log}
}

// UpdateSnapshot runs the auditor call for a finished round, merges the
// resulting delta into the snapshot on disk, and appends a feed post when
// the delta carried a non-empty activity block.
//
// Both models failing returns a SnapshotUpdateError; the scheduler promotes
// that to the error state. Feed append failure is logged, not returned.
func (a *Auditor) UpdateSnapshot(ctx context.Context, round int, actionLog, finalOutput string) error {
	path := filepath.Join(a.memory.DataDir(), "snapshot.yaml")
	snap, err := LoadSnapshot(path)
	if err != nil {
		// A corrupt snapshot should not kill the loop; start over from
		// empty and let the auditor rebuild it.
		a.log.Warn("snapshot unreadable, starting fresh", "error", err)
		snap = NewSnapshot()
	}

	current, err := yaml.Marshal(snap)
	if err != nil {
		return &SnapshotUpdateError{Last: err}
	}

	delta, err := a.requestDelta(ctx, string(current), actionLog, finalOutput)
	if err != nil {
		return &SnapshotUpdateError{Last: err}
	}

	snap.Merge(delta, round)
	if err := snap.Save(path); err != nil {
		return &SnapshotUpdateError{Last: err}
	}

	if delta.Activity != nil && strings.TrimSpace(delta.Activity.Content) != "" {
		post := FeedPost{
			Round:     round,
			Timestamp: NowUTC(),
			Content:   strings.TrimSpace(delta.Activity.Content),
			Tags:      normalizeTags(delta.Activity.Tags),
			Quote:     strings.TrimSpace(delta.Activity.Quote),
		}
		if err := a.memory.AppendFeed(post); err != nil {
			a.log.Warn("feed append failed", "round", round, "error", err)
		}
	}
	return nil
}

// requestDelta tries the primary model, then the fallback. A response that
// arrives but fails to parse counts as a failure for that model.
func (a *Auditor) requestDelta(ctx context.Context, snapshotYAML, actionLog, finalOutput string) (*SnapshotDelta, error) {
	temp := 0.1
	req := ChatRequest{
		Messages: []ChatMessage{
			SystemMessage(auditorSystemPrompt),
			UserMessage(buildAuditorInput(snapshotYAML, actionLog, finalOutput)),
		},
		Temperature: &temp,
	}

	providers := []Provider{a.primary}
	if a.fallback != nil && a.fallback != a.primary {
		providers = append(providers, a.fallback)
	}

	var last error
	for _, p := range providers {
		resp, err := p.Chat(ctx, req)
		if err != nil {
			a.log.Warn("auditor call failed", "provider", p.Name(), "error", err)
			last = err
			continue
		}
		delta, err := ParseDelta(resp.Content)
		if err != nil {
			a.log.Warn("auditor output unparseable", "provider", p.Name(), "error", err)
			last = err
			continue
		}
		return delta, nil
	}
	return nil, fmt.Errorf("all auditor attempts failed: %w", last)
}

func buildAuditorInput(snapshotYAML, actionLog, finalOutput string) string {
	var b strings.Builder
	b.WriteString("Current snapshot:\n```yaml\n")
	b.WriteString(snapshotYAML)
	b.WriteString("```\n\nAgent working log for this round:\n")
	if strings.TrimSpace(actionLog) == "" {
		b.WriteString("(no tool activity this round)\n")
	} else {
		b.WriteString(actionLog)
		b.WriteString("\n")
	}
	b.WriteString("\nAgent final output (for the activity quote only):\n")
	if strings.TrimSpace(finalOutput) == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(finalOutput)
		b.WriteString("\n")
	}
	return b.String()
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
