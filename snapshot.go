package awakener

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one free-form record in a snapshot list section. Each section has
// a designated key field; all other fields are whatever the auditor decided
// to record and are preserved verbatim.
type Entry = map[string]any

// Snapshot is the agent's structured world-model, persisted as a single
// YAML document at data/snapshot.yaml. It is updated once per round by
// merging a SnapshotDelta produced by the auditor call.
type Snapshot struct {
	Meta        SnapshotMeta   `yaml:"meta"`
	Services    []Entry        `yaml:"services"`
	Projects    []Entry        `yaml:"projects"`
	Tools       []Entry        `yaml:"tools"`
	Documents   []Entry        `yaml:"documents"`
	Environment map[string]any `yaml:"environment"`
	Issues      []Entry        `yaml:"issues"`
}

type SnapshotMeta struct {
	Round       int    `yaml:"round"`
	LastUpdated string `yaml:"last_updated"`
}

// sectionKeys maps each list section to the field that identifies an entry.
var sectionKeys = map[string]string{
	"services":  "name",
	"projects":  "path",
	"tools":     "path",
	"documents": "path",
	"issues":    "summary",
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Environment: map[string]any{}}
}

// LoadSnapshot reads the snapshot YAML. A missing file yields an empty
// snapshot, not an error.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if s.Environment == nil {
		s.Environment = map[string]any{}
	}
	return &s, nil
}

// Save writes the snapshot atomically: serialise to a sibling temp file,
// then rename over the target.
func (s *Snapshot) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// section returns a pointer to the named list section, or nil for unknown
// section names (including "environment", which is not a list).
func (s *Snapshot) section(name string) *[]Entry {
	switch name {
	case "services":
		return &s.Services
	case "projects":
		return &s.Projects
	case "tools":
		return &s.Tools
	case "documents":
		return &s.Documents
	case "issues":
		return &s.Issues
	default:
		return nil
	}
}

// SnapshotDelta is the auditor's per-round output: a set of section edits
// plus the activity block that becomes the round's feed post. Consumed once,
// never stored.
type SnapshotDelta struct {
	NoChanges bool                `yaml:"no_changes"`
	Activity  *Activity           `yaml:"activity"`
	Add       map[string][]Entry  `yaml:"-"`
	Update    map[string][]Entry  `yaml:"-"`
	UpdateEnv map[string]any      `yaml:"-"`
	Remove    map[string][]string `yaml:"-"`
}

// Activity is the public description of what the agent did this round.
type Activity struct {
	Content string   `yaml:"content"`
	Tags    []string `yaml:"tags"`
	Quote   string   `yaml:"quote"`
}

// ParseDelta decodes the auditor's YAML output. Markdown fences around the
// document are tolerated; section blocks are loosely typed because small
// models are sloppy about structure.
func ParseDelta(raw string) (*SnapshotDelta, error) {
	raw = stripFences(raw)

	var doc struct {
		NoChanges bool           `yaml:"no_changes"`
		Activity  *Activity      `yaml:"activity"`
		Add       map[string]any `yaml:"add"`
		Update    map[string]any `yaml:"update"`
		Remove    map[string]any `yaml:"remove"`
	}
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse delta: %w", err)
	}

	d := &SnapshotDelta{
		NoChanges: doc.NoChanges,
		Activity:  doc.Activity,
		Add:       map[string][]Entry{},
		Update:    map[string][]Entry{},
		Remove:    map[string][]string{},
	}
	for section, v := range doc.Add {
		if section == "environment" {
			// No separate add semantics for the environment map; treat as
			// an update merge.
			mergeInto(&d.UpdateEnv, v)
			continue
		}
		d.Add[section] = coerceEntries(v)
	}
	for section, v := range doc.Update {
		if section == "environment" {
			mergeInto(&d.UpdateEnv, v)
			continue
		}
		d.Update[section] = coerceEntries(v)
	}
	for section, v := range doc.Remove {
		d.Remove[section] = coerceKeys(v, sectionKeys[section])
	}
	return d, nil
}

// stripFences removes a surrounding Markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return s
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func coerceEntries(v any) []Entry {
	list, ok := v.([]any)
	if !ok {
		// A single mapping where a list was expected.
		if m := coerceEntry(v); m != nil {
			return []Entry{m}
		}
		return nil
	}
	var entries []Entry
	for _, item := range list {
		if m := coerceEntry(item); m != nil {
			entries = append(entries, m)
		}
	}
	return entries
}

func coerceEntry(v any) Entry {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := Entry{}
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out
	default:
		return nil
	}
}

// coerceKeys accepts either plain key strings or full entries carrying the
// section's key field.
func coerceKeys(v any, keyField string) []string {
	list, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok {
			return []string{s}
		}
		return nil
	}
	var keys []string
	for _, item := range list {
		switch t := item.(type) {
		case string:
			keys = append(keys, t)
		default:
			if m := coerceEntry(item); m != nil && keyField != "" {
				if k, ok := m[keyField].(string); ok {
					keys = append(keys, k)
				}
			}
		}
	}
	return keys
}

func mergeInto(dst *map[string]any, v any) {
	m := coerceEntry(v)
	if m == nil {
		return
	}
	if *dst == nil {
		*dst = map[string]any{}
	}
	for k, val := range m {
		(*dst)[k] = val
	}
}

// Merge applies a delta to the snapshot in place and stamps meta. Even a
// no_changes delta stamps meta.round and meta.last_updated; everything else
// is untouched in that case.
//
// Semantics per section:
//   - add: append entries whose key is not already present; duplicates are
//     silently skipped.
//   - update: overlay the patch's fields onto the entry with the matching
//     key. Field values replace, they do not deep-merge; they describe
//     current state, not history.
//   - environment: shallow map merge.
//   - remove: delete entries whose key matches.
//
// After the merge any issue with status "resolved" is purged.
func (s *Snapshot) Merge(d *SnapshotDelta, round int) {
	defer func() {
		s.Meta.Round = round
		s.Meta.LastUpdated = NowUTC()
		s.purgeResolvedIssues()
	}()
	if d == nil || d.NoChanges {
		return
	}

	for section, entries := range d.Add {
		list := s.section(section)
		keyField := sectionKeys[section]
		if list == nil || keyField == "" {
			continue
		}
		for _, entry := range entries {
			key, ok := entry[keyField].(string)
			if !ok || key == "" {
				continue
			}
			if findEntry(*list, keyField, key) >= 0 {
				continue
			}
			*list = append(*list, entry)
		}
	}

	for section, patches := range d.Update {
		list := s.section(section)
		keyField := sectionKeys[section]
		if list == nil || keyField == "" {
			continue
		}
		for _, patch := range patches {
			key, ok := patch[keyField].(string)
			if !ok || key == "" {
				continue
			}
			i := findEntry(*list, keyField, key)
			if i < 0 {
				continue
			}
			for field, value := range patch {
				if field == keyField {
					continue
				}
				(*list)[i][field] = value
			}
		}
	}

	if len(d.UpdateEnv) > 0 {
		if s.Environment == nil {
			s.Environment = map[string]any{}
		}
		for k, v := range d.UpdateEnv {
			s.Environment[k] = v
		}
	}

	for section, keys := range d.Remove {
		list := s.section(section)
		keyField := sectionKeys[section]
		if list == nil || keyField == "" {
			continue
		}
		for _, key := range keys {
			if i := findEntry(*list, keyField, key); i >= 0 {
				*list = append((*list)[:i], (*list)[i+1:]...)
			}
		}
	}
}

func findEntry(list []Entry, keyField, key string) int {
	for i, entry := range list {
		if v, ok := entry[keyField].(string); ok && v == key {
			return i
		}
	}
	return -1
}

func (s *Snapshot) purgeResolvedIssues() {
	kept := s.Issues[:0]
	for _, issue := range s.Issues {
		if status, ok := issue["status"].(string); ok && status == "resolved" {
			continue
		}
		kept = append(kept, issue)
	}
	s.Issues = kept
}

// Markdown renders the snapshot for prompt injection. The output is a pure
// function of the snapshot: fixed section order, sorted fields, closed
// issues omitted.
func (s *Snapshot) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Server Snapshot (round %d, updated %s)\n", s.Meta.Round, s.Meta.LastUpdated)

	if len(s.Services) > 0 {
		b.WriteString("\n### Services\n\n| Name | Details |\n|---|---|\n")
		for _, svc := range s.Services {
			name, _ := svc["name"].(string)
			fmt.Fprintf(&b, "| %s | %s |\n", name, entryDetails(svc, "name"))
		}
	}
	writeEntryList(&b, "Projects", s.Projects, "path")
	writeEntryList(&b, "Tools", s.Tools, "path")
	writeEntryList(&b, "Documents", s.Documents, "path")

	if len(s.Environment) > 0 {
		b.WriteString("\n### Environment\n\n")
		keys := make([]string, 0, len(s.Environment))
		for k := range s.Environment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, s.Environment[k]))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}

	var open []Entry
	for _, issue := range s.Issues {
		if status, ok := issue["status"].(string); ok && status == "resolved" {
			continue
		}
		open = append(open, issue)
	}
	if len(open) > 0 {
		b.WriteString("\n### Open Issues\n\n")
		for _, issue := range open {
			summary, _ := issue["summary"].(string)
			if details := entryDetails(issue, "summary"); details != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", summary, details)
			} else {
				fmt.Fprintf(&b, "- %s\n", summary)
			}
		}
	}

	return b.String()
}

func writeEntryList(b *strings.Builder, title string, entries []Entry, keyField string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	for _, entry := range entries {
		key, _ := entry[keyField].(string)
		if details := entryDetails(entry, keyField); details != "" {
			fmt.Fprintf(b, "- %s (%s)\n", key, details)
		} else {
			fmt.Fprintf(b, "- %s\n", key)
		}
	}
}

// entryDetails renders every field except the key, sorted, as "k: v" pairs.
func entryDetails(entry Entry, keyField string) string {
	keys := make([]string, 0, len(entry))
	for k := range entry {
		if k != keyField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, entry[k]))
	}
	return strings.Join(parts, ", ")
}
