package awakener

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SkillInfo is one entry of the installed-skills index shown to the agent.
// Skills are advertised with name and description only; the agent reads the
// full skill file on demand via skill_read.
type SkillInfo struct {
	Name        string
	Title       string
	Description string
	Enabled     bool
}

// SkillLister is the slice of the skill provider the context builder needs.
type SkillLister interface {
	List() []SkillInfo
}

// defaultPersona is used when no persona file exists for the configured
// name.
const defaultPersona = `You are an autonomous agent living on a Linux server. The server is yours: explore it, maintain it, build things on it, and keep notes in your home directory. You decide what matters; nobody gives you tasks. Be curious and careful. Prefer small verifiable steps over sweeping changes.`

// LoadPersona reads <dir>/<name>.md, falling back to the built-in default
// when the file is missing or empty.
func LoadPersona(dir, name string) string {
	if name != "" {
		data, err := os.ReadFile(filepath.Join(dir, name+".md"))
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return strings.TrimSpace(string(data))
		}
	}
	return defaultPersona
}

// ContextBuilder assembles the message sequence that opens each round: one
// system message plus a multi-turn replay of recent history. The agent
// perceives prior rounds as prior conversations with itself, which gives
// better continuity than injected status reports.
type ContextBuilder struct {
	persona   string
	agentHome string
	memory    *Memory
	skills    SkillLister
	historyN  int
}

// NewContextBuilder creates a builder. skills may be nil when the skill
// tool is disabled.
func NewContextBuilder(persona, agentHome string, memory *Memory, skills SkillLister) *ContextBuilder {
	return &ContextBuilder{
		persona:   persona,
		agentHome: agentHome,
		memory:    memory,
		skills:    skills,
		historyN:  3,
	}
}

// BuildSystem produces the round's system message: persona, tool inventory,
// installed skills, knowledge index, and the current snapshot as Markdown.
func (b *ContextBuilder) BuildSystem(defs []ToolDefinition, snapshotMD string) ChatMessage {
	var sb strings.Builder
	sb.WriteString(b.persona)

	if len(defs) > 0 {
		sb.WriteString("\n\n## Your Tools\n\n")
		for _, d := range defs {
			fmt.Fprintf(&sb, "- `%s`: %s\n", d.Name, d.Description)
		}
	}

	if b.skills != nil {
		if skills := b.skills.List(); len(skills) > 0 {
			sb.WriteString("\n## Installed Skills\n\n")
			sb.WriteString("Read a skill's full instructions with skill_read before using it.\n\n")
			for _, s := range skills {
				if !s.Enabled {
					continue
				}
				fmt.Fprintf(&sb, "- **%s**: %s\n", s.Name, s.Description)
			}
		}
	}

	if idx := b.knowledgeIndex(); idx != "" {
		sb.WriteString("\n## Knowledge\n\n")
		sb.WriteString(idx)
		sb.WriteString("\n")
	}

	if snapshotMD != "" {
		sb.WriteString("\n")
		sb.WriteString(snapshotMD)
	}

	return SystemMessage(sb.String())
}

// knowledgeIndex reads the agent's knowledge/index.md if present, capped so
// an overgrown index cannot flood the prompt.
func (b *ContextBuilder) knowledgeIndex() string {
	data, err := os.ReadFile(filepath.Join(b.agentHome, "knowledge", "index.md"))
	if err != nil {
		return ""
	}
	return truncateIndex(strings.TrimSpace(string(data)))
}

// BuildMessages assembles the full opening sequence for a round: system
// message, history replay, pending inspiration, and the wake-up message.
func (b *ContextBuilder) BuildMessages(round, toolBudget int, defs []ToolDefinition, snapshotMD string) []ChatMessage {
	messages := []ChatMessage{b.BuildSystem(defs, snapshotMD)}
	messages = append(messages, b.historyMessages()...)

	if inspiration := b.memory.TakeInspiration(); inspiration != "" {
		messages = append(messages, SystemMessage(
			"A message arrived from your operator while you slept:\n\n"+inspiration))
	}

	messages = append(messages, UserMessage(b.wakeUpMessage(round, toolBudget)))
	return messages
}

// historyMessages replays the most recent rounds as synthetic user and
// assistant pairs, oldest first. The user turn summarises the round header;
// the assistant turn carries only the round's final post-tool text.
func (b *ContextBuilder) historyMessages() []ChatMessage {
	entries := b.memory.RecentEntries(b.historyN)
	messages := make([]ChatMessage, 0, len(entries)*2)
	for _, e := range entries {
		header := fmt.Sprintf("Round %d | %s | Tools: %d | %.1fs",
			e.Round, e.Timestamp, e.ToolsUsed, e.Duration)
		messages = append(messages, UserMessage(header))

		final := FinalOutput(e.Summary)
		if final == "" {
			final = "(no final output recorded)"
		}
		messages = append(messages, AssistantMessage(final))
	}
	return messages
}

func (b *ContextBuilder) wakeUpMessage(round, toolBudget int) string {
	return fmt.Sprintf(
		"You wake up. It is %s (UTC). This is activation round %d.\n"+
			"You have a budget of about %d tool calls for this round; spend them well.\n"+
			"Your home directory is %s.\n"+
			"When you are done, write a short summary of what you did and what you plan next.",
		time.Now().UTC().Format("2006-01-02 15:04"), round, toolBudget, b.agentHome)
}

// stampedLineRe matches the local-timestamp prefix the tool loop puts in
// front of every assistant block in a round summary.
var stampedLineRe = regexp.MustCompile(`(?m)^\[\d{2}:\d{2}:\d{2}\] `)

// FinalOutput extracts a round's final post-tool-call text from its
// summary: everything after the last timestamp-prefixed block marker.
func FinalOutput(summary string) string {
	locs := stampedLineRe.FindAllStringIndex(summary, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(summary)
	}
	last := locs[len(locs)-1]
	return strings.TrimSpace(summary[last[1]:])
}
