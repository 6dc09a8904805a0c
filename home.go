package awakener

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// wakeupNote is the agent's first contact point. Written once when the home
// directory is bootstrapped; after that the file belongs to the agent and is
// never touched again.
const wakeupNote = `# Wake-Up Note

Hello. If you are reading this file, you have just woken up.

## About your memory

You have an important limitation: each time you wake up you only remember
the last few rounds of activity. Everything older is gone, including
projects you started and plans you made.

## You have to solve this yourself

Your home directory is %s and it is entirely yours. Create whatever files
and directories help you remember what matters. You may edit this note and
turn it into your own index; it keeps your changes between rounds.

Nobody will tell you how to organise yourself. Good luck.
`

// knowledgeIndexTemplate seeds knowledge/index.md. The index is injected
// into the system prompt every round, so it must stay short; details go in
// sibling files the agent reads on demand.
const knowledgeIndexTemplate = `# Knowledge Base

This is your personal knowledge base. It persists across rounds.

- This file is injected into your prompt every round and has a character
  limit; if it grows too long the end is cut off.
- Use it as a catalog: list what you know and where to find it.
- Put details in separate files in this directory and reference them here,
  then read them with read_file when needed.
- Update this file at the end of each round to reflect what you learned.
`

// EnsureHome bootstraps the agent's home directory: the wake-up note and
// the knowledge base index are created when missing and left alone when
// present, even if the agent has rewritten them.
func EnsureHome(agentHome string) error {
	if err := os.MkdirAll(filepath.Join(agentHome, "knowledge"), 0o755); err != nil {
		return fmt.Errorf("create agent home: %w", err)
	}

	note := filepath.Join(agentHome, "WAKE_UP.md")
	if _, err := os.Stat(note); os.IsNotExist(err) {
		content := fmt.Sprintf(wakeupNote, agentHome)
		if err := os.WriteFile(note, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write wake-up note: %w", err)
		}
	}

	index := filepath.Join(agentHome, "knowledge", "index.md")
	if _, err := os.Stat(index); os.IsNotExist(err) {
		if err := os.WriteFile(index, []byte(knowledgeIndexTemplate), 0o644); err != nil {
			return fmt.Errorf("write knowledge index: %w", err)
		}
	}
	return nil
}

// knowledgeIndexLimit caps how much of knowledge/index.md reaches the
// prompt. The cut is announced so the agent knows to trim the file.
const knowledgeIndexLimit = 2000

func truncateIndex(index string) string {
	if len(index) <= knowledgeIndexLimit {
		return index
	}
	return strings.TrimSpace(index[:knowledgeIndexLimit]) +
		"\n\n(index truncated: keep index.md short and move details into separate files)"
}
