package stealth

import (
	"strings"
	"testing"
)

func TestCleanEnviron(t *testing.T) {
	t.Setenv("AWAKENER_DATA_DIR", "/opt/app/data")
	t.Setenv("awakener_persona", "default")
	t.Setenv("TMUX", "/tmp/tmux-0/default,123,0")
	t.Setenv("STY", "456.agent")
	t.Setenv("INVOCATION_ID", "abc123")
	t.Setenv("DEEPSEEK_API_KEY", "sk-keepme")
	t.Setenv("STYLE", "bold") // prefix of STY, must survive

	env := CleanEnviron()
	joined := "\n" + strings.Join(env, "\n") + "\n"

	for _, banned := range []string{"AWAKENER_DATA_DIR=", "awakener_persona=", "TMUX=", "STY=456", "INVOCATION_ID="} {
		if strings.Contains(joined, "\n"+banned) {
			t.Errorf("%s leaked into the clean environment", banned)
		}
	}
	for _, kept := range []string{"DEEPSEEK_API_KEY=sk-keepme", "STYLE=bold"} {
		if !strings.Contains(joined, "\n"+kept+"\n") {
			t.Errorf("%s missing from the clean environment", kept)
		}
	}
}
