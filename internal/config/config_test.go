package config

import (
	"os"
	"path/filepath"
	"testing"
)

// The ambient environment may carry real overrides; neutralise the ones
// these tests touch.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"AWAKENER_WEB_PORT", "AWAKENER_MODEL", "AWAKENER_SNAPSHOT_MODEL",
		"AWAKENER_INTERVAL_SEC", "AWAKENER_PERSONA", "AWAKENER_DATA_DIR",
	} {
		t.Setenv(name, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load(filepath.Join(t.TempDir(), "missing.toml"))

	if cfg.Web.Port != 8800 {
		t.Errorf("port = %d", cfg.Web.Port)
	}
	if cfg.LLM.Model != "deepseek/deepseek-chat" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.SnapshotModel != cfg.LLM.Model {
		t.Errorf("snapshot model = %q, want fallback to main model", cfg.LLM.SnapshotModel)
	}
	if cfg.Agent.IntervalSec != 600 || cfg.Agent.ToolBudget != 10 {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if !cfg.Tools.Shell || !cfg.Tools.Files || cfg.Tools.TimeoutSec != 30 {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	if cfg.Observer.Enabled {
		t.Error("observer enabled by default")
	}
}

func TestLoadTOMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "awakener.toml")
	doc := `
[web]
port = 9100

[llm]
model = "openai/gpt-4o"
snapshot_model = "deepseek/deepseek-chat"

[agent]
interval_sec = 120

[tools]
shell = false
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.Web.Port != 9100 {
		t.Errorf("port = %d", cfg.Web.Port)
	}
	if cfg.LLM.Model != "openai/gpt-4o" || cfg.LLM.SnapshotModel != "deepseek/deepseek-chat" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Agent.IntervalSec != 120 {
		t.Errorf("interval = %d", cfg.Agent.IntervalSec)
	}
	if cfg.Tools.Shell {
		t.Error("shell not disabled by TOML")
	}
	// Untouched sections keep their defaults.
	if cfg.Agent.ToolBudget != 10 {
		t.Errorf("tool budget = %d", cfg.Agent.ToolBudget)
	}
}

func TestEnvBeatsTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "awakener.toml")
	if err := os.WriteFile(path, []byte("[web]\nport = 9100\n[llm]\nmodel = \"openai/gpt-4o\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AWAKENER_WEB_PORT", "9200")
	t.Setenv("AWAKENER_MODEL", "ollama/qwen3")

	cfg := Load(path)
	if cfg.Web.Port != 9200 {
		t.Errorf("port = %d, want env override", cfg.Web.Port)
	}
	if cfg.LLM.Model != "ollama/qwen3" {
		t.Errorf("model = %q, want env override", cfg.LLM.Model)
	}
	// The snapshot fallback tracks the final model value.
	if cfg.LLM.SnapshotModel != "ollama/qwen3" {
		t.Errorf("snapshot model = %q", cfg.LLM.SnapshotModel)
	}
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWAKENER_WEB_PORT", "not-a-number")
	cfg := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if cfg.Web.Port != 8800 {
		t.Errorf("port = %d, want default kept", cfg.Web.Port)
	}
}
