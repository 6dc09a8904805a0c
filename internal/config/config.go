// Package config loads the runtime configuration: built-in defaults
// overlaid by a TOML file, overlaid by AWAKENER_* environment variables
// (env wins). The AWAKENER_ prefix also marks these variables for the
// stealth layer's environment scrub.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Web       WebConfig       `toml:"web"`
	Agent     AgentConfig     `toml:"agent"`
	LLM       LLMConfig       `toml:"llm"`
	Tools     ToolsConfig     `toml:"tools"`
	Community CommunityConfig `toml:"community"`
	Observer  ObserverConfig  `toml:"observer"`
}

type WebConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type AgentConfig struct {
	Home        string `toml:"home"`         // the agent's home directory
	DataDir     string `toml:"data_dir"`     // timeline, snapshot, feed, logs
	Persona     string `toml:"persona"`      // persona name, resolved to personas/<name>.md
	PersonaDir  string `toml:"persona_dir"`  // where persona files live
	SkillsDir   string `toml:"skills_dir"`   // installed skills; empty disables the skill tool
	IntervalSec int    `toml:"interval_sec"` // sleep between rounds
	ToolBudget  int    `toml:"tool_budget"`  // normal per-round tool call limit
}

type LLMConfig struct {
	Model         string `toml:"model"`          // "provider/model"
	SnapshotModel string `toml:"snapshot_model"` // auditor model; empty falls back to Model
}

type ToolsConfig struct {
	Shell          bool `toml:"shell"`
	Files          bool `toml:"files"`
	Skills         bool `toml:"skills"`
	TimeoutSec     int  `toml:"timeout_sec"`
	MaxOutputChars int  `toml:"max_output_chars"`
}

type CommunityConfig struct {
	URL string `toml:"url"` // empty disables the community tool
	Key string `toml:"key"`
}

type ObserverConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP HTTP endpoint
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	return Config{
		Web: WebConfig{Host: "127.0.0.1", Port: 8800},
		Agent: AgentConfig{
			Home:        filepath.Join(home, "agent-home"),
			DataDir:     "data",
			Persona:     "default",
			PersonaDir:  "personas",
			SkillsDir:   "skills",
			IntervalSec: 600,
			ToolBudget:  10,
		},
		LLM: LLMConfig{Model: "deepseek/deepseek-chat"},
		Tools: ToolsConfig{
			Shell:          true,
			Files:          true,
			Skills:         true,
			TimeoutSec:     30,
			MaxOutputChars: 4000,
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "awakener.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("AWAKENER_WEB_HOST"); v != "" {
		cfg.Web.Host = v
	}
	if v := envInt("AWAKENER_WEB_PORT"); v > 0 {
		cfg.Web.Port = v
	}
	if v := os.Getenv("AWAKENER_AGENT_HOME"); v != "" {
		cfg.Agent.Home = v
	}
	if v := os.Getenv("AWAKENER_DATA_DIR"); v != "" {
		cfg.Agent.DataDir = v
	}
	if v := os.Getenv("AWAKENER_PERSONA"); v != "" {
		cfg.Agent.Persona = v
	}
	if v := envInt("AWAKENER_INTERVAL_SEC"); v > 0 {
		cfg.Agent.IntervalSec = v
	}
	if v := envInt("AWAKENER_TOOL_BUDGET"); v > 0 {
		cfg.Agent.ToolBudget = v
	}
	if v := os.Getenv("AWAKENER_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AWAKENER_SNAPSHOT_MODEL"); v != "" {
		cfg.LLM.SnapshotModel = v
	}
	if v := os.Getenv("AWAKENER_COMMUNITY_URL"); v != "" {
		cfg.Community.URL = v
	}
	if v := os.Getenv("AWAKENER_COMMUNITY_KEY"); v != "" {
		cfg.Community.Key = v
	}
	if v := os.Getenv("AWAKENER_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}
	if v := os.Getenv("AWAKENER_OBSERVER_ENDPOINT"); v != "" {
		cfg.Observer.Endpoint = v
	}

	// Fallbacks
	if cfg.LLM.SnapshotModel == "" {
		cfg.LLM.SnapshotModel = cfg.LLM.Model
	}
	if cfg.Tools.TimeoutSec <= 0 {
		cfg.Tools.TimeoutSec = 30
	}
	if cfg.Tools.MaxOutputChars <= 0 {
		cfg.Tools.MaxOutputChars = 4000
	}

	return cfg
}

func envInt(name string) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}
	return v
}
