package awakener

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool defines an agent capability with one or more tool functions.
// Execute always returns a single text string: success output or a
// human-readable error. Tools never raise — the agent must see failures
// in-band and react to them.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) string
}

// ToolRegistry holds the tools enabled for one round and dispatches
// execution by name. A fresh registry is built per round so each round's
// tools are bound to that round's stealth state.
type ToolRegistry struct {
	tools []Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{}
}

// Add registers a tool.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
}

// AllDefinitions returns tool definitions from all registered tools.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Execute dispatches a tool call by name.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) string {
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Name == name {
				return t.Execute(ctx, name, args)
			}
		}
	}
	return fmt.Sprintf("(error: unknown tool '%s')", name)
}
