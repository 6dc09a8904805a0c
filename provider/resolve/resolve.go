// Package resolve turns a "provider/model" string into a ready Provider.
// The provider prefix selects the API base URL and which environment
// variable supplies the key.
package resolve

import (
	"fmt"
	"os"
	"strings"

	awakener "github.com/nevra/awakener"
	"github.com/nevra/awakener/provider/openaicompat"
)

// route describes one known provider prefix.
type route struct {
	baseURL string
	keyEnv  string
}

var routes = map[string]route{
	"deepseek":   {baseURL: "https://api.deepseek.com/v1", keyEnv: "DEEPSEEK_API_KEY"},
	"openai":     {baseURL: "https://api.openai.com/v1", keyEnv: "OPENAI_API_KEY"},
	"anthropic":  {baseURL: "https://api.anthropic.com/v1", keyEnv: "ANTHROPIC_API_KEY"},
	"google":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", keyEnv: "GOOGLE_API_KEY"},
	"gemini":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", keyEnv: "GOOGLE_API_KEY"},
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", keyEnv: "OPENROUTER_API_KEY"},
	"ollama":     {baseURL: "http://localhost:11434/v1"},
}

// Provider creates a chat provider from a "provider/model" identifier, e.g.
// "deepseek/deepseek-chat" or "openrouter/anthropic/claude-sonnet-4"
// (everything after the first slash is the model id).
func Provider(id string) (awakener.Provider, error) {
	name, model, ok := strings.Cut(id, "/")
	if !ok || model == "" {
		return nil, fmt.Errorf("resolve: model id %q is not in provider/model form", id)
	}

	r, ok := routes[name]
	if !ok {
		return nil, fmt.Errorf("resolve: unknown provider %q", name)
	}

	apiKey := ""
	if r.keyEnv != "" {
		apiKey = os.Getenv(r.keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("resolve: %s is not set (required for provider %q)", r.keyEnv, name)
		}
	}

	return openaicompat.NewProvider(apiKey, model, r.baseURL, openaicompat.WithName(name)), nil
}

// KeyEnv reports the environment variable that supplies the key for a
// provider prefix, or "" when the provider needs none or is unknown.
func KeyEnv(provider string) string {
	return routes[provider].keyEnv
}
