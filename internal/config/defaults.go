// Package config provides centralized configuration for agentdeck.
// All default values should be defined here to ensure a single source of truth.
package config

import "github.com/agentdeck/agentdeck/internal/llm"

// AppName names the config file, env prefix and data directory.
const AppName = "agentdeck"

// EnvPrefix is the prefix viper uses for AGENTDECK_* variables.
const EnvPrefix = "AGENTDECK"

// Credential environment variable names.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvFirecrawlAPIKey = "FIRE_CRAWL_API_KEY"
)

// LLM defaults
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = llm.DefaultProvider

	// DefaultModel is the chat model used when llm.model is unset
	DefaultModel = "gpt-4o-mini"
)

// Service defaults
const (
	// DefaultAddr is the listen address for `agentdeck serve`
	DefaultAddr = ":7777"

	// DefaultRateLimit is the façade's global request rate (per second)
	DefaultRateLimit = 5.0

	// DefaultRateBurst is the façade's burst allowance
	DefaultRateBurst = 10
)

// DefaultAgentsDir is the package tree discovered at start-up.
const DefaultAgentsDir = "agents"

// DefaultAllowedOrigins are the browser origins the façade accepts.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// DefaultModelForProvider returns the chat model for a provider when llm.model
// is unset. OpenAI keeps the deck-wide default.
func DefaultModelForProvider(provider string) string {
	if provider == llm.ProviderOpenAI {
		return DefaultModel
	}
	return llm.DefaultModelForProvider(provider)
}
