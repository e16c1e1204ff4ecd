package config

import (
	"fmt"
	"time"

	"github.com/agentdeck/agentdeck/internal/llm"
)

// DefaultLLMTimeout bounds a single provider call.
const DefaultLLMTimeout = 2 * time.Minute

// LoadLLMConfig builds the llm.Config for the configured provider.
// It does not fail on a missing API key; Validate reports that.
func LoadLLMConfig(s Settings) (llm.Config, error) {
	provider, err := llm.ValidateProvider(s.LLM.Provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	model := s.LLM.Model
	if model == "" {
		model = DefaultModelForProvider(string(provider))
	}

	baseURL := s.LLM.BaseURL
	if baseURL == "" && provider == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	keys := s.APIKeys()
	return llm.Config{
		Provider:       provider,
		Model:          model,
		EmbeddingModel: s.LLM.EmbeddingModel,
		APIKey:         keys[provider],
		APIKeys:        keys,
		BaseURL:        baseURL,
		Timeout:        DefaultLLMTimeout,
	}, nil
}

// APIKeys returns the non-empty provider credentials keyed by provider.
func (s Settings) APIKeys() map[llm.Provider]string {
	keys := make(map[llm.Provider]string, 3)
	if s.Credentials.OpenAI != "" {
		keys[llm.ProviderOpenAI] = s.Credentials.OpenAI
	}
	if s.Credentials.Anthropic != "" {
		keys[llm.ProviderAnthropic] = s.Credentials.Anthropic
	}
	if s.Credentials.Gemini != "" {
		keys[llm.ProviderGemini] = s.Credentials.Gemini
	}
	return keys
}
