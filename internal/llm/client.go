// Package llm provides a unified interface for LLM providers using CloudWeGo Eino.
package llm

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Provider identifies the LLM provider to use.
type Provider string

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider       Provider
	Model          string              // Chat model
	EmbeddingModel string              // Embedding model (optional)
	APIKey         string              // Key for Provider
	APIKeys        map[Provider]string // Keys for every provider, used by per-agent model overrides
	BaseURL        string              // Ollama or OpenAI-compatible endpoint
	Temperature    *float32
	Timeout        time.Duration
}

// WithModel returns a copy of the config targeting modelID. The provider is
// inferred from the model name; an unknown name keeps the current provider.
func (c Config) WithModel(modelID string) (Config, error) {
	if modelID == "" || modelID == c.Model {
		return c, nil
	}
	out := c
	out.Model = modelID
	if p, ok := InferProvider(modelID); ok && Provider(p) != c.Provider {
		out.Provider = Provider(p)
		out.APIKey = c.APIKeys[out.Provider]
		out.BaseURL = ""
		if out.Provider == ProviderOllama {
			out.BaseURL = DefaultOllamaURL
		}
		if out.APIKey == "" && out.Provider != ProviderOllama {
			return Config{}, fmt.Errorf("model %s needs a %s API key", modelID, out.Provider)
		}
	}
	return out, nil
}

// NewChatModel creates a tool-calling chat model for the configured provider,
// guarded by a circuit breaker.
func NewChatModel(ctx context.Context, cfg Config) (model.ToolCallingChatModel, error) {
	base, err := newProviderChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tcm, ok := base.(model.ToolCallingChatModel)
	if !ok {
		return nil, fmt.Errorf("model %q does not support tool calling", cfg.Model)
	}
	return WithBreaker(string(cfg.Provider)+"/"+cfg.Model, tcm), nil
}

func newProviderChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   DefaultClaudeMaxTokens,
			Temperature: cfg.Temperature,
		})

	case ProviderGemini:
		client, err := newGenAIClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, ollama, anthropic, gemini)", cfg.Provider)
	}
}

func newGenAIClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// ValidateProvider checks if the given provider string is supported.
func ValidateProvider(p string) (Provider, error) {
	if !slices.Contains(Providers, p) {
		return "", fmt.Errorf("unsupported provider: %s", p)
	}
	return Provider(p), nil
}
