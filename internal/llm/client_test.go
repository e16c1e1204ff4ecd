package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/llm/llmtest"
	"github.com/cloudwego/eino/schema"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     Provider
		wantErr  bool
	}{
		{name: "valid openai", provider: "openai", want: ProviderOpenAI},
		{name: "valid ollama", provider: "ollama", want: ProviderOllama},
		{name: "valid anthropic", provider: "anthropic", want: ProviderAnthropic},
		{name: "valid gemini", provider: "gemini", want: ProviderGemini},
		{name: "invalid provider", provider: "invalid", wantErr: true},
		{name: "empty provider", provider: "", wantErr: true},
		{name: "case sensitive - OPENAI fails", provider: "OPENAI", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateProvider(tt.provider)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProvider(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ValidateProvider(%q) = %v, want %v", tt.provider, got, tt.want)
			}
		})
	}
}

func TestNewChatModel_Validation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "openai without key", cfg: Config{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}, wantErr: "OpenAI API key is required"},
		{name: "anthropic without key", cfg: Config{Provider: ProviderAnthropic, Model: "claude-3-5-haiku-latest"}, wantErr: "anthropic API key is required"},
		{name: "gemini without key", cfg: Config{Provider: ProviderGemini, Model: "gemini-2.0-flash"}, wantErr: "gemini API key is required"},
		{name: "unknown provider", cfg: Config{Provider: "mystery"}, wantErr: "unsupported LLM provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChatModel(ctx, tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_WithModel(t *testing.T) {
	base := Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "sk-openai",
		APIKeys: map[Provider]string{
			ProviderOpenAI:    "sk-openai",
			ProviderAnthropic: "sk-ant",
		},
	}

	t.Run("empty keeps config", func(t *testing.T) {
		got, err := base.WithModel("")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", got.Model)
	})

	t.Run("same provider keeps key", func(t *testing.T) {
		got, err := base.WithModel("gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, Provider(ProviderOpenAI), got.Provider)
		assert.Equal(t, "gpt-4o", got.Model)
		assert.Equal(t, "sk-openai", got.APIKey)
	})

	t.Run("switches provider and key", func(t *testing.T) {
		got, err := base.WithModel("claude-3-5-haiku-latest")
		require.NoError(t, err)
		assert.Equal(t, Provider(ProviderAnthropic), got.Provider)
		assert.Equal(t, "sk-ant", got.APIKey)
	})

	t.Run("missing key for inferred provider", func(t *testing.T) {
		_, err := base.WithModel("gemini-2.0-flash")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gemini")
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		got, err := base.WithModel("llama3.2")
		require.NoError(t, err)
		assert.Equal(t, Provider(ProviderOllama), got.Provider)
		assert.Equal(t, DefaultOllamaURL, got.BaseURL)
	})
}

func TestNewEmbedder_Unsupported(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: ProviderAnthropic})
	assert.ErrorIs(t, err, ErrEmbeddingUnsupported)
}

func TestBreakerModel_OpensAfterConsecutiveFailures(t *testing.T) {
	fake := llmtest.NewFakeModel()
	fake.Err = errors.New("upstream 500")
	m := WithBreaker("test", fake)
	msgs := []*schema.Message{schema.UserMessage("hi")}

	for i := 0; i < breakerFailures; i++ {
		_, err := m.Generate(context.Background(), msgs)
		require.Error(t, err)
	}

	_, err := m.Generate(context.Background(), msgs)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, breakerFailures, fake.CallCount(), "open breaker must not reach the provider")
}

func TestBreakerModel_CancelledQueriesDoNotTrip(t *testing.T) {
	fake := llmtest.NewFakeModel("ok")
	m := WithBreaker("test", fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < breakerFailures+1; i++ {
		_, err := m.Generate(ctx, []*schema.Message{schema.UserMessage("hi")})
		require.ErrorIs(t, err, context.Canceled)
	}

	resp, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestBreakerModel_WithToolsSharesBreaker(t *testing.T) {
	fake := llmtest.NewFakeModel("streamed reply here")
	m := WithBreaker("test", fake)

	bound, err := m.WithTools([]*schema.ToolInfo{{Name: "think"}})
	require.NoError(t, err)
	require.Len(t, fake.Tools, 1)

	sr, err := bound.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer sr.Close()

	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if err != nil {
			break
		}
		sb.WriteString(chunk.Content)
	}
	assert.Equal(t, "streamed reply here", sb.String())
}

func TestTrimToBudget(t *testing.T) {
	texts := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc"} // 2 tokens each

	assert.Equal(t, texts, TrimToBudget(texts, 0))
	assert.Equal(t, []string{"bbbbbbbb", "cccccccc"}, TrimToBudget(texts, 5))
	assert.Empty(t, TrimToBudget(texts, 1))
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
}
