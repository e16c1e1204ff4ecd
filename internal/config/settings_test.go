package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/agentdeck/agentdeck/internal/llm"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvOpenAIAPIKey, EnvAnthropicAPIKey, EnvGeminiAPIKey, EnvGoogleAPIKey, EnvFirecrawlAPIKey} {
		t.Setenv(name, "")
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestValidate_MissingOpenAIKey(t *testing.T) {
	clearCredentialEnv(t)

	err := LoadSettings(newViper()).Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %T", err)
	assert.Equal(t, []string{"OPENAI_API_KEY"}, cfgErr.Missing)
	assert.Equal(t, "missing required environment variables: OPENAI_API_KEY", err.Error())
}

func TestValidate_OptionalKeysNeverFail(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")

	s := LoadSettings(newViper())
	assert.Empty(t, s.Credentials.Firecrawl)
	assert.NoError(t, s.Validate())
}

func TestValidate_RequiredCredentialFollowsProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      map[string]string
		missing  []string
	}{
		{name: "anthropic unset", provider: "anthropic", missing: []string{"ANTHROPIC_API_KEY"}},
		{name: "anthropic set", provider: "anthropic", env: map[string]string{EnvAnthropicAPIKey: "a"}},
		{name: "gemini via google key", provider: "gemini", env: map[string]string{EnvGoogleAPIKey: "g"}},
		{name: "gemini unset", provider: "gemini", missing: []string{"GEMINI_API_KEY"}},
		{name: "ollama needs nothing", provider: "ollama"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv(t)
			for k, val := range tt.env {
				t.Setenv(k, val)
			}
			v := newViper()
			v.Set("llm.provider", tt.provider)

			err := LoadSettings(v).Validate()
			if len(tt.missing) == 0 {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.missing, cfgErr.Missing)
		})
	}
}

func TestValidate_Shape(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")

	v := newViper()
	v.Set("llm.baseURL", "not a url")
	err := LoadSettings(v).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseURL")

	v = newViper()
	v.Set("llm.provider", "bedrock")
	err = LoadSettings(v).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provider")
}

func TestLoadSettings_Defaults(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	s := LoadSettings(newViper())
	assert.Equal(t, "openai", s.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
	assert.Equal(t, DefaultAgentsDir, s.AgentsDir)
	assert.Equal(t, DefaultAddr, s.Serve.Addr)
	assert.Equal(t, DefaultRateBurst, s.Serve.Burst)
	assert.Equal(t, DefaultAllowedOrigins, s.Serve.AllowedOrigins)
	assert.Equal(t, filepath.Join(s.DataDir, "memory.db"), s.MemoryDBPath())
}

func TestLoadSettings_Idempotent(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	v := newViper()
	v.Set("verbose", true)

	first := LoadSettings(v)
	second := LoadSettings(v)
	assert.Equal(t, first, second)
	assert.Equal(t, "debug", first.Log.Level)
}

func TestLoadSettings_ConfigKeyBeatsEnv(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "from-env")
	v := newViper()
	v.Set("llm.apiKeys.openai", "from-config")

	assert.Equal(t, "from-config", LoadSettings(v).Credentials.OpenAI)
}

func TestLoadLLMConfig(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-openai")
	t.Setenv(EnvAnthropicAPIKey, "sk-ant")

	cfg, err := LoadLLMConfig(LoadSettings(newViper()))
	require.NoError(t, err)
	assert.Equal(t, llm.Provider(llm.ProviderOpenAI), cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "sk-openai", cfg.APIKey)
	assert.Equal(t, "sk-ant", cfg.APIKeys[llm.ProviderAnthropic])

	v := newViper()
	v.Set("llm.provider", "ollama")
	cfg, err = LoadLLMConfig(LoadSettings(v))
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultOllamaURL, cfg.BaseURL)
	assert.Equal(t, "llama3.2", cfg.Model)

	v.Set("llm.provider", "nope")
	_, err = LoadLLMConfig(LoadSettings(v))
	assert.Error(t, err)
}

func TestResolveDataDir(t *testing.T) {
	assert.Equal(t, "/explicit", ResolveDataDir("/explicit"))

	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	assert.Equal(t, filepath.Join(xdg, "agentdeck"), ResolveDataDir(""))

	t.Setenv("XDG_DATA_HOME", "")
	orig := GetGlobalConfigDir
	t.Cleanup(func() { GetGlobalConfigDir = orig })
	GetGlobalConfigDir = func() (string, error) { return "/home/test/.agentdeck", nil }
	assert.Equal(t, "/home/test/.agentdeck", ResolveDataDir(""))
}
