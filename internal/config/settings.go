package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/agentdeck/agentdeck/internal/llm"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Settings is the process-wide configuration. It is loaded once at start-up
// and passed explicitly to the components that need it.
type Settings struct {
	Credentials Credentials
	LLM         LLMSettings
	AgentsDir   string `validate:"required"`
	DataDir     string
	Verbose     bool
	Log         LogSettings
	Memory      MemorySettings
	Serve       ServeSettings
	Telemetry   TelemetrySettings
}

// Credentials holds provider secrets. Each is read from its canonical
// environment variable unless llm.apiKeys.<provider> is set.
type Credentials struct {
	OpenAI    string
	Anthropic string
	Gemini    string
	Firecrawl string // optional, enables the Firecrawl backend of web_fetch
}

// LLMSettings selects the chat and embedding models.
type LLMSettings struct {
	Provider       string `validate:"oneof=openai ollama anthropic gemini"`
	Model          string `validate:"required"`
	BaseURL        string `validate:"omitempty,url"`
	EmbeddingModel string
}

// LogSettings configures internal/logger.
type LogSettings struct {
	Level  string `validate:"omitempty,oneof=debug info warn error"`
	Format string `validate:"omitempty,oneof=text json"`
	Output string
}

// MemorySettings configures the sqlite store.
type MemorySettings struct {
	Path string // file path or ":memory:"; defaults to <data dir>/memory.db
}

// ServeSettings configures the HTTP façade.
type ServeSettings struct {
	Addr           string   `validate:"required"`
	Agents         []string // builtin ids to serve; empty serves all
	AllowedOrigins []string
	RateLimit      float64 `validate:"gte=0"`
	Burst          int     `validate:"gte=0"`
}

// TelemetrySettings configures opt-in PostHog usage events.
type TelemetrySettings struct {
	Enabled  bool
	APIKey   string
	Endpoint string `validate:"omitempty,url"`
}

// ConfigError reports required settings that are absent.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Missing, ", ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", DefaultProvider)
	v.SetDefault("agents.dir", DefaultAgentsDir)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("serve.addr", DefaultAddr)
	v.SetDefault("serve.allowedOrigins", DefaultAllowedOrigins)
	v.SetDefault("serve.rateLimit", DefaultRateLimit)
	v.SetDefault("serve.burst", DefaultRateBurst)
}

// LoadSettings reads Settings from v and the process environment. It does not
// mutate v and may be called any number of times.
func LoadSettings(v *viper.Viper) Settings {
	provider := strings.TrimSpace(v.GetString("llm.provider"))
	if provider == "" {
		provider = DefaultProvider
	}
	model := strings.TrimSpace(v.GetString("llm.model"))
	if model == "" {
		model = DefaultModelForProvider(provider)
	}
	agentsDir := v.GetString("agents.dir")
	if agentsDir == "" {
		agentsDir = DefaultAgentsDir
	}
	addr := v.GetString("serve.addr")
	if addr == "" {
		addr = DefaultAddr
	}

	s := Settings{
		Credentials: Credentials{
			OpenAI:    resolveKey(v, llm.ProviderOpenAI, EnvOpenAIAPIKey),
			Anthropic: resolveKey(v, llm.ProviderAnthropic, EnvAnthropicAPIKey),
			Gemini:    resolveKey(v, llm.ProviderGemini, EnvGeminiAPIKey, EnvGoogleAPIKey),
			Firecrawl: resolveKey(v, "firecrawl", EnvFirecrawlAPIKey),
		},
		LLM: LLMSettings{
			Provider:       provider,
			Model:          model,
			BaseURL:        v.GetString("llm.baseURL"),
			EmbeddingModel: v.GetString("llm.embeddingModel"),
		},
		AgentsDir: agentsDir,
		DataDir:   ResolveDataDir(v.GetString("data.dir")),
		Verbose:   v.GetBool("verbose"),
		Log: LogSettings{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Memory: MemorySettings{Path: v.GetString("memory.path")},
		Serve: ServeSettings{
			Addr:           addr,
			Agents:         v.GetStringSlice("serve.agents"),
			AllowedOrigins: v.GetStringSlice("serve.allowedOrigins"),
			RateLimit:      v.GetFloat64("serve.rateLimit"),
			Burst:          v.GetInt("serve.burst"),
		},
		Telemetry: TelemetrySettings{
			Enabled:  v.GetBool("telemetry.enabled"),
			APIKey:   v.GetString("telemetry.apiKey"),
			Endpoint: v.GetString("telemetry.endpoint"),
		},
	}
	if s.Verbose {
		s.Log.Level = "debug"
	}
	return s
}

// resolveKey returns llm.apiKeys.<name> when set, else the first non-empty env var.
func resolveKey(v *viper.Viper, name string, envNames ...string) string {
	if key := strings.TrimSpace(v.GetString("llm.apiKeys." + name)); key != "" {
		return key
	}
	for _, env := range envNames {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			return key
		}
	}
	return ""
}

// RequiredCredential returns the env var that must be set for provider, or ""
// when the provider needs no credential.
func RequiredCredential(provider string) string {
	switch provider {
	case llm.ProviderOpenAI:
		return EnvOpenAIAPIKey
	case llm.ProviderAnthropic:
		return EnvAnthropicAPIKey
	case llm.ProviderGemini:
		return EnvGeminiAPIKey
	default:
		return ""
	}
}

// Validate reports every absent required setting as a *ConfigError, then
// checks the shape of the remaining fields.
func (s Settings) Validate() error {
	var missing []string
	switch RequiredCredential(s.LLM.Provider) {
	case EnvOpenAIAPIKey:
		if s.Credentials.OpenAI == "" {
			missing = append(missing, EnvOpenAIAPIKey)
		}
	case EnvAnthropicAPIKey:
		if s.Credentials.Anthropic == "" {
			missing = append(missing, EnvAnthropicAPIKey)
		}
	case EnvGeminiAPIKey:
		if s.Credentials.Gemini == "" {
			missing = append(missing, EnvGeminiAPIKey)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid setting %s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
