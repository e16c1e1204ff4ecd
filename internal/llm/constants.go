package llm

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"

	DefaultProvider = ProviderOpenAI
)

// Providers lists every provider name accepted by llm.provider.
var Providers = []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama}

// Embedding defaults per provider. Anthropic has no embedding API, so
// knowledge falls back to keyword search there.
const (
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOllamaEmbeddingModel = "nomic-embed-text"
	DefaultGeminiEmbeddingModel = "text-embedding-004"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

// DefaultClaudeMaxTokens bounds Claude responses; the Anthropic API requires it.
const DefaultClaudeMaxTokens = 4096
