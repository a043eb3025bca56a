package llm

import (
	"fmt"
	"time"
)

// Provider names accepted by Config.Provider and Config.ImageProvider.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config holds all provider configuration.
type Config struct {
	// Provider selects the text provider.
	// Values: "gemini", "openai", "anthropic", "openrouter", "mock"
	Provider string

	// ImageProvider selects the image provider. Empty means the same as
	// Provider. Anthropic and OpenRouter have no image endpoint.
	ImageProvider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-haiku"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey     string
	Model      string // Default: "gpt-4o-mini"
	ImageModel string // Default: "dall-e-3"
	BaseURL    string // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey     string
	Model      string // Default: "gemini-flash"
	ImageModel string // Default: "imagen"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.0-flash-exp"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderGemini,
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenAI: OpenAIConfig{
			Model:      "gpt-4o-mini",
			ImageModel: "dall-e-3",
		},
		Gemini: GeminiConfig{
			Model:      "gemini-flash",
			ImageModel: "imagen",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.0-flash-exp",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
	}
}

// ImageProviderName resolves the provider used for images.
func (c Config) ImageProviderName() string {
	if c.ImageProvider != "" {
		return c.ImageProvider
	}
	return c.Provider
}

// APIKeyFor returns the configured key for the named provider.
func (c Config) APIKeyFor(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return c.Anthropic.APIKey
	case ProviderOpenAI:
		return c.OpenAI.APIKey
	case ProviderGemini:
		return c.Gemini.APIKey
	case ProviderOpenRouter:
		return c.OpenRouter.APIKey
	}
	return ""
}

// Validate checks that provider names are known and that the image
// provider can actually render images. Missing API keys are not an error
// here: they surface as ErrUnauthenticated on the first call.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOpenRouter, ProviderMock:
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}

	switch c.ImageProviderName() {
	case ProviderOpenAI, ProviderGemini, ProviderMock:
	case ProviderAnthropic, ProviderOpenRouter:
		return fmt.Errorf("provider %q has no image endpoint; set an image provider", c.ImageProviderName())
	default:
		return fmt.Errorf("unknown image provider: %q", c.ImageProviderName())
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// MissingKeys lists the providers in use whose API key is empty.
func (c Config) MissingKeys() []string {
	var missing []string
	seen := map[string]bool{}
	for _, p := range []string{c.Provider, c.ImageProviderName()} {
		if p == ProviderMock || seen[p] {
			continue
		}
		seen[p] = true
		if c.APIKeyFor(p) == "" {
			missing = append(missing, p)
		}
	}
	return missing
}
