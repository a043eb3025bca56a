package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/contentgen/internal/store"
)

// NewProvider creates the text Provider from configuration.
// It returns the provider wrapped with retry and logging middleware.
// A missing API key is not an error: the returned provider fails every
// call with ErrUnauthenticated so the failure shows up where the user
// asked for content.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *zap.Logger) (Provider, error) {
	if cfg.Provider == ProviderMock {
		return WithLogging(NewEchoProvider(), ProviderMock, eventRepo, log), nil
	}

	var base Provider
	var err error

	if cfg.APIKeyFor(cfg.Provider) == "" {
		base = missingKey{provider: cfg.Provider}
	} else {
		switch cfg.Provider {
		case ProviderAnthropic:
			base, err = NewAnthropicProvider(cfg.Anthropic)
		case ProviderOpenAI:
			base, err = NewOpenAIProvider(cfg.OpenAI)
		case ProviderGemini:
			base, err = NewGeminiProvider(ctx, cfg.Gemini)
		case ProviderOpenRouter:
			base, err = NewOpenRouterProvider(cfg.OpenRouter)
		default:
			return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
		}
		if err != nil {
			return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
		}
	}

	// Wrap with middleware: caller → retry → logging → base
	logged := WithLogging(base, cfg.Provider, eventRepo, log)
	retried := WithRetry(logged, cfg.Retry)

	return retried, nil
}

// NewImageProvider creates the ImageProvider from configuration, wrapped
// the same way as NewProvider.
func NewImageProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *zap.Logger) (ImageProvider, error) {
	name := cfg.ImageProviderName()
	if name == ProviderMock {
		return WithImageLogging(NewEchoProvider(), ProviderMock, eventRepo, log), nil
	}

	var base ImageProvider
	var err error

	if cfg.APIKeyFor(name) == "" {
		base = missingKey{provider: name}
	} else {
		switch name {
		case ProviderOpenAI:
			base, err = NewOpenAIProvider(cfg.OpenAI)
		case ProviderGemini:
			base, err = NewGeminiProvider(ctx, cfg.Gemini)
		case ProviderAnthropic, ProviderOpenRouter:
			return nil, fmt.Errorf("provider %q has no image endpoint", name)
		default:
			return nil, fmt.Errorf("unknown image provider: %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("initializing %s image provider: %w", name, err)
		}
	}

	logged := WithImageLogging(base, name, eventRepo, log)
	return WithImageRetry(logged, cfg.Retry), nil
}

// missingKey stands in for a provider whose API key was not configured.
type missingKey struct {
	provider string
}

func (m missingKey) Generate(context.Context, Request) (*Response, error) {
	return nil, m.err()
}

func (m missingKey) GenerateImage(context.Context, ImageRequest) (*ImageResponse, error) {
	return nil, m.err()
}

func (m missingKey) ModelID() string {
	return m.provider
}

func (m missingKey) err() error {
	return fmt.Errorf("%w: no API key configured for %s", ErrUnauthenticated, m.provider)
}
