package llm

import (
	"context"
	"fmt"

	"greenprint/internal/config"
)

// NewClient builds a provider client from configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	timeout, err := cfg.ParsedTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid llm timeout: %w", err)
	}

	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	case "openai":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want gemini or openai)", cfg.Provider)
	}
}
