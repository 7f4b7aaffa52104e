package llm

import (
	"github.com/kagent-dev/agentdesk/pkg/adk/config"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

// NewTransport creates the transport for the configured provider
func NewTransport(cfg config.ModelConfig) (Transport, error) {
	if cfg.Name == "" {
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "model name is required", nil)
	}

	opts := Options{
		Model:       cfg.Name,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAITransport(opts), nil
	case config.ProviderAnthropic:
		return NewAnthropicTransport(opts), nil
	case config.ProviderGemini:
		return NewGeminiTransport(opts), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrCodeAgentConfig, "unsupported model provider: %s", cfg.Provider)
	}
}
