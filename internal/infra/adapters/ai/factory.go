package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/config"
	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/ports/adapter"
)

// NewClient builds the model client described by cfg: the provider adapter,
// wrapped with per-call deadline, instrumentation and the concurrency cap.
// It performs no network I/O. The result is safe for concurrent use and is
// meant to be built once and shared.
func NewClient(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	base, err := newProviderAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewLimitedAI(NewInstrumentedAI(base, cfg.RequestTimeout, logger), cfg.ConcurrentLimit), nil
}

func newProviderAdapter(ctx context.Context, cfg config.AIConfig) (adapter.AIServiceAdapter, error) {
	switch cfg.Provider {
	case "", "bedrock":
		return NewBedrockAdapter(ctx, BedrockOptions{
			Region:   cfg.Region,
			Profile:  cfg.Profile,
			Endpoint: cfg.Endpoint,
		}, cfg.ModelID, cfg.Decoding)
	case "openai":
		return NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ModelID, cfg.Decoding)
	case "gemini":
		return NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.ModelID, cfg.Decoding)
	case "noop":
		return NewNoopAIAdapter(cfg.ModelID, cfg.Decoding), nil
	default:
		return nil, fmt.Errorf("%w: unknown ai provider %q", domain.ErrInvalidArgument, cfg.Provider)
	}
}
