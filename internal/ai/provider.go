package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// NewChatClient returns the client for the configured provider name.
func NewChatClient(ctx context.Context, provider, apiKey string, logger zerolog.Logger) (ChatClient, error) {
	switch provider {
	case "", "openai":
		return NewOpenAICompatibleClient(), nil
	case "gemini":
		return NewGeminiClient(ctx, apiKey, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
