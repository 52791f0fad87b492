package guide

import (
	"context"
	"fmt"

	"github.com/kalambet/siampass/internal/config"
	"github.com/kalambet/siampass/internal/ollama"
	"github.com/kalambet/siampass/internal/openrouter"
)

// Detect builds the backend selected by cfg.Guide.Provider.
func Detect(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Guide.Provider {
	case config.ProviderOllama:
		return NewOllamaBackend(ollama.New(cfg.Ollama.BaseURL), cfg.Ollama.ChatModel), nil
	case config.ProviderGemini:
		return NewGeminiBackend(ctx, GeminiOptions{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
	case config.ProviderOpenRouter:
		return NewOpenRouterBackend(openrouter.NewClient(cfg.OpenRouter.APIKey), cfg.OpenRouter.Model), nil
	default:
		return nil, fmt.Errorf("unknown guide provider %q", cfg.Guide.Provider)
	}
}
