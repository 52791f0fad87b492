package guide

import (
	"context"
	"fmt"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/openrouter"
	"github.com/kalambet/siampass/internal/recommend"
)

// OpenRouterChatter is the interface for chat completion via OpenRouter.
type OpenRouterChatter interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (string, error)
}

// OpenRouterBackend talks to any model hosted on OpenRouter.
type OpenRouterBackend struct {
	client OpenRouterChatter
	model  string
	turns  *transcripts
}

// NewOpenRouterBackend creates a backend using the given client and model.
func NewOpenRouterBackend(client OpenRouterChatter, model string) *OpenRouterBackend {
	return &OpenRouterBackend{client: client, model: model, turns: newTranscripts()}
}

func (b *OpenRouterBackend) Name() string { return "openrouter" }

func (b *OpenRouterBackend) StartSession(context.Context) (chat.SessionID, error) {
	return b.turns.open(), nil
}

func (b *OpenRouterBackend) EndSession(_ context.Context, id chat.SessionID) error {
	b.turns.close(id)
	return nil
}

func (b *OpenRouterBackend) Reply(ctx context.Context, id chat.SessionID, text string) (string, error) {
	history, err := b.turns.history(id)
	if err != nil {
		return "", err
	}

	messages := make([]openrouter.Message, 0, len(history)+2)
	messages = append(messages, openrouter.Message{Role: "system", Content: personaPrompt})
	for _, t := range history {
		messages = append(messages, openrouter.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, openrouter.Message{Role: "user", Content: text})

	reply, err := b.client.Chat(ctx, openrouter.ChatRequest{Model: b.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("openrouter chat: %w", err)
	}
	b.turns.record(id, text, reply)
	return reply, nil
}

func (b *OpenRouterBackend) Recommend(ctx context.Context, province string) (recommend.ProvinceData, error) {
	temp := recommendTemperature
	raw, err := b.client.Chat(ctx, openrouter.ChatRequest{
		Model: b.model,
		Messages: []openrouter.Message{
			{Role: "system", Content: recommendPrompt},
			{Role: "user", Content: recommendationRequest(province)},
		},
		Temperature:    &temp,
		ResponseFormat: &openrouter.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return recommend.ProvinceData{}, fmt.Errorf("openrouter recommend: %w", err)
	}
	return parseRecommendations(raw)
}
