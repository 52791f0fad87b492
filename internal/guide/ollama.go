package guide

import (
	"context"
	"fmt"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/ollama"
	"github.com/kalambet/siampass/internal/recommend"
)

// OllamaChatter is the interface for chat completion via Ollama.
type OllamaChatter interface {
	Chat(ctx context.Context, req ollama.ChatRequest) (string, error)
}

// ollamaKeepAlive keeps the model loaded between turns of a conversation.
const ollamaKeepAlive = "30m"

// OllamaBackend talks to a local Ollama server. Ollama's chat API is
// stateless, so session history is kept here and replayed on every turn.
type OllamaBackend struct {
	client OllamaChatter
	model  string
	turns  *transcripts
}

// NewOllamaBackend creates a backend using the given client and model name.
func NewOllamaBackend(client OllamaChatter, model string) *OllamaBackend {
	return &OllamaBackend{client: client, model: model, turns: newTranscripts()}
}

func (b *OllamaBackend) Name() string { return "ollama" }

func (b *OllamaBackend) StartSession(context.Context) (chat.SessionID, error) {
	return b.turns.open(), nil
}

func (b *OllamaBackend) EndSession(_ context.Context, id chat.SessionID) error {
	b.turns.close(id)
	return nil
}

func (b *OllamaBackend) Reply(ctx context.Context, id chat.SessionID, text string) (string, error) {
	history, err := b.turns.history(id)
	if err != nil {
		return "", err
	}

	messages := make([]ollama.Message, 0, len(history)+2)
	messages = append(messages, ollama.Message{Role: "system", Content: personaPrompt})
	for _, t := range history {
		messages = append(messages, ollama.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, ollama.Message{Role: "user", Content: text})

	reply, err := b.client.Chat(ctx, ollama.ChatRequest{
		Model:     b.model,
		Messages:  messages,
		KeepAlive: ollamaKeepAlive,
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	b.turns.record(id, text, reply)
	return reply, nil
}

func (b *OllamaBackend) Recommend(ctx context.Context, province string) (recommend.ProvinceData, error) {
	temp := recommendTemperature
	raw, err := b.client.Chat(ctx, ollama.ChatRequest{
		Model: b.model,
		Messages: []ollama.Message{
			{Role: "system", Content: recommendPrompt},
			{Role: "user", Content: recommendationRequest(province)},
		},
		Format:    recommendationSchema(),
		Options:   &ollama.Options{Temperature: &temp},
		KeepAlive: ollamaKeepAlive,
	})
	if err != nil {
		return recommend.ProvinceData{}, fmt.Errorf("ollama recommend: %w", err)
	}
	return parseRecommendations(raw)
}

// recommendationSchema returns the Ollama JSON schema for ProvinceData.
func recommendationSchema() *ollama.Schema {
	item := &ollama.Schema{
		Type:       "object",
		Properties: make(map[string]*ollama.Schema, len(itemSchemaFields)),
	}
	for _, f := range itemSchemaFields {
		item.Properties[f.name] = &ollama.Schema{Type: "string", Description: f.desc}
		if f.required {
			item.Required = append(item.Required, f.name)
		}
	}
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]*ollama.Schema{
			"attractions": {Type: "array", Description: "Places worth visiting", Items: item},
			"restaurants": {Type: "array", Description: "Places to eat", Items: item},
		},
		Required: []string{"attractions", "restaurants"},
	}
}
