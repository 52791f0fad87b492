package guide

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/recommend"
)

const geminiTemperature = 0.7

// GeminiBackend talks to Google's Gemini API. Each session is a genai chat
// that carries its own history.
type GeminiBackend struct {
	client *genai.Client
	model  string

	mu    sync.Mutex
	chats map[chat.SessionID]*genai.Chat
}

// GeminiOptions configures NewGeminiBackend. BaseURL overrides the API
// endpoint (for testing).
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewGeminiBackend creates a Gemini API client.
func NewGeminiBackend(ctx context.Context, opts GeminiOptions) (*GeminiBackend, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiBackend{
		client: client,
		model:  opts.Model,
		chats:  make(map[chat.SessionID]*genai.Chat),
	}, nil
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) StartSession(ctx context.Context) (chat.SessionID, error) {
	c, err := b.client.Chats.Create(ctx, b.model, &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](geminiTemperature),
		SystemInstruction: genai.NewContentFromText(personaPrompt, genai.RoleUser),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("creating gemini chat: %w", err)
	}

	id := chat.SessionID(uuid.NewString())
	b.mu.Lock()
	b.chats[id] = c
	b.mu.Unlock()
	return id, nil
}

// EndSession drops the genai chat and the history it holds.
func (b *GeminiBackend) EndSession(_ context.Context, id chat.SessionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.chats, id)
	return nil
}

func (b *GeminiBackend) Reply(ctx context.Context, id chat.SessionID, text string) (string, error) {
	b.mu.Lock()
	c, ok := b.chats[id]
	b.mu.Unlock()
	if !ok {
		return "", ErrUnknownSession
	}

	resp, err := c.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	reply := extractText(resp)
	if reply == "" {
		return "", errors.New("gemini chat: empty response")
	}
	return reply, nil
}

func (b *GeminiBackend) Recommend(ctx context.Context, province string) (recommend.ProvinceData, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(recommendationRequest(province)), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](recommendTemperature),
		SystemInstruction: genai.NewContentFromText(recommendPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    geminiRecommendationSchema(),
	})
	if err != nil {
		return recommend.ProvinceData{}, fmt.Errorf("gemini recommend: %w", err)
	}
	return parseRecommendations(extractText(resp))
}

// extractText concatenates the text parts of the first candidate that has any.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

func geminiRecommendationSchema() *genai.Schema {
	item := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(itemSchemaFields)),
	}
	for _, f := range itemSchemaFields {
		item.Properties[f.name] = &genai.Schema{Type: genai.TypeString, Description: f.desc}
		item.PropertyOrdering = append(item.PropertyOrdering, f.name)
		if f.required {
			item.Required = append(item.Required, f.name)
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"attractions": {Type: genai.TypeArray, Items: item},
			"restaurants": {Type: genai.TypeArray, Items: item},
		},
		Required: []string{"attractions", "restaurants"},
	}
}
