// Package ollama is a small client for the parts of the Ollama HTTP API the
// guide needs: model management at startup and non-streaming chat.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is the JSON schema passed as the chat "format" to constrain the
// model's output. It nests for arrays and objects.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Options are per-request model parameters. Zero values use the model's
// defaults.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumCtx      int      `json:"num_ctx,omitempty"`
}

// ChatRequest is the body of POST /api/chat. Chat always sends it with
// streaming disabled.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	// Format requests structured output matching the schema.
	Format  *Schema  `json:"format,omitempty"`
	Options *Options `json:"options,omitempty"`
	// KeepAlive is how long the model stays loaded after the request,
	// e.g. "30m".
	KeepAlive string `json:"keep_alive,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Client talks to one Ollama server. Requests carry no client-side timeout;
// callers bound them with their context.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", path, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// IsRunning reports whether the server answers within two seconds.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// ListModels returns the names of the locally installed models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether name is installed. A bare name matches any tag,
// so "llama3.1" finds "llama3.1:latest".
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Percent returns the completed share of the current layer, or -1 when the
// line carries no size.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// PullModel downloads name and blocks until the stream ends. onProgress, if
// non-nil, sees every progress line.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	resp, err := c.send(ctx, http.MethodPost, "/api/pull", pullRequest{Name: name, Stream: true})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", name, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		// Failures after the 200 arrive in-stream.
		if p.Error != "" {
			return fmt.Errorf("pulling %s: %s", name, p.Error)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
}

// Chat runs one non-streaming completion and returns the assistant's text.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	req.Stream = false
	resp, err := c.send(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return result.Message.Content, nil
}
