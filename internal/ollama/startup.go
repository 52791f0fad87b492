package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotRunning is returned by EnsureReady when no server answers.
var ErrNotRunning = errors.New("Ollama is not running. Start it with: ollama serve")

const (
	warmUpTimeout = 30 * time.Second
	// keepAlive holds the guide model in memory between traveler questions.
	keepAlive = "30m"
)

// EnsureReady prepares the guide model before the server starts accepting
// requests. The model is pulled if missing, with progress written to w, and
// then loaded with a throwaway prompt. A failed warm-up is reported but not
// fatal.
func EnsureReady(ctx context.Context, c *Client, model string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return ErrNotRunning
	}

	if !c.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		last := ""
		err := c.PullModel(ctx, model, func(p PullProgress) {
			line := p.Status
			if pct := p.Percent(); pct >= 0 {
				line = fmt.Sprintf("%s %.0f%%", p.Status, pct)
			}
			// Pull streams many identical lines per layer.
			if line != last {
				fmt.Fprintf(w, "  %s\n", line)
				last = line
			}
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "model %s: ready\n", model)

	warmCtx, cancel := context.WithTimeout(ctx, warmUpTimeout)
	defer cancel()
	_, err := c.Chat(warmCtx, ChatRequest{
		Model:     model,
		Messages:  []Message{{Role: "user", Content: "Sawasdee"}},
		KeepAlive: keepAlive,
	})
	if err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", model, err)
		return nil
	}
	fmt.Fprintf(w, "model %s: warm\n", model)
	return nil
}
