package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testRequest() ChatRequest {
	return ChatRequest{
		Model:    "google/gemini-2.5-flash",
		Messages: []Message{{Role: "user", Content: "Sawasdee"}},
	}
}

func TestChat_NonStreaming(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"gen-1","choices":[{"message":{"role":"assistant","content":"Sawasdee ka!"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	reply, err := c.Chat(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "Sawasdee ka!" {
		t.Errorf("reply = %q, want %q", reply, "Sawasdee ka!")
	}
	if got.Model != "google/gemini-2.5-flash" || len(got.Messages) != 1 {
		t.Errorf("request = %+v", got)
	}
	if got.ResponseFormat != nil {
		t.Errorf("response_format = %+v, want omitted", got.ResponseFormat)
	}
}

func TestChat_Headers(t *testing.T) {
	var gotAuth, gotTitle string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		fmt.Fprint(w, `{"id":"gen-1","choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.Chat(context.Background(), testRequest()); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if want := "Bearer test-key"; gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
	if gotTitle != "Siam Pass" {
		t.Errorf("X-Title = %q, want %q", gotTitle, "Siam Pass")
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"gen-1","choices":[]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.Chat(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChat_RateLimit_Retry(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":"gen-1","choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.Chat(context.Background(), testRequest()); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got := attempt.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestChat_RateLimit_Exhausted(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	_, err := c.Chat(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "rate limited")
	}
	if got := attempt.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestChat_ServerError(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	_, err := c.Chat(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("error = %v, want 502", err)
	}
	if got := attempt.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry)", got)
	}
}

func TestChat_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := NewClientWithBaseURL("test-key", srv.URL)
	start := time.Now()
	if _, err := c.Chat(ctx, testRequest()); err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Chat took %v after cancellation", elapsed)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		list := ModelList{
			Object: "list",
			Data: []Model{
				{ID: "google/gemini-2.5-flash", Object: "model"},
				{ID: "openai/gpt-4o-mini", Object: "model"},
			},
		}
		json.NewEncoder(w).Encode(list)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}

	want := []string{"google/gemini-2.5-flash", "openai/gpt-4o-mini"}
	if len(models) != len(want) {
		t.Fatalf("got %d models, want %d", len(models), len(want))
	}
	for i, w := range want {
		if models[i].ID != w {
			t.Errorf("models[%d].ID = %q, want %q", i, models[i].ID, w)
		}
	}
}

func TestListModels_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ModelList{Object: "list"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 0 {
		t.Errorf("got %d models, want 0", len(models))
	}
}
