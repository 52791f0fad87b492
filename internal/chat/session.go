// Package chat manages a single conversation with the guide backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionID is the backend's handle for a conversation's context.
type SessionID string

// Backend is the conversational endpoint a Session talks to. The backend
// keeps prior turns under the SessionID; each Reply carries only the latest
// user text. EndSession discards those turns; ending an unknown session is
// not an error.
type Backend interface {
	StartSession(ctx context.Context) (SessionID, error)
	Reply(ctx context.Context, id SessionID, text string) (string, error)
	EndSession(ctx context.Context, id SessionID) error
}

var errEnded = errors.New("chat session ended")

// SendResult reports what SendUserMessage did with a message.
type SendResult int

const (
	// Sent means the message was appended and the exchange ran, whether or
	// not the guide replied.
	Sent SendResult = iota
	// RejectedBlank means the text was empty or whitespace.
	RejectedBlank
	// RejectedPending means an earlier reply was still outstanding.
	RejectedPending
	// RejectedEnded means the session was already ended.
	RejectedEnded
)

// Session owns a conversation's history and its single in-flight request.
type Session struct {
	backend  Backend
	greeting string
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	messages  []Message
	sessionID SessionID
	awaiting  bool
	sent      bool
	ended     bool
}

// NewSession creates a Session. A non-empty greeting is recorded as the
// first assistant message.
func NewSession(b Backend, greeting string) *Session {
	s := &Session{
		backend:  b,
		greeting: greeting,
		now:      time.Now,
		logger:   slog.Default(),
	}
	if g := strings.TrimSpace(greeting); g != "" {
		s.messages = append(s.messages, s.newMessage(RoleAssistant, g))
	}
	return s
}

// InitializeSession obtains a session handle from the backend. It is a no-op
// once a handle exists or a message has been sent.
func (s *Session) InitializeSession(ctx context.Context) error {
	s.mu.Lock()
	if s.sessionID != "" || s.sent || s.ended {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if _, err := s.start(ctx); err != nil && !errors.Is(err, errEnded) {
		return err
	}
	return nil
}

// start asks the backend for a session and adopts it unless another caller
// got there first or the session ended meanwhile. The losing handle is
// ended so the backend does not keep it.
func (s *Session) start(ctx context.Context) (SessionID, error) {
	id, err := s.backend.StartSession(ctx)
	if err != nil {
		return "", fmt.Errorf("starting chat session: %w", err)
	}

	s.mu.Lock()
	ended := s.ended
	adopted := s.sessionID == "" && !ended
	if adopted {
		s.sessionID = id
	}
	current := s.sessionID
	s.mu.Unlock()

	if !adopted {
		s.endBackend(ctx, id)
	}
	if ended {
		return "", errEnded
	}
	return current, nil
}

// SendUserMessage appends text as a user message and waits for the guide's
// reply. Blank text, a pending reply or an ended session reject the message
// without changing anything. Text is stored as given; only the blank check
// trims it. Backend failures are logged; the user message stays and no
// assistant message is added.
func (s *Session) SendUserMessage(ctx context.Context, text string) SendResult {
	if strings.TrimSpace(text) == "" {
		return RejectedBlank
	}

	s.mu.Lock()
	switch {
	case s.ended:
		s.mu.Unlock()
		return RejectedEnded
	case s.awaiting:
		s.mu.Unlock()
		return RejectedPending
	}
	s.messages = append(s.messages, s.newMessage(RoleUser, text))
	s.awaiting = true
	s.sent = true
	id := s.sessionID
	s.mu.Unlock()

	reply, err := s.exchange(ctx, id, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaiting = false
	if err != nil {
		s.logger.Warn("chat reply failed", "session", s.sessionID, "error", err)
		return Sent
	}
	s.messages = append(s.messages, s.newMessage(RoleAssistant, reply))
	return Sent
}

// exchange sends text under id, starting a session first if none exists.
func (s *Session) exchange(ctx context.Context, id SessionID, text string) (string, error) {
	if id == "" {
		var err error
		if id, err = s.start(ctx); err != nil {
			return "", err
		}
	}
	reply, err := s.backend.Reply(ctx, id, text)
	if err != nil {
		return "", fmt.Errorf("requesting reply: %w", err)
	}
	return reply, nil
}

// End tells the backend to discard the conversation. Later sends are
// rejected and a session started concurrently is ended as soon as it
// arrives. Calling End more than once does nothing.
func (s *Session) End(ctx context.Context) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	id := s.sessionID
	s.mu.Unlock()

	if id != "" {
		s.endBackend(ctx, id)
	}
}

func (s *Session) endBackend(ctx context.Context, id SessionID) {
	if err := s.backend.EndSession(ctx, id); err != nil {
		s.logger.Warn("ending chat session", "session", id, "error", err)
	}
}

// Messages returns a copy of the conversation in insertion order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AwaitingReply reports whether a backend request is outstanding.
func (s *Session) AwaitingReply() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// SessionID returns the backend handle, or "" before initialization.
func (s *Session) SessionID() SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) newMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: s.now(),
	}
}
