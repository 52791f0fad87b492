// Package guide implements the conversational backends behind the Namfon
// guide: free-form chat keyed by session and structured per-province
// recommendations.
package guide

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/recommend"
)

// ErrUnknownSession is returned by Reply for a session the backend never started.
var ErrUnknownSession = errors.New("unknown chat session")

// Backend answers both chat turns and recommendation requests.
type Backend interface {
	chat.Backend
	recommend.Fetcher
	// Name identifies the provider, e.g. "ollama".
	Name() string
}

// Turn is one exchanged message kept in a session transcript.
type Turn struct {
	Role    string
	Content string
}

// transcripts holds per-session history for backends whose APIs are
// stateless.
type transcripts struct {
	mu       sync.Mutex
	sessions map[chat.SessionID][]Turn
}

func newTranscripts() *transcripts {
	return &transcripts{sessions: make(map[chat.SessionID][]Turn)}
}

func (t *transcripts) open() chat.SessionID {
	id := chat.SessionID(uuid.NewString())
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[id] = nil
	return id
}

// history returns a copy of the session's turns.
func (t *transcripts) history(id chat.SessionID) ([]Turn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	turns, ok := t.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// record appends a completed exchange. Failed exchanges are never recorded
// so a retry resends the same context.
func (t *transcripts) record(id chat.SessionID, user, assistant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[id]; !ok {
		return
	}
	t.sessions[id] = append(t.sessions[id],
		Turn{Role: "user", Content: user},
		Turn{Role: "assistant", Content: assistant},
	)
}

// close discards a session's turns. Unknown ids are ignored.
func (t *transcripts) close(id chat.SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// len returns the number of open sessions.
func (t *transcripts) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
