// Package tracker carries AR engine events between the browser and the
// server over a WebSocket.
package tracker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/kalambet/siampass/internal/arbridge"
)

const (
	EventTargetFound = "targetFound"
	EventTargetLost  = "targetLost"

	CommandReleaseCamera = "release_camera"
)

// Event is a frame sent by the browser's AR engine. Target is the marker
// URL; an empty target addresses every subscription.
type Event struct {
	Event  string `json:"event"`
	Target string `json:"target,omitempty"`
}

// Command is a frame sent to the browser.
type Command struct {
	Command string `json:"command"`
}

type subscription struct {
	target  arbridge.Target
	onFound func()
	onLost  func()
}

// Hub implements arbridge.TargetTracker for engines connected over
// WebSocket.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]subscription
	conns  map[*websocket.Conn]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		logger: slog.Default(),
		subs:   make(map[uint64]subscription),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Subscribe registers callbacks for events addressed to target.
func (h *Hub) Subscribe(target arbridge.Target, onFound, onLost func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs[id] = subscription{target: target, onFound: onFound, onLost: onLost}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
		})
	}
}

// ReleaseCamera asks every connected engine to stop its camera tracks.
// With no engine connected there is nothing to release.
func (h *Hub) ReleaseCamera() error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := websocket.JSON.Send(c, Command{Command: CommandReleaseCamera}); err != nil {
			errs = append(errs, fmt.Errorf("sending release to %s: %w", c.Request().RemoteAddr, err))
		}
	}
	return errors.Join(errs...)
}

// Connections returns the number of connected engines.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Subscriptions returns the number of active subscriptions.
func (h *Hub) Subscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Handler serves the engine's event socket.
func (h *Hub) Handler() websocket.Handler {
	return func(ws *websocket.Conn) {
		h.mu.Lock()
		h.conns[ws] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			delete(h.conns, ws)
			h.mu.Unlock()
			ws.Close()
		}()

		for {
			var ev Event
			if err := websocket.JSON.Receive(ws, &ev); err != nil {
				if !errors.Is(err, io.EOF) {
					h.logger.Debug("ar event socket closed", "error", err)
				}
				return
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev Event) {
	var found bool
	switch ev.Event {
	case EventTargetFound:
		found = true
	case EventTargetLost:
	default:
		h.logger.Debug("ignoring ar event", "event", ev.Event)
		return
	}

	h.mu.Lock()
	var fns []func()
	for _, s := range h.subs {
		if ev.Target != "" && ev.Target != s.target.MarkerURL {
			continue
		}
		if found {
			fns = append(fns, s.onFound)
		} else {
			fns = append(fns, s.onLost)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}
