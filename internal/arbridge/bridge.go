// Package arbridge reconciles an external AR tracking engine's found/lost
// events with a two-state tracking signal and owns the camera's lifetime.
package arbridge

import (
	"log/slog"
	"sync"
)

// State is the tracking state of the single configured target.
type State string

const (
	StateSearching State = "searching"
	StateLocked    State = "locked"
)

// Target describes the marker the engine detects and the model it overlays.
type Target struct {
	MarkerURL string `json:"markerUrl"`
	ModelURL  string `json:"modelUrl"`
}

// TargetTracker is the AR engine as seen by the bridge.
type TargetTracker interface {
	// Subscribe registers callbacks for target events. The returned func
	// removes them.
	Subscribe(target Target, onFound, onLost func()) (unsubscribe func())
	// ReleaseCamera stops the camera stream's tracks.
	ReleaseCamera() error
}

// Bridge is mounted with the AR overlay. Events are passed through as they
// arrive; rapid found/lost flapping is not debounced.
type Bridge struct {
	tracker TargetTracker
	target  Target
	logger  *slog.Logger

	mu          sync.Mutex
	state       State
	attached    bool
	unsubscribe func()
	onLock      func(Target)
}

// New creates a detached Bridge for target.
func New(tracker TargetTracker, target Target) *Bridge {
	return &Bridge{
		tracker: tracker,
		target:  target,
		logger:  slog.Default(),
		state:   StateSearching,
	}
}

// OnLock registers fn to run on every Searching to Locked transition. fn is
// called without the bridge lock held.
func (b *Bridge) OnLock(fn func(Target)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLock = fn
}

// Attach subscribes to the tracker and resets the state to Searching.
// Attaching an attached bridge does nothing.
func (b *Bridge) Attach() {
	b.mu.Lock()
	if b.attached {
		b.mu.Unlock()
		return
	}
	b.attached = true
	b.state = StateSearching
	b.mu.Unlock()

	unsub := b.tracker.Subscribe(b.target, b.targetFound, b.targetLost)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		// Detached while subscribing.
		unsub()
		return
	}
	b.unsubscribe = unsub
}

// Detach removes the subscription and releases the camera. It is safe to
// call when not attached or more than once. Release errors are logged and
// treated as already released.
func (b *Bridge) Detach() {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return
	}
	b.attached = false
	unsub := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if err := b.tracker.ReleaseCamera(); err != nil {
		b.logger.Warn("releasing camera", "error", err)
	}
}

// State returns the current tracking state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Attached reports whether the bridge holds a tracker subscription.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached
}

// Target returns the configured target.
func (b *Bridge) Target() Target {
	return b.target
}

func (b *Bridge) targetFound() {
	b.mu.Lock()
	if !b.attached || b.state == StateLocked {
		b.mu.Unlock()
		return
	}
	b.state = StateLocked
	fn := b.onLock
	b.mu.Unlock()

	b.logger.Debug("target locked", "marker", b.target.MarkerURL)
	if fn != nil {
		fn(b.target)
	}
}

func (b *Bridge) targetLost() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return
	}
	b.state = StateSearching
}
