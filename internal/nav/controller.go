// Package nav holds the top-level navigation state: the active view, the AR
// overlay and the open modal. It mounts the view-scoped chat session and
// recommendation store, and the AR bridge, as those axes change.
package nav

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kalambet/siampass/internal/arbridge"
	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/recommend"
)

// View is a primary screen. Exactly one is active.
type View string

const (
	ViewHome        View = "home"
	ViewChat        View = "chat"
	ViewTravelGuide View = "travel_guide"
	ViewProfile     View = "profile"
)

// ParseView validates a view name.
func ParseView(s string) (View, bool) {
	switch v := View(s); v {
	case ViewHome, ViewChat, ViewTravelGuide, ViewProfile:
		return v, true
	}
	return "", false
}

// ModalKind identifies the open dialog.
type ModalKind string

const (
	ModalNone        ModalKind = "none"
	ModalTransport   ModalKind = "transport"
	ModalFood        ModalKind = "food"
	ModalPlaceDetail ModalKind = "place_detail"
)

// ParseModalKind validates a modal kind.
func ParseModalKind(s string) (ModalKind, bool) {
	switch k := ModalKind(s); k {
	case ModalNone, ModalTransport, ModalFood, ModalPlaceDetail:
		return k, true
	}
	return "", false
}

// Modal is the dialog state. Item and Province are set only for PlaceDetail.
type Modal struct {
	Kind     ModalKind       `json:"kind"`
	Item     *recommend.Item `json:"item,omitempty"`
	Province string          `json:"province,omitempty"`
}

// Deps are the collaborators the controller mounts.
type Deps struct {
	// NewChat creates a fresh session each time the Chat view is entered.
	NewChat func() *chat.Session
	// Recommendations is the process-wide memo every guide store reads through.
	Recommendations *recommend.Cache
	// NewBridge creates the AR bridge each time the overlay opens.
	NewBridge func() *arbridge.Bridge
}

// Controller is the composition root for per-view state. All methods are
// safe for concurrent use; none of them fail.
type Controller struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	view    View
	overlay bool
	modal   Modal
	chat    *chat.Session
	guide   *recommend.Store
	bridge  *arbridge.Bridge
}

// New creates a Controller showing the Home view.
func New(deps Deps) *Controller {
	return &Controller{
		deps:   deps,
		logger: slog.Default(),
		view:   ViewHome,
		modal:  Modal{Kind: ModalNone},
	}
}

// SelectView makes v the active view. Selecting the active view does
// nothing. Leaving Chat or TravelGuide discards that view's state; entering
// Chat starts a new session with the backend.
func (c *Controller) SelectView(ctx context.Context, v View) {
	c.mu.Lock()
	if c.view == v {
		c.mu.Unlock()
		return
	}
	prev := c.view
	c.view = v

	var oldChat *chat.Session
	var oldGuide *recommend.Store
	switch prev {
	case ViewChat:
		oldChat, c.chat = c.chat, nil
	case ViewTravelGuide:
		oldGuide, c.guide = c.guide, nil
	}

	var newChat *chat.Session
	switch v {
	case ViewChat:
		if c.deps.NewChat != nil {
			newChat = c.deps.NewChat()
			c.chat = newChat
		}
	case ViewTravelGuide:
		if c.deps.Recommendations != nil {
			c.guide = recommend.NewStore(c.deps.Recommendations)
		}
	}
	c.mu.Unlock()

	c.logger.Debug("view selected", "from", prev, "to", v)
	if oldChat != nil {
		oldChat.End(ctx)
	}
	if oldGuide != nil {
		oldGuide.Close()
	}
	if newChat != nil {
		if err := newChat.InitializeSession(ctx); err != nil {
			c.logger.Warn("chat session init failed; will retry on first send", "error", err)
		}
	}
}

// OpenOverlayAR shows the AR overlay above the current view and attaches a
// new bridge. Opening an open overlay does nothing. The bridge is attached
// before the lock is released so a concurrent CloseOverlayAR always detaches
// an attached bridge.
func (c *Controller) OpenOverlayAR() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overlay {
		return
	}
	c.overlay = true
	if c.deps.NewBridge != nil {
		c.bridge = c.deps.NewBridge()
		c.bridge.Attach()
	}
}

// CloseOverlayAR hides the overlay and releases the camera.
func (c *Controller) CloseOverlayAR() {
	c.mu.Lock()
	c.overlay = false
	b := c.bridge
	c.bridge = nil
	c.mu.Unlock()

	if b != nil {
		b.Detach()
	}
}

// OpenModal replaces any open modal. item is required for PlaceDetail, whose
// province context is the guide's selected province; a PlaceDetail without
// an item is ignored. ModalNone closes the modal.
func (c *Controller) OpenModal(kind ModalKind, item *recommend.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case ModalNone:
		c.modal = Modal{Kind: ModalNone}
	case ModalPlaceDetail:
		if item == nil {
			return
		}
		it := *item
		province := DefaultProvince
		if c.guide != nil {
			if p := c.guide.Province(); p != "" {
				province = p
			}
		}
		c.modal = Modal{Kind: kind, Item: &it, Province: province}
	default:
		c.modal = Modal{Kind: kind}
	}
}

// CloseModal clears the modal.
func (c *Controller) CloseModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modal = Modal{Kind: ModalNone}
}

// Chat returns the mounted chat session, or nil outside the Chat view.
func (c *Controller) Chat() *chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat
}

// Guide returns the mounted recommendation store, or nil outside the
// TravelGuide view.
func (c *Controller) Guide() *recommend.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guide
}

// Bridge returns the attached AR bridge, or nil while the overlay is closed.
func (c *Controller) Bridge() *arbridge.Bridge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bridge
}

// Close releases everything the controller mounted.
func (c *Controller) Close() {
	c.CloseOverlayAR()

	c.mu.Lock()
	g, s := c.guide, c.chat
	c.guide, c.chat = nil, nil
	c.mu.Unlock()

	if s != nil {
		s.End(context.Background())
	}
	if g != nil {
		g.Close()
	}
}
