package nav

import "github.com/kalambet/siampass/internal/arbridge"

// PlaceMap carries the map links for an open PlaceDetail modal.
type PlaceMap struct {
	Query       string `json:"query"`
	EmbedURL    string `json:"embedUrl"`
	ExternalURL string `json:"externalUrl"`
}

// State is a point-in-time copy of every navigation axis.
type State struct {
	View      View            `json:"view"`
	OverlayAR bool            `json:"overlayAR"`
	Tracking  *arbridge.State `json:"tracking,omitempty"`
	Modal     Modal           `json:"modal"`
	Map       *PlaceMap       `json:"map,omitempty"`
}

// Snapshot returns the current navigation state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	st := State{
		View:      c.view,
		OverlayAR: c.overlay,
		Modal:     c.modal,
	}
	if c.modal.Item != nil {
		it := *c.modal.Item
		st.Modal.Item = &it
	}
	b := c.bridge
	c.mu.Unlock()

	if b != nil {
		ts := b.State()
		st.Tracking = &ts
	}
	if st.Modal.Kind == ModalPlaceDetail && st.Modal.Item != nil {
		q := PlaceQuery(st.Modal.Item.Name, st.Modal.Province)
		st.Map = &PlaceMap{Query: q, EmbedURL: EmbedMapURL(q), ExternalURL: ExternalMapURL(q)}
	}
	return st
}
