package recommend

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Snapshot is a point-in-time copy of the store's view state.
type Snapshot struct {
	Province   string   `json:"province"`
	Status     Status   `json:"status"`
	Tab        Tab      `json:"tab"`
	Filter     string   `json:"filter"`
	Categories []string `json:"categories"`
	Items      []Item   `json:"items"`
}

// Store holds the travel guide's selection state: the selected province and
// its data, the active tab, and the category filter. It is scoped to one
// mount of the guide view; the memo it reads through is shared.
//
// Every fetch is tagged with the selection generation it was issued for, and
// a response is applied only while that generation is still current.
type Store struct {
	cache  *Cache
	logger *slog.Logger

	mu         sync.Mutex
	province   string
	status     Status
	data       ProvinceData
	tab        Tab
	filter     string
	generation uint64
	closed     bool
}

// NewStore creates a Store reading through the shared cache.
func NewStore(c *Cache) *Store {
	return &Store{
		cache:  c,
		logger: slog.Default(),
		status: StatusIdle,
		tab:    TabAttractions,
		filter: AllCategories,
	}
}

// SelectProvince makes name the current province, resets the tab and filter,
// and loads its data. A memoized province is applied immediately with no
// backend request. Otherwise the call blocks until the fetch resolves; a
// failure marks the selection failed and is logged, never returned.
func (s *Store) SelectProvince(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	s.province = name
	s.tab = TabAttractions
	s.filter = AllCategories
	s.data = ProvinceData{}

	if data, ok := s.cache.Lookup(name); ok {
		s.status = StatusReady
		s.data = data
		s.mu.Unlock()
		return
	}
	s.status = StatusPending
	s.mu.Unlock()

	data, err := s.cache.Fetch(ctx, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		s.logger.Debug("discarding stale recommendations", "province", name, "current", s.province)
		return
	}
	if err != nil {
		s.logger.Warn("recommendation fetch failed", "province", name, "error", err)
		s.status = StatusFailed
		return
	}
	s.status = StatusReady
	s.data = data
}

// ClearProvince returns to the province grid. Any fetch still in flight is
// discarded when it resolves.
func (s *Store) ClearProvince() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.province = ""
	s.status = StatusIdle
	s.data = ProvinceData{}
	s.tab = TabAttractions
	s.filter = AllCategories
}

// SetTab switches the active list and resets the filter, even when tab is
// already active. Unknown tabs are ignored.
func (s *Store) SetTab(tab Tab) {
	if _, ok := ParseTab(string(tab)); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = tab
	s.filter = AllCategories
}

// SetCategoryFilter narrows FilteredItems to one category. An empty
// category selects AllCategories.
func (s *Store) SetCategoryFilter(category string) {
	if category == "" {
		category = AllCategories
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = category
}

// CurrentCategories returns AllCategories followed by the distinct
// categories of the active tab in first-seen order.
func (s *Store) CurrentCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Categories(s.activeItems())
}

// FilteredItems returns the active tab's items matching the filter, in
// source order.
func (s *Store) FilteredItems() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Filter(s.activeItems(), s.filter)
}

// Snapshot returns a copy of the full view state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.activeItems()
	return Snapshot{
		Province:   s.province,
		Status:     s.status,
		Tab:        s.tab,
		Filter:     s.filter,
		Categories: Categories(items),
		Items:      Filter(items, s.filter),
	}
}

// Province returns the currently selected province, or "" before any selection.
func (s *Store) Province() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.province
}

// Close detaches the store from its view. In-flight fetches still populate
// the shared cache but no longer touch this store.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// activeItems must be called with s.mu held.
func (s *Store) activeItems() []Item {
	if s.status != StatusReady {
		return nil
	}
	return s.data.Items(s.tab)
}
