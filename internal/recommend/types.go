// Package recommend retrieves, memoizes and filters per-province
// recommendation sets for the travel guide view.
package recommend

import "context"

// AllCategories is the filter sentinel that matches every item.
const AllCategories = "all"

// Item is a single attraction or restaurant recommendation.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location,omitempty"`
	PriceRange  string `json:"priceRange,omitempty"`
}

// ProvinceData is the recommendation set for one province.
type ProvinceData struct {
	Attractions []Item `json:"attractions"`
	Restaurants []Item `json:"restaurants"`
}

// Tab selects which list of a ProvinceData is active.
type Tab string

const (
	TabAttractions Tab = "attractions"
	TabRestaurants Tab = "restaurants"
)

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, bool) {
	switch Tab(s) {
	case TabAttractions, TabRestaurants:
		return Tab(s), true
	}
	return "", false
}

// Items returns the list for the given tab.
func (d ProvinceData) Items(tab Tab) []Item {
	if tab == TabRestaurants {
		return d.Restaurants
	}
	return d.Attractions
}

// Status is the load state of the currently selected province.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Fetcher is the structured-recommendation endpoint of the conversational backend.
type Fetcher interface {
	Recommend(ctx context.Context, province string) (ProvinceData, error)
}

// PopularProvinces are the provinces offered on the guide's landing grid.
var PopularProvinces = []string{
	"Bangkok",
	"Chiang Mai",
	"Phuket",
	"Ayutthaya",
	"Chonburi",
	"Khon Kaen",
}
