package loyalty

import (
	"time"

	"github.com/kalambet/siampass/internal/storage"
)

const stampPoints = 50

// DefaultMember is the account a fresh session starts with.
var DefaultMember = storage.Member{
	Name:            "Somsri Traveler",
	Level:           "Siam Explorer",
	Points:          350,
	NextLevelPoints: 500,
}

// DefaultStamps returns the Bangkok passport. The Golden Mount stamp is
// awarded by scanning markerURL; the first two are already collected.
func DefaultStamps(markerURL string) []storage.Stamp {
	watArun := time.Date(2023, 10, 10, 10, 0, 0, 0, time.UTC)
	giantSwing := time.Date(2023, 10, 12, 10, 0, 0, 0, time.UTC)
	return []storage.Stamp{
		{ID: "wat-arun", Name: "Wat Arun", Points: stampPoints, CollectedAt: &watArun},
		{ID: "giant-swing", Name: "Giant Swing", Points: stampPoints, CollectedAt: &giantSwing},
		{ID: "golden-mount", Name: "Golden Mount", MarkerURL: markerURL, Points: stampPoints},
		{ID: "wat-phra-kaew", Name: "Wat Phra Kaew", Points: stampPoints},
	}
}

// DefaultRewards is the partner reward catalog.
var DefaultRewards = []storage.Reward{
	{ID: "pad-thai-discount", Name: "50฿ off at Pad Thai Pratu Phi", Cost: 150, Type: "Food"},
	{ID: "thai-tea", Name: "Free Thai tea (Café Boran)", Cost: 100, Type: "Drink"},
	{ID: "chao-phraya-boat", Name: "Chao Phraya Express boat ticket", Cost: 200, Type: "Travel"},
	{ID: "otop-discount", Name: "10% off OTOP goods", Cost: 300, Type: "Shop"},
}
