package loyalty

import (
	"time"

	"github.com/kalambet/siampass/internal/storage"
)

// Member is the traveler's loyalty account.
type Member struct {
	Name            string `json:"name"`
	Level           string `json:"level"`
	Points          int    `json:"points"`
	NextLevelPoints int    `json:"nextLevelPoints"`
	NextLevel       string `json:"nextLevel,omitempty"`
}

// Stamp is one entry of the AR passport.
type Stamp struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Points      int        `json:"points"`
	Collected   bool       `json:"collected"`
	CollectedAt *time.Time `json:"collectedAt,omitempty"`
}

// Reward is a catalog entry the member can redeem points for.
type Reward struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Cost       int    `json:"cost"`
	Type       string `json:"type"`
	Redeemable bool   `json:"redeemable"`
}

// Redemption records a spent reward. Fulfillment happens elsewhere.
type Redemption struct {
	ID        string    `json:"id"`
	RewardID  string    `json:"rewardId"`
	Cost      int       `json:"cost"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the full loyalty view rendered on the profile screen.
type Profile struct {
	Member      Member       `json:"member"`
	Progress    float64      `json:"progress"` // percent of the way to the next level
	Stamps      []Stamp      `json:"stamps"`
	Rewards     []Reward     `json:"rewards"`
	Redemptions []Redemption `json:"redemptions"`
}

// Level is a rung of the membership ladder. A member reaches a level once
// their balance meets its threshold.
type Level struct {
	Name      string
	Threshold int
}

// Levels is the membership ladder in ascending order.
var Levels = []Level{
	{Name: "Siam Explorer", Threshold: 0},
	{Name: "Platinum", Threshold: 500},
	{Name: "Royal Elephant", Threshold: 1000},
}

func levelIndex(name string) int {
	for i, l := range Levels {
		if l.Name == name {
			return i
		}
	}
	return 0
}

func deepCopyProfile(p *Profile) Profile {
	cp := Profile{
		Member:      p.Member,
		Progress:    p.Progress,
		Stamps:      make([]Stamp, len(p.Stamps)),
		Rewards:     make([]Reward, len(p.Rewards)),
		Redemptions: make([]Redemption, len(p.Redemptions)),
	}
	for i, st := range p.Stamps {
		if st.CollectedAt != nil {
			t := *st.CollectedAt
			st.CollectedAt = &t
		}
		cp.Stamps[i] = st
	}
	copy(cp.Rewards, p.Rewards)
	copy(cp.Redemptions, p.Redemptions)
	return cp
}

func buildProfile(m storage.Member, stamps []storage.Stamp, rewards []storage.Reward, reds []storage.Redemption) Profile {
	p := Profile{
		Member: Member{
			Name:            m.Name,
			Level:           m.Level,
			Points:          m.Points,
			NextLevelPoints: m.NextLevelPoints,
		},
		Stamps:      make([]Stamp, 0, len(stamps)),
		Rewards:     make([]Reward, 0, len(rewards)),
		Redemptions: make([]Redemption, 0, len(reds)),
	}
	if i := levelIndex(m.Level); i+1 < len(Levels) {
		p.Member.NextLevel = Levels[i+1].Name
	}
	if m.NextLevelPoints > 0 {
		p.Progress = min(100, float64(m.Points)/float64(m.NextLevelPoints)*100)
	}
	for _, st := range stamps {
		p.Stamps = append(p.Stamps, Stamp{
			ID:          st.ID,
			Name:        st.Name,
			Points:      st.Points,
			Collected:   st.CollectedAt != nil,
			CollectedAt: st.CollectedAt,
		})
	}
	for _, r := range rewards {
		p.Rewards = append(p.Rewards, Reward{
			ID:         r.ID,
			Name:       r.Name,
			Cost:       r.Cost,
			Type:       r.Type,
			Redeemable: m.Points >= r.Cost,
		})
	}
	for _, r := range reds {
		p.Redemptions = append(p.Redemptions, Redemption(r))
	}
	return p
}
