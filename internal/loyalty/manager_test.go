package loyalty

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/siampass/internal/storage"
)

const testMarker = "https://example.com/card.mind"

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func newTestManager(t *testing.T) (*Manager, *mockClock) {
	t.Helper()
	s, err := storage.Open()
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := &mockClock{now: time.Date(2023, 10, 14, 9, 0, 0, 0, time.UTC)}
	m := NewManagerWithClock(s, clock)
	if err := m.Seed(testMarker); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return m, clock
}

func TestSeed_Defaults(t *testing.T) {
	m, _ := newTestManager(t)

	p, err := m.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Member.Points != 350 || p.Member.NextLevelPoints != 500 || p.Member.Level != "Siam Explorer" {
		t.Errorf("Member = %+v", p.Member)
	}
	if p.Member.NextLevel != "Platinum" {
		t.Errorf("NextLevel = %q, want Platinum", p.Member.NextLevel)
	}
	if p.Progress != 70 {
		t.Errorf("Progress = %v, want 70", p.Progress)
	}
	if len(p.Stamps) != 4 {
		t.Fatalf("got %d stamps, want 4", len(p.Stamps))
	}
	collected := 0
	for _, st := range p.Stamps {
		if st.Collected {
			collected++
		}
	}
	if collected != 2 {
		t.Errorf("collected stamps = %d, want 2", collected)
	}

	redeemable := map[string]bool{}
	for _, r := range p.Rewards {
		redeemable[r.ID] = r.Redeemable
	}
	want := map[string]bool{"pad-thai-discount": true, "thai-tea": true, "chao-phraya-boat": true, "otop-discount": true}
	for id, w := range want {
		if redeemable[id] != w {
			t.Errorf("reward %s redeemable = %v, want %v", id, redeemable[id], w)
		}
	}
}

func TestSeed_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Redeem("thai-tea"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if err := m.Seed(testMarker); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	p, _ := m.GetProfile()
	if p.Member.Points != 250 {
		t.Errorf("Points = %d after reseed, want 250 (member kept)", p.Member.Points)
	}
}

func TestCollectMarker(t *testing.T) {
	m, clock := newTestManager(t)

	ok, err := m.CollectMarker(testMarker)
	if err != nil || !ok {
		t.Fatalf("CollectMarker = %v, %v; want true, nil", ok, err)
	}

	p, _ := m.GetProfile()
	var golden Stamp
	for _, st := range p.Stamps {
		if st.ID == "golden-mount" {
			golden = st
		}
	}
	if !golden.Collected || golden.CollectedAt == nil || !golden.CollectedAt.Equal(clock.Now()) {
		t.Errorf("golden-mount = %+v", golden)
	}
	if p.Member.Points != 400 {
		t.Errorf("Points = %d, want 400", p.Member.Points)
	}

	ok, err = m.CollectMarker(testMarker)
	if err != nil || ok {
		t.Errorf("repeat CollectMarker = %v, %v; want false, nil", ok, err)
	}
	p, _ = m.GetProfile()
	if p.Member.Points != 400 {
		t.Errorf("Points = %d after repeat, want 400", p.Member.Points)
	}

	if _, err := m.CollectMarker("https://example.com/other.mind"); !errors.Is(err, ErrUnknownStamp) {
		t.Errorf("unknown marker error = %v, want ErrUnknownStamp", err)
	}
}

func TestCollectStamp_Promotes(t *testing.T) {
	m, _ := newTestManager(t)

	for _, id := range []string{"golden-mount", "wat-phra-kaew"} {
		if _, err := m.CollectStamp(id); err != nil {
			t.Fatalf("CollectStamp(%s): %v", id, err)
		}
	}

	p, _ := m.GetProfile()
	if p.Member.Points != 450 {
		t.Fatalf("Points = %d, want 450", p.Member.Points)
	}
	if p.Member.Level != "Siam Explorer" {
		t.Errorf("Level = %q, want Siam Explorer below threshold", p.Member.Level)
	}
}

func TestRedeem(t *testing.T) {
	m, _ := newTestManager(t)

	red, err := m.Redeem("otop-discount")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if red.Cost != 300 || red.ID == "" {
		t.Errorf("redemption = %+v", red)
	}

	p, _ := m.GetProfile()
	if p.Member.Points != 50 {
		t.Errorf("Points = %d, want 50", p.Member.Points)
	}
	if len(p.Redemptions) != 1 {
		t.Errorf("redemptions = %d, want 1", len(p.Redemptions))
	}
	for _, r := range p.Rewards {
		if r.Redeemable {
			t.Errorf("reward %s redeemable with 50 points", r.ID)
		}
	}

	if _, err := m.Redeem("thai-tea"); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("error = %v, want ErrInsufficientPoints", err)
	}
	if _, err := m.Redeem("spa-day"); !errors.Is(err, ErrUnknownReward) {
		t.Errorf("error = %v, want ErrUnknownReward", err)
	}
}

func TestGetProfile_CopyIsolated(t *testing.T) {
	m, _ := newTestManager(t)

	p1, _ := m.GetProfile()
	p1.Stamps[0].Name = "mutated"
	*p1.Stamps[0].CollectedAt = time.Time{}

	p2, _ := m.GetProfile()
	if p2.Stamps[0].Name != "Wat Arun" {
		t.Errorf("cached stamp name mutated: %q", p2.Stamps[0].Name)
	}
	if p2.Stamps[0].CollectedAt.IsZero() {
		t.Error("cached CollectedAt mutated through copy")
	}
}

func TestBuildProfile_TopLevel(t *testing.T) {
	p := buildProfile(storage.Member{Name: "x", Level: "Royal Elephant", Points: 1200}, nil, nil, nil)
	if p.Member.NextLevel != "" {
		t.Errorf("NextLevel = %q, want empty at top level", p.Member.NextLevel)
	}
	if p.Progress != 0 {
		t.Errorf("Progress = %v, want 0 without a next level", p.Progress)
	}
}

func TestPromote(t *testing.T) {
	s, err := storage.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.SaveMember(storage.Member{Name: "x", Level: "Siam Explorer", Points: 480, NextLevelPoints: 500})
	s.AddStamp(storage.Stamp{ID: "a", Name: "A", Points: 50})

	m := NewManager(s)
	if _, err := m.CollectStamp("a"); err != nil {
		t.Fatalf("CollectStamp: %v", err)
	}
	p, _ := m.GetProfile()
	if p.Member.Level != "Platinum" || p.Member.NextLevelPoints != 1000 {
		t.Errorf("Member = %+v, want Platinum with next level at 1000", p.Member)
	}
}
