package api

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/loyalty"
	"github.com/kalambet/siampass/internal/recommend"
	"github.com/kalambet/siampass/internal/storage"
)

const testMarker = "https://example.com/card.mind"

var bangkok = recommend.ProvinceData{
	Attractions: []recommend.Item{
		{Name: "Wat Arun", Description: "Temple of Dawn", Category: "Temple"},
		{Name: "Chatuchak Market", Description: "Weekend market", Category: "Market"},
		{Name: "Wat Pho", Description: "Reclining Buddha", Category: "Temple"},
	},
	Restaurants: []recommend.Item{
		{Name: "Thipsamai", Description: "Pad thai", Category: "Street Food", PriceRange: "฿"},
	},
}

// fakeGuide is a conversational backend with canned recommendations.
type fakeGuide struct {
	mu        sync.Mutex
	data      map[string]recommend.ProvinceData
	recErr    error
	replyErr  error
	startErr  error
	recCalls  int
	sessions  int
	questions map[chat.SessionID][]string
	ended     []chat.SessionID
	// When set, Reply signals replying and then blocks on gate.
	gate     chan struct{}
	replying chan struct{}
}

func newFakeGuide() *fakeGuide {
	return &fakeGuide{
		data:      map[string]recommend.ProvinceData{"Bangkok": bangkok},
		questions: make(map[chat.SessionID][]string),
	}
}

func (g *fakeGuide) StartSession(_ context.Context) (chat.SessionID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return "", g.startErr
	}
	g.sessions++
	return chat.SessionID(fmt.Sprintf("session-%d", g.sessions)), nil
}

func (g *fakeGuide) Reply(_ context.Context, id chat.SessionID, text string) (string, error) {
	g.mu.Lock()
	gate, replying := g.gate, g.replying
	g.mu.Unlock()
	if replying != nil {
		replying <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.replyErr != nil {
		return "", g.replyErr
	}
	g.questions[id] = append(g.questions[id], text)
	return "Namfon says: " + text, nil
}

func (g *fakeGuide) EndSession(_ context.Context, id chat.SessionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ended = append(g.ended, id)
	return nil
}

func (g *fakeGuide) Recommend(_ context.Context, province string) (recommend.ProvinceData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recCalls++
	if g.recErr != nil {
		return recommend.ProvinceData{}, g.recErr
	}
	d, ok := g.data[province]
	if !ok {
		return recommend.ProvinceData{}, fmt.Errorf("no data for %s", province)
	}
	return d, nil
}

func (g *fakeGuide) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recCalls
}

func newTestLoyalty(t *testing.T) *loyalty.Manager {
	t.Helper()
	store, err := storage.Open()
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := loyalty.NewManager(store)
	if err := m.Seed(testMarker); err != nil {
		t.Fatalf("seeding loyalty: %v", err)
	}
	return m
}
