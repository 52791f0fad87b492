// Package loyalty manages the traveler's points, AR stamp passport and
// reward redemptions for the current session.
package loyalty

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/siampass/internal/storage"
)

var (
	// ErrInsufficientPoints is returned when a reward costs more than the balance.
	ErrInsufficientPoints = storage.ErrInsufficientPoints
	ErrUnknownReward      = errors.New("unknown reward")
	ErrUnknownStamp       = errors.New("unknown stamp")
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	GetMember() (storage.Member, error)
	SaveMember(m storage.Member) error
	AddStamp(st storage.Stamp) error
	ListStamps() ([]storage.Stamp, error)
	StampForMarker(markerURL string) (string, error)
	CollectStamp(id string, at time.Time) (bool, error)
	AddReward(r storage.Reward) error
	ListRewards() ([]storage.Reward, error)
	Redeem(redemptionID, rewardID string, at time.Time) (storage.Redemption, error)
	ListRedemptions() ([]storage.Redemption, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides cached, structured access to the loyalty account. The
// cached Profile is dropped on every write.
type Manager struct {
	store Store
	clock Clock

	mu     sync.RWMutex
	cached *Profile
}

// NewManager creates a Manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store, clock: realClock{}}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, clock Clock) *Manager {
	return &Manager{store: store, clock: clock}
}

// Seed installs the default member, passport and catalog unless a member
// already exists. markerURL is the AR target that awards the scannable stamp.
func (m *Manager) Seed(markerURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.store.GetMember(); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("checking member: %w", err)
	}

	if err := m.store.SaveMember(DefaultMember); err != nil {
		return fmt.Errorf("seeding member: %w", err)
	}
	for _, st := range DefaultStamps(markerURL) {
		if err := m.store.AddStamp(st); err != nil {
			return fmt.Errorf("seeding stamp %s: %w", st.ID, err)
		}
	}
	for _, r := range DefaultRewards {
		if err := m.store.AddReward(r); err != nil {
			return fmt.Errorf("seeding reward %s: %w", r.ID, err)
		}
	}
	m.cached = nil
	return nil
}

// GetProfile assembles the member, passport, catalog and ledger.
func (m *Manager) GetProfile() (Profile, error) {
	m.mu.RLock()
	if m.cached != nil {
		p := deepCopyProfile(m.cached)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return deepCopyProfile(m.cached), nil
	}

	member, err := m.store.GetMember()
	if err != nil {
		return Profile{}, fmt.Errorf("loading member: %w", err)
	}
	stamps, err := m.store.ListStamps()
	if err != nil {
		return Profile{}, fmt.Errorf("loading stamps: %w", err)
	}
	rewards, err := m.store.ListRewards()
	if err != nil {
		return Profile{}, fmt.Errorf("loading rewards: %w", err)
	}
	reds, err := m.store.ListRedemptions()
	if err != nil {
		return Profile{}, fmt.Errorf("loading redemptions: %w", err)
	}

	p := buildProfile(member, stamps, rewards, reds)
	m.cached = &p
	return deepCopyProfile(&p), nil
}

// CollectStamp records a passport stamp and credits its points. Collecting
// an already collected stamp changes nothing and reports false.
func (m *Manager) CollectStamp(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := m.store.CollectStamp(id, m.clock.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrUnknownStamp, id)
	}
	if err != nil {
		return false, fmt.Errorf("collecting stamp %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}
	m.cached = nil

	if err := m.promote(); err != nil {
		return true, err
	}
	slog.Info("stamp collected", "stamp", id)
	return true, nil
}

// CollectMarker awards the stamp tied to an AR marker.
func (m *Manager) CollectMarker(markerURL string) (bool, error) {
	id, err := m.store.StampForMarker(markerURL)
	if errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%w for marker %s", ErrUnknownStamp, markerURL)
	}
	if err != nil {
		return false, fmt.Errorf("looking up marker stamp: %w", err)
	}
	return m.CollectStamp(id)
}

// Redeem spends points on a reward and records the redemption.
func (m *Manager) Redeem(rewardID string) (Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	red, err := m.store.Redeem(uuid.NewString(), rewardID, m.clock.Now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Redemption{}, fmt.Errorf("%w: %s", ErrUnknownReward, rewardID)
	case errors.Is(err, storage.ErrInsufficientPoints):
		return Redemption{}, err
	case err != nil:
		return Redemption{}, fmt.Errorf("redeeming %s: %w", rewardID, err)
	}
	m.cached = nil
	slog.Info("reward redeemed", "reward", rewardID, "cost", red.Cost)
	return Redemption(red), nil
}

// promote moves the member up the ladder while the balance meets the next
// threshold. Spending points never demotes. Must be called with m.mu held.
func (m *Manager) promote() error {
	member, err := m.store.GetMember()
	if err != nil {
		return fmt.Errorf("loading member: %w", err)
	}
	i := levelIndex(member.Level)
	changed := false
	for i+1 < len(Levels) && member.Points >= Levels[i+1].Threshold {
		i++
		changed = true
	}
	if !changed {
		return nil
	}
	member.Level = Levels[i].Name
	member.NextLevelPoints = 0
	if i+1 < len(Levels) {
		member.NextLevelPoints = Levels[i+1].Threshold
	}
	if err := m.store.SaveMember(member); err != nil {
		return fmt.Errorf("promoting member: %w", err)
	}
	slog.Info("member promoted", "level", member.Level)
	return nil
}
