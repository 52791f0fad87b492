package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// The database starts empty on every Open, so there is one schema and no
// version tracking.
//
//go:embed schema.sql
var schema string

// Store wraps a session-scoped in-memory SQLite database holding the
// loyalty member, stamp passport, reward catalog and redemption ledger.
type Store struct {
	db *sql.DB
}

// Open creates an empty in-memory database with the loyalty schema. Nothing
// outlives the process.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Every connection to ":memory:" gets its own database, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema applies schema.sql in one transaction.
func (s *Store) createSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	return tx.Commit()
}

// tables lists the user tables, for tests.
func (s *Store) tables() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// --- Member ---

func (s *Store) GetMember() (Member, error) {
	var m Member
	err := s.db.QueryRow(`SELECT name, level, points, next_level_points FROM member WHERE id = 1`).
		Scan(&m.Name, &m.Level, &m.Points, &m.NextLevelPoints)
	if err == sql.ErrNoRows {
		return Member{}, ErrNotFound
	}
	return m, err
}

func (s *Store) SaveMember(m Member) error {
	_, err := s.db.Exec(`
		INSERT INTO member (id, name, level, points, next_level_points) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, level = excluded.level,
			points = excluded.points, next_level_points = excluded.next_level_points`,
		m.Name, m.Level, m.Points, m.NextLevelPoints,
	)
	return err
}

// --- Stamps ---

// AddStamp inserts a stamp at the end of the passport. Existing ids are left untouched.
func (s *Store) AddStamp(st Stamp) error {
	var collectedAt any
	if st.CollectedAt != nil {
		collectedAt = st.CollectedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO stamps (id, name, marker_url, points, position, collected_at)
		VALUES (?, ?, ?, ?, (SELECT COUNT(*) FROM stamps), ?)`,
		st.ID, st.Name, st.MarkerURL, st.Points, collectedAt,
	)
	return err
}

func (s *Store) ListStamps() ([]Stamp, error) {
	rows, err := s.db.Query(`SELECT id, name, marker_url, points, collected_at FROM stamps ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Stamp
	for rows.Next() {
		var st Stamp
		var collectedAt sql.NullString
		if err := rows.Scan(&st.ID, &st.Name, &st.MarkerURL, &st.Points, &collectedAt); err != nil {
			return nil, err
		}
		if collectedAt.Valid {
			t, err := time.Parse(time.RFC3339, collectedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing collected_at for stamp %s: %w", st.ID, err)
			}
			st.CollectedAt = &t
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

// StampForMarker returns the id of the stamp awarded for scanning markerURL.
func (s *Store) StampForMarker(markerURL string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM stamps WHERE marker_url = ? ORDER BY position LIMIT 1`, markerURL).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

// CollectStamp marks a stamp collected and credits its points to the member.
// It reports false when the stamp was already collected.
func (s *Store) CollectStamp(id string, at time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning collect transaction: %w", err)
	}
	defer tx.Rollback()

	var points int
	var collectedAt sql.NullString
	err = tx.QueryRow(`SELECT points, collected_at FROM stamps WHERE id = ?`, id).Scan(&points, &collectedAt)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if collectedAt.Valid {
		return false, nil
	}

	if _, err := tx.Exec(`UPDATE stamps SET collected_at = ? WHERE id = ?`, at.UTC().Format(time.RFC3339), id); err != nil {
		return false, fmt.Errorf("marking stamp %s: %w", id, err)
	}
	if _, err := tx.Exec(`UPDATE member SET points = points + ? WHERE id = 1`, points); err != nil {
		return false, fmt.Errorf("crediting points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing collect: %w", err)
	}
	return true, nil
}

// --- Rewards ---

// AddReward inserts a reward at the end of the catalog. Existing ids are left untouched.
func (s *Store) AddReward(r Reward) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO rewards (id, name, cost, type, position)
		VALUES (?, ?, ?, ?, (SELECT COUNT(*) FROM rewards))`,
		r.ID, r.Name, r.Cost, r.Type,
	)
	return err
}

func (s *Store) ListRewards() ([]Reward, error) {
	rows, err := s.db.Query(`SELECT id, name, cost, type FROM rewards ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Reward
	for rows.Next() {
		var r Reward
		if err := rows.Scan(&r.ID, &r.Name, &r.Cost, &r.Type); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Redemptions ---

// Redeem deducts the reward's cost from the member and records the
// redemption in one transaction.
func (s *Store) Redeem(redemptionID, rewardID string, at time.Time) (Redemption, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Redemption{}, fmt.Errorf("beginning redeem transaction: %w", err)
	}
	defer tx.Rollback()

	var cost int
	err = tx.QueryRow(`SELECT cost FROM rewards WHERE id = ?`, rewardID).Scan(&cost)
	if err == sql.ErrNoRows {
		return Redemption{}, ErrNotFound
	}
	if err != nil {
		return Redemption{}, err
	}

	var points int
	err = tx.QueryRow(`SELECT points FROM member WHERE id = 1`).Scan(&points)
	if err == sql.ErrNoRows {
		return Redemption{}, ErrNotFound
	}
	if err != nil {
		return Redemption{}, err
	}
	if points < cost {
		return Redemption{}, ErrInsufficientPoints
	}

	if _, err := tx.Exec(`UPDATE member SET points = points - ? WHERE id = 1`, cost); err != nil {
		return Redemption{}, fmt.Errorf("deducting points: %w", err)
	}
	red := Redemption{ID: redemptionID, RewardID: rewardID, Cost: cost, CreatedAt: at.UTC().Truncate(time.Second)}
	if _, err := tx.Exec(`INSERT INTO redemptions (id, reward_id, cost, created_at) VALUES (?, ?, ?, ?)`,
		red.ID, red.RewardID, red.Cost, red.CreatedAt.Format(time.RFC3339)); err != nil {
		return Redemption{}, fmt.Errorf("recording redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Redemption{}, fmt.Errorf("committing redeem: %w", err)
	}
	return red, nil
}

func (s *Store) ListRedemptions() ([]Redemption, error) {
	rows, err := s.db.Query(`SELECT id, reward_id, cost, created_at FROM redemptions ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Redemption
	for rows.Next() {
		var r Redemption
		var createdAt string
		if err := rows.Scan(&r.ID, &r.RewardID, &r.Cost, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}
