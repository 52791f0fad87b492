package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientPoints is returned when a redemption costs more than the
// member's balance.
var ErrInsufficientPoints = errors.New("insufficient points")

type Member struct {
	Name            string
	Level           string
	Points          int
	NextLevelPoints int
}

type Stamp struct {
	ID          string
	Name        string
	MarkerURL   string
	Points      int
	CollectedAt *time.Time
}

type Reward struct {
	ID   string
	Name string
	Cost int
	Type string // "Food", "Drink", "Travel", "Shop"
}

type Redemption struct {
	ID        string
	RewardID  string
	Cost      int
	CreatedAt time.Time
}
