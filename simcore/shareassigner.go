package simcore

import "fmt"

// ShareAssigner supplies each user's raw share weight before the
// Simulator normalizes them to sum to 1.0.
type ShareAssigner interface {
	Shares(user UserID) int
}

// EqualShareAssigner gives every user the same weight.
type EqualShareAssigner struct{}

func (EqualShareAssigner) Shares(user UserID) int { return 1 }

// FileShareAssigner reads a user_id -> share mapping, defaulting
// unlisted users to 1.
type FileShareAssigner struct {
	PerUser map[UserID]int
}

func (f FileShareAssigner) Shares(user UserID) int {
	if s, ok := f.PerUser[user]; ok {
		if s <= 0 {
			panic(fmt.Sprintf("simcore: user %s has non-positive share %d", user, s))
		}
		return s
	}
	return 1
}
