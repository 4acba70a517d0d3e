package engine

import (
	"context"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/challenge"
	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/profile"
	"github.com/meetme/progression-engine/internal/domain/session"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/domain/weekly"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// Everything returned here is a copy; callers never touch live state.
// ══════════════════════════════════════════════════════════════════════════════

// Friends returns the roster in insertion order.
func (e *Engine) Friends() []*friend.Friend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.All()
}

// Friend returns one friend by id.
func (e *Engine) Friend(id string) (*friend.Friend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.roster.Get(id)
	if !ok {
		return nil, shared.ErrFriendNotFound
	}
	return f.Clone(), nil
}

// FriendsRanking returns the roster by chill minutes, most first.
func (e *Engine) FriendsRanking() []*friend.Friend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.Ranking()
}

// TopFriend returns the friend with the most chill minutes.
func (e *Engine) TopFriend() (*friend.Friend, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.Top()
}

// Profile returns the user profile.
func (e *Engine) Profile() *profile.UserProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone()
}

// WeeklyStats returns the current week's stats, rolling over first.
// The error is a PersistenceWarning when the rollover could not be saved.
func (e *Engine) WeeklyStats(ctx context.Context) (*weekly.Stats, error) {
	var out *weekly.Stats
	err := e.apply(ctx, func(c *change) error {
		e.rolloverLocked(c)
		out = e.stats.Clone()
		return nil
	})
	return out, err
}

// Challenges returns the current week's challenges, rolling over first.
func (e *Engine) Challenges(ctx context.Context) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	err := e.apply(ctx, func(c *change) error {
		e.rolloverLocked(c)
		out = cloneChallenges(e.challenges)
		return nil
	})
	return out, err
}

// Snapshot is a consistent copy of the whole engine state.
type Snapshot struct {
	Profile       *profile.UserProfile
	TotalPoints   int
	Level         int
	LevelTitle    string
	PrivacyMode   bool
	Friends       []*friend.Friend
	Challenges    []*challenge.Challenge
	WeeklyStats   *weekly.Stats
	ActiveSession *session.Session
	SelectedIDs   []string
}

// Snapshot returns the whole state after making sure the week is current.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.apply(ctx, func(c *change) error {
		e.rolloverLocked(c)
		snap = Snapshot{
			Profile:     e.profile.Clone(),
			TotalPoints: e.totalPoints,
			Level:       e.profile.Level().Int(),
			LevelTitle:  e.profile.LevelTitle(),
			PrivacyMode: e.privacy,
			Friends:     e.roster.All(),
			Challenges:  cloneChallenges(e.challenges),
			WeeklyStats: e.stats.Clone(),
			SelectedIDs: append([]string(nil), e.selected...),
		}
		if e.active != nil {
			snap.ActiveSession = e.active.Clone()
		}
		return nil
	})
	return snap, err
}

func cloneChallenges(in []*challenge.Challenge) []*challenge.Challenge {
	out := make([]*challenge.Challenge, 0, len(in))
	for _, c := range in {
		out = append(out, c.Clone())
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// RESET
// ══════════════════════════════════════════════════════════════════════════════

// Reset discards all state and starts over from a fresh default, overwriting
// every stored key (the active session key is deleted).
func (e *Engine) Reset(ctx context.Context) error {
	return e.apply(ctx, func(c *change) error {
		e.roster = nil
		e.challenges = nil
		e.stats = nil
		e.profile = nil
		e.totalPoints = 0
		e.privacy = false
		e.active = nil
		e.selected = nil

		e.bootstrapLocked(c)
		c.touch(blob.AllKeys...)
		e.logger.Info("engine state reset")
		return nil
	})
}
