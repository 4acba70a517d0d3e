// Package challenge models the weekly challenges and the tracker that
// projects weekly statistics onto their progress.
package challenge

import (
	"github.com/meetme/progression-engine/internal/domain/weekly"
)

// Type selects which weekly fact drives a challenge.
type Type string

const (
	// TypeDistinctFriends counts different friends chilled with this week.
	TypeDistinctFriends Type = "distinct_friends"
	// TypeTotalMinutes counts chill minutes this week.
	TypeTotalMinutes Type = "total_minutes"
	// TypeSessions counts sessions this week.
	TypeSessions Type = "sessions"
)

// IsValid reports whether t is a known challenge type.
func (t Type) IsValid() bool {
	switch t {
	case TypeDistinctFriends, TypeTotalMinutes, TypeSessions:
		return true
	default:
		return false
	}
}

// FactFrom reads the weekly fact that drives challenges of type t.
func (t Type) FactFrom(stats *weekly.Stats) int {
	if stats == nil {
		return 0
	}
	switch t {
	case TypeDistinctFriends:
		return stats.UniqueFriendsCount()
	case TypeTotalMinutes:
		return stats.TotalMinutes
	case TypeSessions:
		return stats.SessionsCount
	default:
		return 0
	}
}

// Challenge is one weekly goal.
// Progress is uncapped; completion and percentage are derived.
type Challenge struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	TargetValue     int    `json:"targetValue"`
	CurrentProgress int    `json:"currentProgress"`
	Icon            string `json:"icon"`
	Color           string `json:"color"`
	Type            Type   `json:"type"`
}

// IsCompleted reports whether progress reached the target.
func (c *Challenge) IsCompleted() bool {
	return c.CurrentProgress >= c.TargetValue
}

// ProgressPercentage returns min(1, progress/target).
func (c *Challenge) ProgressPercentage() float64 {
	if c.TargetValue <= 0 {
		return 1
	}
	return min(1, float64(c.CurrentProgress)/float64(c.TargetValue))
}

// Remaining returns how much progress is still missing.
func (c *Challenge) Remaining() int {
	return max(0, c.TargetValue-c.CurrentProgress)
}

// Clone returns an independent copy.
func (c *Challenge) Clone() *Challenge {
	cp := *c
	return &cp
}
