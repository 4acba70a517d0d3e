// Package weekly models the rolling statistics bucket for the current week.
package weekly

import (
	"encoding/json"
	"sort"
	"time"
)

// Stats is the bucket for one week. It is replaced wholesale at rollover,
// never reset field by field.
type Stats struct {
	WeekStart     time.Time
	SessionsCount int
	TotalMinutes  int
	UniqueFriends map[string]struct{}
	PointsEarned  int
}

// NewStats returns an all-zero bucket for the week starting at weekStart.
func NewStats(weekStart time.Time) *Stats {
	return &Stats{
		WeekStart:     weekStart,
		UniqueFriends: make(map[string]struct{}),
	}
}

// UniqueFriendsCount returns the number of distinct friends seen this week.
func (s *Stats) UniqueFriendsCount() int {
	return len(s.UniqueFriends)
}

// FriendIDs returns the distinct friend ids in sorted order.
func (s *Stats) FriendIDs() []string {
	ids := make([]string, 0, len(s.UniqueFriends))
	for id := range s.UniqueFriends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordSession folds a closed session into the bucket.
// The friend set only grows.
func (s *Stats) RecordSession(durationMinutes int, friendIDs []string) {
	if s.UniqueFriends == nil {
		s.UniqueFriends = make(map[string]struct{})
	}
	s.SessionsCount++
	if durationMinutes > 0 {
		s.TotalMinutes += durationMinutes
	}
	for _, id := range friendIDs {
		s.UniqueFriends[id] = struct{}{}
	}
}

// RecordPoints adds points earned this week.
func (s *Stats) RecordPoints(points int) {
	if points > 0 {
		s.PointsEarned += points
	}
}

// IsWeek reports whether the bucket belongs to the week starting at weekStart.
func (s *Stats) IsWeek(weekStart time.Time) bool {
	return s.WeekStart.Equal(weekStart)
}

// Clone returns an independent copy.
func (s *Stats) Clone() *Stats {
	c := *s
	c.UniqueFriends = make(map[string]struct{}, len(s.UniqueFriends))
	for id := range s.UniqueFriends {
		c.UniqueFriends[id] = struct{}{}
	}
	return &c
}

// ──────────────────────────────────────────────────────────────────────────────
// Encoding
// ──────────────────────────────────────────────────────────────────────────────

type statsJSON struct {
	WeekStart     time.Time `json:"weekStart"`
	SessionsCount int       `json:"sessionsCount"`
	TotalMinutes  int       `json:"totalMinutes"`
	UniqueFriends []string  `json:"uniqueFriends"`
	PointsEarned  int       `json:"pointsEarned"`
}

// MarshalJSON encodes the friend set as a sorted array.
func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		WeekStart:     s.WeekStart,
		SessionsCount: s.SessionsCount,
		TotalMinutes:  s.TotalMinutes,
		UniqueFriends: s.FriendIDs(),
		PointsEarned:  s.PointsEarned,
	})
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw statsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Stats{
		WeekStart:     raw.WeekStart,
		SessionsCount: raw.SessionsCount,
		TotalMinutes:  raw.TotalMinutes,
		UniqueFriends: make(map[string]struct{}, len(raw.UniqueFriends)),
		PointsEarned:  raw.PointsEarned,
	}
	for _, id := range raw.UniqueFriends {
		s.UniqueFriends[id] = struct{}{}
	}
	return nil
}
