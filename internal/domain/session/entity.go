// Package session models a timed chill session between the user and
// one or more friends.
package session

import (
	"time"

	"github.com/meetme/progression-engine/internal/domain/shared"
)

// Participant is a denormalized snapshot of a friend taken at session start.
type Participant struct {
	ID   string
	Name string
}

// Session is an open or closed chill session.
// A session is active exactly while EndedAt is nil.
type Session struct {
	ID string `json:"id"`

	// Participant ids are ordered, unique and fixed at creation.
	ParticipantIDs   []string `json:"friendIds"`
	ParticipantNames []string `json:"friendNames"`

	StartedAt time.Time  `json:"startTime"`
	EndedAt   *time.Time `json:"endTime,omitempty"`

	DurationMinutes int  `json:"duration"`
	PointsEarned    int  `json:"pointsEarned"`
	IsPrivate       bool `json:"isPrivate"`
}

// NewSessionParams contains the parameters for opening a session.
type NewSessionParams struct {
	ID           string
	Participants []Participant
	StartedAt    time.Time
	Private      bool
}

// NewSession opens a session. Duplicate participants are dropped keeping
// first-seen order; an empty participant set is rejected.
func NewSession(params NewSessionParams) (*Session, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("session", "Start", shared.ErrEmptyValue, "session id is required")
	}

	seen := make(map[string]struct{}, len(params.Participants))
	ids := make([]string, 0, len(params.Participants))
	names := make([]string, 0, len(params.Participants))
	for _, p := range params.Participants {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
		names = append(names, p.Name)
	}
	if len(ids) == 0 {
		return nil, shared.ErrNoParticipants
	}

	return &Session{
		ID:               params.ID,
		ParticipantIDs:   ids,
		ParticipantNames: names,
		StartedAt:        params.StartedAt,
		IsPrivate:        params.Private,
	}, nil
}

// IsActive reports whether the session is still open.
func (s *Session) IsActive() bool {
	return s.EndedAt == nil
}

// Tick accrues one minute and the points earned in it.
func (s *Session) Tick(points int) {
	s.DurationMinutes++
	if points > 0 {
		s.PointsEarned += points
	}
}

// Close finalizes the session with the given figures, clamped at zero.
func (s *Session) Close(at time.Time, durationMinutes, points int) {
	s.EndedAt = &at
	s.DurationMinutes = max(durationMinutes, 0)
	s.PointsEarned = max(points, 0)
}

// Elapsed returns the wall time since the session started.
func (s *Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// Includes reports whether friendID takes part in the session.
func (s *Session) Includes(friendID string) bool {
	for _, id := range s.ParticipantIDs {
		if id == friendID {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	c := *s
	c.ParticipantIDs = append([]string(nil), s.ParticipantIDs...)
	c.ParticipantNames = append([]string(nil), s.ParticipantNames...)
	if s.EndedAt != nil {
		end := *s.EndedAt
		c.EndedAt = &end
	}
	return &c
}
