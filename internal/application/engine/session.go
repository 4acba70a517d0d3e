package engine

import (
	"context"
	"fmt"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/session"
	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE
// NONE -> ACTIVE on start, ACTIVE -> NONE on end. Anything else is rejected.
// ══════════════════════════════════════════════════════════════════════════════

// TickResult is the running figure of the active session after a tick.
type TickResult struct {
	SessionID       string
	DurationMinutes int
	PointsEarned    int
}

// EndResult summarizes a closed session.
type EndResult struct {
	SessionID       string
	DurationMinutes int
	PointsEarned    int
	Private         bool

	// PointsAwarded is what actually reached the point total. It is zero for
	// private sessions and while global privacy mode is on.
	PointsAwarded int
}

// StartSession opens a session with the given friends and returns its id.
// It fails with InvalidOperation if a session is active, the participant set
// is empty, or a participant is not in the roster.
func (e *Engine) StartSession(ctx context.Context, participantIDs []string, private bool) (string, error) {
	var id string
	err := e.apply(ctx, func(c *change) error {
		var err error
		id, err = e.startLocked(c, participantIDs, private)
		return err
	})
	if err != nil && !shared.IsPersistenceWarning(err) {
		return "", err
	}
	return id, err
}

// StartSelectedSession opens a session with the current selection, private
// when global privacy mode is on.
func (e *Engine) StartSelectedSession(ctx context.Context) (string, error) {
	var id string
	err := e.apply(ctx, func(c *change) error {
		var err error
		id, err = e.startLocked(c, e.selected, e.privacy)
		return err
	})
	if err != nil && !shared.IsPersistenceWarning(err) {
		return "", err
	}
	return id, err
}

func (e *Engine) startLocked(c *change, participantIDs []string, private bool) (string, error) {
	if e.active != nil {
		return "", shared.ErrSessionAlreadyActive
	}
	if len(participantIDs) == 0 {
		return "", shared.ErrNoParticipants
	}

	participants := make([]session.Participant, 0, len(participantIDs))
	for _, id := range participantIDs {
		f, ok := e.roster.Get(id)
		if !ok {
			return "", shared.WrapError("session", "Start", shared.ErrInvalidOperation,
				fmt.Sprintf("unknown participant %q", id), shared.ErrUnknownParticipant)
		}
		participants = append(participants, session.Participant{ID: f.ID, Name: f.Name})
	}

	s, err := session.NewSession(session.NewSessionParams{
		ID:           e.newID(),
		Participants: participants,
		StartedAt:    e.now(),
		Private:      private,
	})
	if err != nil {
		return "", err
	}

	e.active = s
	c.touch(blob.KeyActiveSession)
	c.emit(shared.NewSessionStartedEvent(s.ID, append([]string(nil), s.ParticipantIDs...), s.IsPrivate, s.StartedAt))

	e.logger.Info("session started",
		"session_id", s.ID,
		"participants", len(s.ParticipantIDs),
		"private", s.IsPrivate,
	)
	return s.ID, nil
}

// RecordTick accrues one minute and its points on the active session.
// Persistent totals are untouched until the session ends.
func (e *Engine) RecordTick(ctx context.Context) (TickResult, error) {
	var res TickResult
	err := e.apply(ctx, func(c *change) error {
		if e.active == nil {
			return shared.NewDomainError("session", "Tick", shared.ErrInvalidOperation, "no active session")
		}
		e.active.Tick(e.pointsForMinute(e.active.IsPrivate))
		c.touch(blob.KeyActiveSession)

		res = TickResult{
			SessionID:       e.active.ID,
			DurationMinutes: e.active.DurationMinutes,
			PointsEarned:    e.active.PointsEarned,
		}
		return nil
	})
	return res, err
}

// EndSession closes the active session with externally measured figures.
// Negative figures are clamped to zero. A private session is closed with no
// other effect; otherwise totals, friend minutes, weekly stats, points and
// challenges are updated in that order.
func (e *Engine) EndSession(ctx context.Context, finalDurationMinutes, finalPoints int) (EndResult, error) {
	var res EndResult
	err := e.apply(ctx, func(c *change) error {
		if e.active == nil {
			return shared.ErrNoActiveSession
		}
		res = e.endLocked(c, finalDurationMinutes, finalPoints)
		return nil
	})
	return res, err
}

// EndAccruedSession closes the active session using its ticked figures.
func (e *Engine) EndAccruedSession(ctx context.Context) (EndResult, error) {
	var res EndResult
	err := e.apply(ctx, func(c *change) error {
		if e.active == nil {
			return shared.ErrNoActiveSession
		}
		res = e.endLocked(c, e.active.DurationMinutes, e.active.PointsEarned)
		return nil
	})
	return res, err
}

func (e *Engine) endLocked(c *change, duration, points int) EndResult {
	s := e.active
	s.Close(e.now(), duration, points)

	// The slot and the selection are cleared whatever happens below.
	e.active = nil
	e.selected = nil
	c.touch(blob.KeyActiveSession)

	// Privacy mode at close time counts, not only the session's own flag.
	private := s.IsPrivate || e.privacy
	res := EndResult{
		SessionID:       s.ID,
		DurationMinutes: s.DurationMinutes,
		PointsEarned:    s.PointsEarned,
		Private:         private,
	}

	if private {
		c.emit(shared.NewSessionEndedEvent(s.ID, s.DurationMinutes, s.PointsEarned, true, *s.EndedAt))
		e.logger.Info("private session closed", "session_id", s.ID, "privacy_mode", e.privacy)
		return res
	}

	e.rolloverLocked(c)

	e.profile.RecordSession(s.DurationMinutes)

	for _, id := range s.ParticipantIDs {
		if f, ok := e.roster.Get(id); ok {
			f.AddChillMinutes(s.DurationMinutes)
		}
	}

	e.stats.RecordSession(s.DurationMinutes, s.ParticipantIDs)

	c.emit(shared.NewSessionEndedEvent(s.ID, s.DurationMinutes, s.PointsEarned, false, *s.EndedAt))

	if e.awardLocked(c, s.PointsEarned) {
		e.stats.RecordPoints(s.PointsEarned)
		res.PointsAwarded = s.PointsEarned
	}

	e.tracker.Recompute(e.challenges, e.stats)

	c.touch(blob.KeyUserProfile, blob.KeyFriends, blob.KeyWeeklyStats, blob.KeyChallenges)

	e.logger.Info("session ended",
		"session_id", s.ID,
		"duration_minutes", s.DurationMinutes,
		"points", s.PointsEarned,
		"points_awarded", res.PointsAwarded,
	)
	return res
}

// ActiveSession returns a copy of the active session, if any.
func (e *Engine) ActiveSession() (*session.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil, false
	}
	return e.active.Clone(), true
}
