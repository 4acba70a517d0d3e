package engine

import (
	"context"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/domain/weekly"
)

// EnsureCurrentWeek replaces the weekly stats and regenerates challenges
// when the clock has moved into another week. It reports whether a
// rollover happened; a second call in the same week is a no-op.
func (e *Engine) EnsureCurrentWeek(ctx context.Context) (bool, error) {
	var rolled bool
	err := e.apply(ctx, func(c *change) error {
		rolled = e.rolloverLocked(c)
		return nil
	})
	return rolled, err
}

// rolloverLocked must run before any read or write of e.stats.
func (e *Engine) rolloverLocked(c *change) bool {
	current := e.currentWeekStart()
	if e.stats != nil && e.stats.IsWeek(current) {
		return false
	}

	previous := e.stats
	e.stats = weekly.NewStats(current)
	e.challenges = e.tracker.Regenerate()
	c.touch(blob.KeyWeeklyStats, blob.KeyChallenges)

	if previous != nil {
		c.emit(shared.NewWeekRolledOverEvent(
			previous.WeekStart,
			current,
			previous.SessionsCount,
			previous.TotalMinutes,
			previous.FriendIDs(),
			previous.PointsEarned,
			e.now(),
		))
		e.logger.Info("week rolled over",
			"previous_week", previous.WeekStart,
			"week", current,
			"sessions", previous.SessionsCount,
		)
	}
	return true
}
