package engine

import (
	"context"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/progression"
	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT AWARD PATH
// ══════════════════════════════════════════════════════════════════════════════

// AwardResult describes an applied award.
type AwardResult struct {
	Applied       bool
	OldTotal      int
	NewTotal      int
	PreviousLevel int
	NewLevel      int
	Milestones    []progression.MilestoneTag
}

// AwardPoints adds amount to the point total. A negative amount fails with
// InvalidOperation; while privacy mode is on the call changes nothing.
func (e *Engine) AwardPoints(ctx context.Context, amount int) (AwardResult, error) {
	var res AwardResult
	err := e.apply(ctx, func(c *change) error {
		if amount < 0 {
			return shared.ErrNegativeAward
		}
		old := e.totalPoints
		res.OldTotal, res.NewTotal = old, old
		res.PreviousLevel = progression.LevelForPoints(old).Int()
		res.NewLevel = res.PreviousLevel

		if !e.awardLocked(c, amount) {
			return nil
		}
		res.Applied = true
		res.NewTotal = e.totalPoints
		res.NewLevel = progression.LevelForPoints(e.totalPoints).Int()
		res.Milestones = progression.MilestonesCrossed(old, e.totalPoints)
		return nil
	})
	return res, err
}

// awardLocked applies an award and emits, in order: PointsEarned, LevelUp
// (once, with the final level) and one AchievementUnlocked per crossed
// point milestone. It reports whether the award was applied.
func (e *Engine) awardLocked(c *change, amount int) bool {
	if e.privacy || amount < 0 {
		return false
	}

	now := e.now()
	old := e.totalPoints
	e.totalPoints = shared.Points(old).Add(amount).Int()
	e.profile.TotalPoints = e.totalPoints
	c.touch(blob.KeyTotalPoints, blob.KeyUserProfile)

	c.emit(shared.NewPointsEarnedEvent(amount, e.totalPoints, now))

	oldLevel := progression.LevelForPoints(old)
	newLevel := progression.LevelForPoints(e.totalPoints)
	crossed := progression.MilestonesCrossed(old, e.totalPoints)

	if newLevel > oldLevel {
		var levelTags []string
		var achievement string
		for _, tag := range crossed {
			if tag.Kind == progression.KindLevel {
				levelTags = append(levelTags, tag.String())
				achievement = progression.AchievementFor(tag).Title
			}
		}
		c.emit(shared.NewLevelUpEvent(oldLevel.Int(), newLevel.Int(), newLevel.Title(), levelTags, achievement, now))
	}

	for _, tag := range crossed {
		if tag.Kind != progression.KindPoints {
			continue
		}
		a := progression.AchievementFor(tag)
		c.emit(shared.NewAchievementUnlockedEvent(tag.String(), a.Title, a.Message, now))
	}

	e.logger.Debug("points awarded",
		"amount", amount,
		"total", e.totalPoints,
		"level", newLevel.Int(),
	)
	return true
}

// TotalPoints returns the authoritative point total.
func (e *Engine) TotalPoints() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalPoints
}

// SetPrivacyMode turns global privacy mode on or off.
func (e *Engine) SetPrivacyMode(ctx context.Context, enabled bool) error {
	return e.apply(ctx, func(c *change) error {
		if e.privacy == enabled {
			return nil
		}
		e.privacy = enabled
		c.touch(blob.KeyPrivacyMode)
		e.logger.Info("privacy mode changed", "enabled", enabled)
		return nil
	})
}

// PrivacyMode reports whether global privacy mode is on.
func (e *Engine) PrivacyMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.privacy
}
