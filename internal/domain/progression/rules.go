// Package progression holds the pure rules that turn point totals and
// shared minutes into levels, bond levels and milestone crossings.
// Nothing here keeps state.
package progression

import (
	"fmt"

	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVELS
// ══════════════════════════════════════════════════════════════════════════════

// LevelForPoints returns floor(points/100), floored at 1.
func LevelForPoints(points int) shared.Level {
	if points < 0 {
		points = 0
	}
	return shared.Points(points).Level()
}

// BondLevelForMinutes returns floor(minutes/30), floored at 1.
func BondLevelForMinutes(minutes int) shared.BondLevel {
	level := shared.BondLevel(minutes / shared.MinutesPerBondLevel)
	if level < 1 {
		return 1
	}
	return level
}

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONES
// ══════════════════════════════════════════════════════════════════════════════

// MilestoneKind tells point milestones from level milestones.
type MilestoneKind string

const (
	KindPoints MilestoneKind = "points"
	KindLevel  MilestoneKind = "level"
)

// MilestoneTag identifies one threshold.
type MilestoneTag struct {
	Kind      MilestoneKind
	Threshold int
}

// String renders the tag as "points_100" or "level_5".
func (t MilestoneTag) String() string {
	return fmt.Sprintf("%s_%d", t.Kind, t.Threshold)
}

// Fixed ascending thresholds.
var (
	PointMilestones = []int{100, 500, 1000}
	LevelMilestones = []int{5, 10}
)

// MilestonesCrossed returns every threshold t with old < t <= new.
// Point milestones come first in ascending order, then level milestones
// computed from the levels of both totals.
func MilestonesCrossed(oldPoints, newPoints int) []MilestoneTag {
	if oldPoints < 0 {
		oldPoints = 0
	}
	if newPoints < 0 {
		newPoints = 0
	}

	var crossed []MilestoneTag
	for _, t := range PointMilestones {
		if oldPoints < t && t <= newPoints {
			crossed = append(crossed, MilestoneTag{Kind: KindPoints, Threshold: t})
		}
	}

	oldLevel := LevelForPoints(oldPoints).Int()
	newLevel := LevelForPoints(newPoints).Int()
	for _, t := range LevelMilestones {
		if oldLevel < t && t <= newLevel {
			crossed = append(crossed, MilestoneTag{Kind: KindLevel, Threshold: t})
		}
	}
	return crossed
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Achievement is the presentation text attached to a milestone.
type Achievement struct {
	Tag     MilestoneTag
	Title   string
	Message string
}

var achievements = map[MilestoneTag]Achievement{
	{KindPoints, 100}:  {Title: "First Hundred!", Message: "You collected your first 100 points!"},
	{KindPoints, 500}:  {Title: "Chill Master!", Message: "500 points - you are a real pro!"},
	{KindPoints, 1000}: {Title: "Legend!", Message: "1000 points - absolute perfection!"},
	{KindLevel, 5}:     {Title: "High Five!", Message: "Level 5 reached - you rock!"},
	{KindLevel, 10}:    {Title: "Perfect Ten!", Message: "Level 10 reached - unstoppable!"},
}

// AchievementFor returns the achievement text for a milestone.
// Unknown tags get a generic text so callers never have to check.
func AchievementFor(tag MilestoneTag) Achievement {
	a, ok := achievements[tag]
	if !ok {
		a = Achievement{
			Title:   fmt.Sprintf("%d %s!", tag.Threshold, tag.Kind),
			Message: "Milestone reached.",
		}
	}
	a.Tag = tag
	return a
}
