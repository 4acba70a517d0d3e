package challenge

import (
	"github.com/meetme/progression-engine/internal/domain/weekly"
)

// template is the fixed weekly challenge set.
var template = []Challenge{
	{
		Title:       "Social Butterfly",
		Description: "Chill with 3 different friends",
		TargetValue: 3,
		Icon:        "person.3.fill",
		Color:       "purple",
		Type:        TypeDistinctFriends,
	},
	{
		Title:       "Chill Master",
		Description: "Collect 60 minutes of chill time",
		TargetValue: 60,
		Icon:        "timer",
		Color:       "orange",
		Type:        TypeTotalMinutes,
	},
	{
		Title:       "Session Hero",
		Description: "Start 5 chill sessions",
		TargetValue: 5,
		Icon:        "play.circle.fill",
		Color:       "green",
		Type:        TypeSessions,
	},
}

// Tracker regenerates the weekly set and projects weekly facts onto it.
type Tracker struct {
	newID func() string
}

// NewTracker creates a tracker that assigns ids with newID.
func NewTracker(newID func() string) *Tracker {
	return &Tracker{newID: newID}
}

// Regenerate returns a fresh copy of the template with zero progress.
func (t *Tracker) Regenerate() []*Challenge {
	out := make([]*Challenge, 0, len(template))
	for _, tmpl := range template {
		c := tmpl
		c.ID = t.newID()
		c.CurrentProgress = 0
		out = append(out, &c)
	}
	return out
}

// Recompute sets each challenge's progress from the matching weekly fact.
// It is a projection, so calling it again without new activity changes nothing.
func (t *Tracker) Recompute(challenges []*Challenge, stats *weekly.Stats) {
	for _, c := range challenges {
		c.CurrentProgress = c.Type.FactFrom(stats)
	}
}

// CompletedCount returns how many challenges are complete.
func CompletedCount(challenges []*Challenge) int {
	n := 0
	for _, c := range challenges {
		if c.IsCompleted() {
			n++
		}
	}
	return n
}
