// Package profile models the user's own progression summary.
package profile

import (
	"time"

	"github.com/meetme/progression-engine/internal/domain/shared"
)

// UserProfile mirrors the authoritative point counter and accumulates
// lifetime session totals.
type UserProfile struct {
	Name              string    `json:"name"`
	TotalPoints       int       `json:"totalPoints"`
	TotalChillMinutes int       `json:"totalChillMinutes"`
	TotalSessions     int       `json:"totalSessions"`
	JoinDate          time.Time `json:"joinDate"`
}

// DefaultName is used until the user picks one.
const DefaultName = "Chiller"

// New creates a profile that joined at joinDate.
func New(name string, joinDate time.Time) *UserProfile {
	if name == "" {
		name = DefaultName
	}
	return &UserProfile{Name: name, JoinDate: joinDate}
}

// Level derives the user level from total points.
func (p *UserProfile) Level() shared.Level {
	return shared.Points(p.TotalPoints).Level()
}

// LevelTitle returns the title of the current level.
func (p *UserProfile) LevelTitle() string {
	return p.Level().Title()
}

// RecordSession adds a closed session to the lifetime totals.
func (p *UserProfile) RecordSession(durationMinutes int) {
	p.TotalSessions++
	if durationMinutes > 0 {
		p.TotalChillMinutes += durationMinutes
	}
}

// Clone returns an independent copy.
func (p *UserProfile) Clone() *UserProfile {
	c := *p
	return &c
}
