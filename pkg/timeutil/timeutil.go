// Package timeutil provides the clock used by the progression engine and
// week-boundary helpers. Weeks are ISO weeks: they start on Monday 00:00
// in the clock's location.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock supplies the current time and the week-start calculation.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// StartOfWeek returns the start of the week containing t.
	StartOfWeek(t time.Time) time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// SystemClock reads wall-clock time and computes weeks in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a clock for the given location (UTC when nil).
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

// Now implements Clock.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// StartOfWeek implements Clock.
func (c *SystemClock) StartOfWeek(t time.Time) time.Time {
	return StartOfWeek(t, c.loc)
}

// Location returns the clock's location.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// ManualClock is a Clock whose time only moves when told to.
// Used by tests and by script hosts that replay recorded time.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewManualClock creates a manual clock frozen at now.
func NewManualClock(now time.Time, loc *time.Location) *ManualClock {
	if loc == nil {
		loc = time.UTC
	}
	return &ManualClock{now: now.In(loc), loc: loc}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// StartOfWeek implements Clock.
func (c *ManualClock) StartOfWeek(t time.Time) time.Time {
	return StartOfWeek(t, c.loc)
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.In(c.loc)
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns 00:00:00 of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns Monday 00:00:00 of t's week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(local.AddDate(0, 0, -(weekday - 1)), loc)
}

// EndOfWeek returns the instant the week containing t ends (next Monday 00:00).
func EndOfWeek(t time.Time, loc *time.Location) time.Time {
	return StartOfWeek(t, loc).AddDate(0, 0, 7)
}

// SameWeek reports whether a and b fall into the same week in loc.
func SameWeek(a, b time.Time, loc *time.Location) bool {
	return StartOfWeek(a, loc).Equal(StartOfWeek(b, loc))
}

// LoadLocation resolves a zone name; an empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// FormatLastSeen renders how long ago t was relative to now,
// in the short form used for friend presence labels ("5m ago", "2h ago", "1d ago").
func FormatLastSeen(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
