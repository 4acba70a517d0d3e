// Package friend models the user's roster of friends and the bond
// each friendship accumulates through shared chill minutes.
package friend

import (
	"strings"
	"unicode/utf8"

	"github.com/meetme/progression-engine/internal/domain/progression"
	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: FRIEND
// ══════════════════════════════════════════════════════════════════════════════

// Friend is one relationship in the roster.
type Friend struct {
	// ID is stable for the lifetime of the relationship.
	ID string `json:"id"`

	Name     string `json:"name"`
	Username string `json:"username"`

	// ChillMinutes only grows, and only when a session closes.
	ChillMinutes int `json:"chillMinutes"`

	IsOnline      bool   `json:"isOnline"`
	LastSeen      string `json:"lastSeen"`
	MutualFriends int    `json:"mutualFriends"`
}

// BondLevel derives the bond tier from shared minutes.
func (f *Friend) BondLevel() shared.BondLevel {
	return progression.BondLevelForMinutes(f.ChillMinutes)
}

// BondTitle returns the title of the current bond tier.
func (f *Friend) BondTitle() string {
	return f.BondLevel().Title()
}

// FirstName returns the first word of the display name.
func (f *Friend) FirstName() string {
	if fields := strings.Fields(f.Name); len(fields) > 0 {
		return fields[0]
	}
	return f.Name
}

// Initials returns the first letter of each word of the name.
func (f *Friend) Initials() string {
	var b strings.Builder
	for _, word := range strings.Fields(f.Name) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteString(strings.ToUpper(string(r)))
	}
	return b.String()
}

// AddChillMinutes accrues shared minutes. Non-positive values are ignored.
func (f *Friend) AddChillMinutes(minutes int) {
	if minutes > 0 {
		f.ChillMinutes += minutes
	}
}

// Clone returns an independent copy.
func (f *Friend) Clone() *Friend {
	c := *f
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewFriendParams contains the parameters for adding a friend.
type NewFriendParams struct {
	ID            string
	Name          string
	Username      string
	ChillMinutes  int
	IsOnline      bool
	LastSeen      string
	MutualFriends int
}

// NewFriend creates a friend with validation.
func NewFriend(params NewFriendParams) (*Friend, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("roster", "Add", shared.ErrEmptyValue, "friend id is required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.ErrFriendNameMissing
	}
	if params.ChillMinutes < 0 || params.MutualFriends < 0 {
		return nil, shared.NewDomainError("roster", "Add", shared.ErrNegativeValue, "counters cannot be negative")
	}

	username := strings.TrimSpace(params.Username)
	if username != "" && !strings.HasPrefix(username, "@") {
		username = "@" + username
	}

	lastSeen := params.LastSeen
	if params.IsOnline {
		lastSeen = "online"
	}

	return &Friend{
		ID:            params.ID,
		Name:          name,
		Username:      username,
		ChillMinutes:  params.ChillMinutes,
		IsOnline:      params.IsOnline,
		LastSeen:      lastSeen,
		MutualFriends: params.MutualFriends,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT ROSTER
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRosterParams is the demo roster used when nothing is stored yet.
// IDs are left empty and assigned by the caller.
func DefaultRosterParams() []NewFriendParams {
	return []NewFriendParams{
		{Name: "Anna Schmidt", Username: "@anna_s", ChillMinutes: 90, IsOnline: true, MutualFriends: 5},
		{Name: "Max Müller", Username: "@max_m", ChillMinutes: 75, IsOnline: true, MutualFriends: 8},
		{Name: "Lisa Weber", Username: "@lisa_w", ChillMinutes: 120, LastSeen: "2h ago", MutualFriends: 3},
		{Name: "Tom Fischer", Username: "@tom_f", ChillMinutes: 45, LastSeen: "1d ago", MutualFriends: 12},
		{Name: "Sarah Klein", Username: "@sarah_k", ChillMinutes: 60, IsOnline: true, MutualFriends: 6},
	}
}
