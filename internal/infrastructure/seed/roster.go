// Package seed imports friend rosters from YAML files.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/pkg/timeutil"
)

// rosterFile is the YAML document layout:
//
//	friends:
//	  - id: anna
//	    name: Anna Schmidt
//	    username: anna_s
//	    chillMinutes: 90
//	    online: true
//	    lastSeenAt: 2026-10-14T10:00:00Z
//	    mutualFriends: 5
type rosterFile struct {
	Friends []rosterEntry `yaml:"friends"`
}

type rosterEntry struct {
	ID            string     `yaml:"id"`
	Name          string     `yaml:"name"`
	Username      string     `yaml:"username"`
	ChillMinutes  int        `yaml:"chillMinutes"`
	Online        bool       `yaml:"online"`
	LastSeen      string     `yaml:"lastSeen"`
	LastSeenAt    *time.Time `yaml:"lastSeenAt"`
	MutualFriends int        `yaml:"mutualFriends"`
}

// ParseRoster decodes a roster document. A lastSeenAt timestamp is rendered
// relative to now and wins over a literal lastSeen label.
func ParseRoster(data []byte, now time.Time) ([]friend.NewFriendParams, error) {
	var doc rosterFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal roster: %w", err)
	}

	params := make([]friend.NewFriendParams, 0, len(doc.Friends))
	for i, e := range doc.Friends {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("roster entry %d: %w", i+1, shared.ErrFriendNameMissing)
		}
		lastSeen := e.LastSeen
		if e.LastSeenAt != nil {
			lastSeen = timeutil.FormatLastSeen(*e.LastSeenAt, now)
		}
		params = append(params, friend.NewFriendParams{
			ID:            strings.TrimSpace(e.ID),
			Name:          e.Name,
			Username:      e.Username,
			ChillMinutes:  e.ChillMinutes,
			IsOnline:      e.Online,
			LastSeen:      lastSeen,
			MutualFriends: e.MutualFriends,
		})
	}
	return params, nil
}

// LoadRosterFile reads and parses a roster file.
func LoadRosterFile(path string, now time.Time) ([]friend.NewFriendParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data, now)
}

// FriendAdder is the part of the engine an import needs.
type FriendAdder interface {
	AddFriend(ctx context.Context, params friend.NewFriendParams) (*friend.Friend, error)
}

// Result counts what an import did.
type Result struct {
	Added   int
	Skipped int
}

// Import adds every entry, skipping ids already in the roster. It stops at
// the first other error. A persistence warning does not stop the import and
// the first one is returned with the result.
func Import(ctx context.Context, adder FriendAdder, params []friend.NewFriendParams) (Result, error) {
	var res Result
	var warning error
	for _, p := range params {
		_, err := adder.AddFriend(ctx, p)
		switch {
		case err == nil:
			res.Added++
		case shared.IsPersistenceWarning(err):
			res.Added++
			if warning == nil {
				warning = err
			}
		case errors.Is(err, shared.ErrAlreadyExists):
			res.Skipped++
		default:
			return res, fmt.Errorf("import %q: %w", p.Name, err)
		}
	}
	return res, warning
}
