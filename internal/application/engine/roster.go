package engine

import (
	"context"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER
// ══════════════════════════════════════════════════════════════════════════════

// AddFriend adds a friend to the roster. An empty params.ID gets a new id.
func (e *Engine) AddFriend(ctx context.Context, params friend.NewFriendParams) (*friend.Friend, error) {
	var added *friend.Friend
	err := e.apply(ctx, func(c *change) error {
		if params.ID == "" {
			params.ID = e.newID()
		}
		if e.roster.Has(params.ID) {
			return shared.ErrFriendExists
		}
		f, err := friend.NewFriend(params)
		if err != nil {
			return err
		}
		if err := e.roster.Add(f); err != nil {
			return err
		}
		c.touch(blob.KeyFriends)
		added = f.Clone()

		e.logger.Info("friend added", "friend_id", f.ID, "name", f.Name)
		return nil
	})
	if err != nil && !shared.IsPersistenceWarning(err) {
		return nil, err
	}
	return added, err
}

// ══════════════════════════════════════════════════════════════════════════════
// SELECTION
// The working set of friends picked for the next session. It is not
// persisted and is cleared whenever a session ends.
// ══════════════════════════════════════════════════════════════════════════════

// Select adds a friend to the selection. Selecting twice is a no-op.
func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.roster.Has(id) {
		return shared.ErrFriendNotFound
	}
	for _, s := range e.selected {
		if s == id {
			return nil
		}
	}
	e.selected = append(e.selected, id)
	return nil
}

// Deselect removes a friend from the selection.
func (e *Engine) Deselect(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.selected {
		if s == id {
			e.selected = append(e.selected[:i:i], e.selected[i+1:]...)
			return
		}
	}
}

// Toggle selects an unselected friend or deselects a selected one.
// It reports whether the friend is selected afterwards.
func (e *Engine) Toggle(id string) (bool, error) {
	e.mu.Lock()
	for _, s := range e.selected {
		if s == id {
			e.mu.Unlock()
			e.Deselect(id)
			return false, nil
		}
	}
	e.mu.Unlock()

	if err := e.Select(id); err != nil {
		return false, err
	}
	return true, nil
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = nil
}

// Selected returns copies of the selected friends in selection order.
func (e *Engine) Selected() []*friend.Friend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedLocked()
}

// SelectedNames summarizes the selection by first names.
func (e *Engine) SelectedNames() string {
	return friend.JoinFirstNames(e.Selected())
}

func (e *Engine) selectedLocked() []*friend.Friend {
	out := make([]*friend.Friend, 0, len(e.selected))
	for _, id := range e.selected {
		if f, ok := e.roster.Get(id); ok {
			out = append(out, f.Clone())
		}
	}
	return out
}
