package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/challenge"
	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/profile"
	"github.com/meetme/progression-engine/internal/domain/session"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/domain/weekly"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOAD
// ══════════════════════════════════════════════════════════════════════════════

// load restores every collection. Absent or unparsable blobs leave the
// field nil (or zero) so bootstrapLocked installs a default.
func (e *Engine) load(ctx context.Context) error {
	var roster friend.Roster
	ok, err := e.loadKey(ctx, blob.KeyFriends, &roster)
	if err != nil {
		return err
	}
	if ok {
		e.roster = &roster
	}

	var challenges []*challenge.Challenge
	if ok, err = e.loadKey(ctx, blob.KeyChallenges, &challenges); err != nil {
		return err
	}
	if ok {
		e.challenges = validChallenges(challenges)
	}

	var stats weekly.Stats
	if ok, err = e.loadKey(ctx, blob.KeyWeeklyStats, &stats); err != nil {
		return err
	}
	if ok {
		e.stats = &stats
	}

	var p profile.UserProfile
	if ok, err = e.loadKey(ctx, blob.KeyUserProfile, &p); err != nil {
		return err
	}
	if ok {
		e.profile = &p
	}

	var points int
	if ok, err = e.loadKey(ctx, blob.KeyTotalPoints, &points); err != nil {
		return err
	}
	switch {
	case ok && points >= 0:
		e.totalPoints = points
	case e.profile != nil:
		e.totalPoints = max(e.profile.TotalPoints, 0)
	}

	var privacy bool
	if ok, err = e.loadKey(ctx, blob.KeyPrivacyMode, &privacy); err != nil {
		return err
	}
	e.privacy = ok && privacy

	var active session.Session
	if ok, err = e.loadKey(ctx, blob.KeyActiveSession, &active); err != nil {
		return err
	}
	if ok && active.IsActive() && len(active.ParticipantIDs) > 0 {
		e.active = &active
	}

	return nil
}

// loadKey decodes key into v. It reports false for an absent or corrupt
// blob and only fails when the store itself fails.
func (e *Engine) loadKey(ctx context.Context, key string, v any) (bool, error) {
	data, err := e.store.Get(ctx, key)
	if blob.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("engine: load %q: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		e.logger.Warn("discarding corrupt blob", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// validChallenges drops entries a corrupt or older blob may contain.
func validChallenges(in []*challenge.Challenge) []*challenge.Challenge {
	out := make([]*challenge.Challenge, 0, len(in))
	for _, c := range in {
		if c == nil || c.ID == "" || !c.Type.IsValid() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// SAVE
// ══════════════════════════════════════════════════════════════════════════════

type blobWrite struct {
	key    string
	data   []byte
	delete bool
	rev    uint64
}

// encodeLocked snapshots the given keys. Must hold e.mu.
func (e *Engine) encodeLocked(keys []string) ([]blobWrite, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	e.revision++
	writes := make([]blobWrite, 0, len(keys))
	for _, key := range keys {
		w := blobWrite{key: key, rev: e.revision}

		var v any
		switch key {
		case blob.KeyFriends:
			v = e.roster
		case blob.KeyChallenges:
			v = e.challenges
		case blob.KeyWeeklyStats:
			v = e.stats
		case blob.KeyUserProfile:
			v = e.profile
		case blob.KeyTotalPoints:
			v = e.totalPoints
		case blob.KeyPrivacyMode:
			v = e.privacy
		case blob.KeyActiveSession:
			if e.active == nil {
				w.delete = true
				writes = append(writes, w)
				continue
			}
			v = e.active
		default:
			return nil, shared.NewPersistenceWarning(key, fmt.Errorf("unknown key"))
		}

		data, err := json.Marshal(v)
		if err != nil {
			return nil, shared.NewPersistenceWarning(key, err)
		}
		w.data = data
		writes = append(writes, w)
	}
	return writes, nil
}

// persist writes snapshots best-effort. A write older than one already
// saved for the same key is skipped. Failures are logged and the first is
// returned as a PersistenceWarning; nothing is retried.
func (e *Engine) persist(ctx context.Context, writes []blobWrite) error {
	if len(writes) == 0 {
		return nil
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	var first error
	for _, w := range writes {
		if w.rev < e.savedRev[w.key] {
			continue
		}

		var err error
		if w.delete {
			err = e.store.Delete(ctx, w.key)
		} else {
			err = e.store.Set(ctx, w.key, w.data)
		}
		if err != nil {
			e.logger.Warn("save failed", "key", w.key, "error", err)
			if first == nil {
				first = shared.NewPersistenceWarning(w.key, err)
			}
			continue
		}
		e.savedRev[w.key] = w.rev
	}
	return first
}

// Save writes the complete state, for callers that want to retry after a
// PersistenceWarning.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	writes, err := e.encodeLocked(blob.AllKeys)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return e.persist(ctx, writes)
}
