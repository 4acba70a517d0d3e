// Package engine is the progression engine: the single owner of the
// user's points, roster, chill sessions, weekly stats and challenges.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/challenge"
	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/profile"
	"github.com/meetme/progression-engine/internal/domain/session"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/domain/weekly"
	"github.com/meetme/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains the engine's point policy and bootstrap settings.
type Config struct {
	// PointsPerMinute is awarded for every ticked minute of a session.
	PointsPerMinute int

	// PrivateMultiplier scales per-minute points of private sessions.
	// Private sessions never persist anything, so this only affects the
	// running figure shown while the session is open.
	PrivateMultiplier float64

	// ProfileName is used when no profile is stored yet.
	ProfileName string

	// SeedDefaultRoster fills an empty roster with the demo friends.
	SeedDefaultRoster bool
}

// DefaultConfig returns the default point policy.
func DefaultConfig() Config {
	return Config{
		PointsPerMinute:   1,
		PrivateMultiplier: 0,
		ProfileName:       profile.DefaultName,
		SeedDefaultRoster: true,
	}
}

// Deps are the engine's collaborators.
type Deps struct {
	Store  blob.Store
	Sink   shared.EventSink
	Clock  timeutil.Clock
	Logger *slog.Logger

	// NewID generates entity ids. Defaults to random UUIDs.
	NewID func() string
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine owns all progression state. Every public operation runs to
// completion under one lock; events are dispatched after the lock is
// released so sinks may call read-only queries.
type Engine struct {
	mu sync.Mutex

	store   blob.Store
	sink    shared.EventSink
	clock   timeutil.Clock
	logger  *slog.Logger
	newID   func() string
	tracker *challenge.Tracker
	cfg     Config

	roster      *friend.Roster
	challenges  []*challenge.Challenge
	stats       *weekly.Stats
	profile     *profile.UserProfile
	totalPoints int
	privacy     bool
	active      *session.Session
	selected    []string

	// revision orders blob writes; saveMu and savedRev keep an older
	// snapshot from overwriting a newer one.
	revision uint64
	saveMu   sync.Mutex
	savedRev map[string]uint64
}

// Open creates an engine and restores its state from the store.
// Missing or corrupt blobs fall back to fresh defaults. Only store read
// failures are returned.
func Open(ctx context.Context, deps Deps, cfg Config) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if deps.Sink == nil {
		deps.Sink = shared.NopSink{}
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.NewSystemClock(nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if cfg.PointsPerMinute < 0 {
		cfg.PointsPerMinute = 0
	}
	if cfg.PrivateMultiplier < 0 {
		cfg.PrivateMultiplier = 0
	}

	e := &Engine{
		store:    deps.Store,
		sink:     deps.Sink,
		clock:    deps.Clock,
		logger:   deps.Logger.With("component", "progression_engine"),
		newID:    deps.NewID,
		tracker:  challenge.NewTracker(deps.NewID),
		cfg:      cfg,
		savedRev: make(map[string]uint64),
	}

	if err := e.load(ctx); err != nil {
		return nil, err
	}

	err := e.apply(ctx, func(c *change) error {
		e.bootstrapLocked(c)
		return nil
	})
	if err != nil {
		e.logger.Warn("initial save failed", "error", err)
	}
	return e, nil
}

// bootstrapLocked fills in whatever the store did not provide.
func (e *Engine) bootstrapLocked(c *change) {
	now := e.now()

	if e.profile == nil {
		e.profile = profile.New(e.cfg.ProfileName, now)
		c.touch(blob.KeyUserProfile)
	}
	if e.profile.TotalPoints != e.totalPoints {
		e.profile.TotalPoints = e.totalPoints
		c.touch(blob.KeyUserProfile)
	}

	if e.roster == nil {
		e.roster = friend.NewRoster()
	}
	if e.roster.Len() == 0 && e.cfg.SeedDefaultRoster {
		for _, params := range friend.DefaultRosterParams() {
			params.ID = e.newID()
			f, err := friend.NewFriend(params)
			if err != nil {
				e.logger.Error("invalid default friend", "name", params.Name, "error", err)
				continue
			}
			_ = e.roster.Add(f)
		}
		c.touch(blob.KeyFriends)
	}

	// A restored session must only name friends that still exist.
	if e.active != nil {
		for _, id := range e.active.ParticipantIDs {
			if !e.roster.Has(id) {
				e.logger.Warn("dropping restored session with unknown participant",
					"session_id", e.active.ID, "friend_id", id)
				e.active = nil
				c.touch(blob.KeyActiveSession)
				break
			}
		}
	}

	if e.stats == nil {
		e.stats = weekly.NewStats(e.currentWeekStart())
		c.touch(blob.KeyWeeklyStats)
	}
	if len(e.challenges) == 0 {
		e.challenges = e.tracker.Regenerate()
		c.touch(blob.KeyChallenges)
	}

	e.rolloverLocked(c)
	e.tracker.Recompute(e.challenges, e.stats)
}

// ──────────────────────────────────────────────────────────────────────────────
// Change tracking
// ──────────────────────────────────────────────────────────────────────────────

// change collects what one operation emitted and which keys it dirtied.
type change struct {
	events []shared.Event
	dirty  []string
	seen   map[string]struct{}
}

func newChange() *change {
	return &change{seen: make(map[string]struct{})}
}

func (c *change) emit(event shared.Event) {
	c.events = append(c.events, event)
}

func (c *change) touch(keys ...string) {
	for _, k := range keys {
		if _, ok := c.seen[k]; ok {
			continue
		}
		c.seen[k] = struct{}{}
		c.dirty = append(c.dirty, k)
	}
}

// apply runs fn under the lock and snapshots the keys it dirtied. If fn
// fails nothing is dispatched or saved, so fn must validate before it mutates.
// Events go to the sink after the lock is released, then the snapshot is saved.
func (e *Engine) apply(ctx context.Context, fn func(c *change) error) error {
	e.mu.Lock()
	c := newChange()
	if err := fn(c); err != nil {
		e.mu.Unlock()
		return err
	}
	writes, encErr := e.encodeLocked(c.dirty)
	e.mu.Unlock()

	e.dispatch(c.events)

	if encErr != nil {
		return encErr
	}
	return e.persist(ctx, writes)
}

// dispatch hands events to the sink, recovering from sink panics.
func (e *Engine) dispatch(events []shared.Event) {
	for _, event := range events {
		e.notify(event)
	}
}

func (e *Engine) notify(event shared.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event sink panicked", "event_type", event.EventType(), "panic", r)
		}
	}()
	e.sink.Notify(event)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// now returns the clock time in UTC so persisted timestamps round-trip exactly.
func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

func (e *Engine) currentWeekStart() time.Time {
	return e.clock.StartOfWeek(e.clock.Now()).UTC()
}

// pointsForMinute applies the point policy to one ticked minute.
func (e *Engine) pointsForMinute(private bool) int {
	if !private {
		return e.cfg.PointsPerMinute
	}
	return int(math.Round(float64(e.cfg.PointsPerMinute) * e.cfg.PrivateMultiplier))
}
