package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetme/progression-engine/internal/application/engine"
	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/challenge"
	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/infrastructure/messaging"
	"github.com/meetme/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/meetme/progression-engine/pkg/timeutil"
)

// Wednesday of ISO week 42, 2026.
var wednesday = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	store *flakyStore
	clock *timeutil.ManualClock
	rec   *messaging.Recorder
	eng   *engine.Engine
}

// flakyStore is a memory store whose writes can be made to fail.
type flakyStore struct {
	*memory.Store

	mu       sync.Mutex
	failSets bool
	failGets bool
}

func (s *flakyStore) setFailing(sets, gets bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSets, s.failGets = sets, gets
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.failGets
	s.mu.Unlock()
	if fail {
		return nil, errors.New("disk unavailable")
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failSets
	s.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func (f *fixture) open(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.Open(f.ctx, engine.Deps{
		Store:  f.store,
		Sink:   f.rec,
		Clock:  f.clock,
		Logger: quietLogger(),
		NewID:  sequentialIDs(),
	}, engine.Config{PointsPerMinute: 1, ProfileName: "Tester"})
	require.NoError(t, err)
	return eng
}

// newFixture opens an engine over an empty store with three friends.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: &flakyStore{Store: memory.NewStore()},
		clock: timeutil.NewManualClock(wednesday, time.UTC),
		rec:   messaging.NewRecorder(),
	}
	f.eng = f.open(t)

	for _, p := range []friend.NewFriendParams{
		{ID: "anna", Name: "Anna Schmidt", Username: "anna_s", IsOnline: true},
		{ID: "max", Name: "Max Müller", Username: "max_m", ChillMinutes: 40},
		{ID: "lisa", Name: "Lisa Weber", Username: "lisa_w", ChillMinutes: 120},
	} {
		_, err := f.eng.AddFriend(f.ctx, p)
		require.NoError(t, err)
	}
	f.rec.Reset()
	return f
}

// ══════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP
// ══════════════════════════════════════════════════════════════════════════════

func TestOpen_FreshStoreBootstraps(t *testing.T) {
	f := newFixture(t)

	snap, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, "Tester", snap.Profile.Name)
	assert.Equal(t, 0, snap.TotalPoints)
	assert.Equal(t, 1, snap.Level)
	assert.Equal(t, "Chill Beginner", snap.LevelTitle)
	assert.Len(t, snap.Friends, 3)
	require.Len(t, snap.Challenges, 3)
	for _, c := range snap.Challenges {
		assert.Zero(t, c.CurrentProgress)
	}
	assert.True(t, snap.WeeklyStats.WeekStart.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, snap.ActiveSession)
	assert.Empty(t, f.rec.Events())

	for _, key := range []string{blob.KeyFriends, blob.KeyChallenges, blob.KeyWeeklyStats, blob.KeyUserProfile} {
		_, err := f.store.Store.Get(f.ctx, key)
		assert.NoError(t, err, key)
	}
}

func TestOpen_SeedsDefaultRoster(t *testing.T) {
	eng, err := engine.Open(context.Background(), engine.Deps{
		Store:  memory.NewStore(),
		Clock:  timeutil.NewManualClock(wednesday, nil),
		Logger: quietLogger(),
	}, engine.DefaultConfig())
	require.NoError(t, err)

	friends := eng.Friends()
	require.Len(t, friends, 5)
	assert.Equal(t, "Anna Schmidt", friends[0].Name)

	top, ok := eng.TopFriend()
	require.True(t, ok)
	assert.Equal(t, "Lisa Weber", top.Name)
}

func TestOpen_StoreReadFailure(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore()}
	store.setFailing(false, true)

	_, err := engine.Open(context.Background(), engine.Deps{Store: store, Logger: quietLogger()}, engine.DefaultConfig())
	assert.Error(t, err)

	_, err = engine.Open(context.Background(), engine.Deps{}, engine.DefaultConfig())
	assert.Error(t, err)
}

func TestOpen_CorruptBlobFallsBack(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.AwardPoints(f.ctx, 250)
	require.NoError(t, err)

	require.NoError(t, f.store.Set(f.ctx, blob.KeyChallenges, []byte("{not json")))
	require.NoError(t, f.store.Set(f.ctx, blob.KeyUserProfile, []byte("[]")))

	reopened := f.open(t)

	assert.Equal(t, 250, reopened.TotalPoints())
	p := reopened.Profile()
	assert.Equal(t, "Tester", p.Name)
	assert.Equal(t, 250, p.TotalPoints)

	challenges, err := reopened.Challenges(f.ctx)
	require.NoError(t, err)
	assert.Len(t, challenges, 3)
	assert.Len(t, reopened.Friends(), 3)
}

func TestOpen_DropsSessionWithUnknownParticipants(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)

	require.NoError(t, f.store.Set(f.ctx, blob.KeyFriends, []byte("{broken")))
	reopened := f.open(t)

	_, ok := reopened.ActiveSession()
	assert.False(t, ok)
	_, err = f.store.Get(f.ctx, blob.KeyActiveSession)
	assert.True(t, blob.IsNotFound(err))

	_, err = reopened.EndSession(f.ctx, 30, 30)
	assert.True(t, shared.IsInvalidOperation(err))
	stats, err := reopened.WeeklyStats(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.UniqueFriendsCount())
}

// ══════════════════════════════════════════════════════════════════════════════
// POINT AWARDS
// ══════════════════════════════════════════════════════════════════════════════

func TestAwardPoints_ZeroToThousand(t *testing.T) {
	f := newFixture(t)

	res, err := f.eng.AwardPoints(f.ctx, 1000)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 0, res.OldTotal)
	assert.Equal(t, 1000, res.NewTotal)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.Equal(t, 10, res.NewLevel)

	assert.Equal(t, []shared.EventType{
		shared.EventPointsEarned,
		shared.EventLevelUp,
		shared.EventAchievementUnlocked,
		shared.EventAchievementUnlocked,
		shared.EventAchievementUnlocked,
	}, f.rec.Types())

	levelUp := f.rec.OfType(shared.EventLevelUp)[0].(shared.LevelUpEvent)
	assert.Equal(t, 1, levelUp.PreviousLevel)
	assert.Equal(t, 10, levelUp.NewLevel)
	assert.Equal(t, []string{"level_5", "level_10"}, levelUp.Milestones)
	assert.Equal(t, "Perfect Ten!", levelUp.Achievement)

	var tags []string
	for _, e := range f.rec.OfType(shared.EventAchievementUnlocked) {
		tags = append(tags, e.(shared.AchievementUnlockedEvent).Tag)
	}
	assert.Equal(t, []string{"points_100", "points_500", "points_1000"}, tags)

	assert.Equal(t, 1000, f.eng.TotalPoints())
	assert.Equal(t, 1000, f.eng.Profile().TotalPoints)
}

func TestAwardPoints_NoLevelChange(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.AwardPoints(f.ctx, 40)
	require.NoError(t, err)
	_, err = f.eng.AwardPoints(f.ctx, 40)
	require.NoError(t, err)

	assert.Equal(t, []shared.EventType{shared.EventPointsEarned, shared.EventPointsEarned}, f.rec.Types())

	_, err = f.eng.AwardPoints(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 80, f.eng.TotalPoints())
}

func TestAwardPoints_Negative(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.AwardPoints(f.ctx, 50)
	require.NoError(t, err)
	f.rec.Reset()

	_, err = f.eng.AwardPoints(f.ctx, -10)
	require.Error(t, err)
	assert.True(t, shared.IsInvalidOperation(err))
	assert.Equal(t, 50, f.eng.TotalPoints())
	assert.Empty(t, f.rec.Events())
}

func TestAwardPoints_PrivacyModeIsNoOp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.SetPrivacyMode(f.ctx, true))
	assert.True(t, f.eng.PrivacyMode())

	res, err := f.eng.AwardPoints(f.ctx, 500)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, 0, f.eng.TotalPoints())
	assert.Empty(t, f.rec.Events())

	require.NoError(t, f.eng.SetPrivacyMode(f.ctx, false))
	res, err = f.eng.AwardPoints(f.ctx, 500)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 500, f.eng.TotalPoints())
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestSession_StartWhileActive(t *testing.T) {
	f := newFixture(t)

	id, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)

	_, err = f.eng.StartSession(f.ctx, []string{"max"}, false)
	require.Error(t, err)
	assert.True(t, shared.IsInvalidOperation(err))

	active, ok := f.eng.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, id, active.ID)
	assert.Equal(t, []string{"anna"}, active.ParticipantIDs)
}

func TestSession_InvalidStarts(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, nil, false)
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)

	_, err = f.eng.StartSession(f.ctx, []string{"anna", "ghost"}, false)
	assert.ErrorIs(t, err, shared.ErrUnknownParticipant)
	assert.True(t, shared.IsInvalidOperation(err))

	_, ok := f.eng.ActiveSession()
	assert.False(t, ok)
	assert.Empty(t, f.rec.Events())
}

func TestSession_TickAndEndWithoutActive(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.RecordTick(f.ctx)
	assert.True(t, shared.IsInvalidOperation(err))

	_, err = f.eng.EndSession(f.ctx, 10, 10)
	assert.ErrorIs(t, err, shared.ErrNoActiveSession)

	_, err = f.eng.EndAccruedSession(f.ctx)
	assert.True(t, shared.IsInvalidOperation(err))
}

func TestSession_PrivateEndChangesNothing(t *testing.T) {
	f := newFixture(t)
	before, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)

	_, err = f.eng.StartSession(f.ctx, []string{"anna"}, true)
	require.NoError(t, err)

	res, err := f.eng.EndSession(f.ctx, 30, 30)
	require.NoError(t, err)
	assert.True(t, res.Private)
	assert.Zero(t, res.PointsAwarded)

	after, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalPoints, after.TotalPoints)
	assert.Equal(t, before.Profile.TotalSessions, after.Profile.TotalSessions)
	assert.Equal(t, before.Profile.TotalChillMinutes, after.Profile.TotalChillMinutes)
	assert.Equal(t, before.WeeklyStats.SessionsCount, after.WeeklyStats.SessionsCount)
	assert.Equal(t, before.Friends[0].ChillMinutes, after.Friends[0].ChillMinutes)
	assert.Nil(t, after.ActiveSession)

	assert.Equal(t, []shared.EventType{shared.EventSessionStarted, shared.EventSessionEnded}, f.rec.Types())
	ended := f.rec.OfType(shared.EventSessionEnded)[0].(shared.SessionEndedEvent)
	assert.True(t, ended.Private)
}

func TestSession_TwoParticipants(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"anna", "max"}, false)
	require.NoError(t, err)
	f.clock.Advance(45 * time.Minute)

	res, err := f.eng.EndSession(f.ctx, 45, 45)
	require.NoError(t, err)
	assert.Equal(t, 45, res.PointsAwarded)

	anna, err := f.eng.Friend("anna")
	require.NoError(t, err)
	assert.Equal(t, 45, anna.ChillMinutes)
	maxF, err := f.eng.Friend("max")
	require.NoError(t, err)
	assert.Equal(t, 85, maxF.ChillMinutes)
	lisa, err := f.eng.Friend("lisa")
	require.NoError(t, err)
	assert.Equal(t, 120, lisa.ChillMinutes)

	stats, err := f.eng.WeeklyStats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SessionsCount)
	assert.Equal(t, 45, stats.TotalMinutes)
	assert.Equal(t, 2, stats.UniqueFriendsCount())
	assert.Equal(t, 45, stats.PointsEarned)

	p := f.eng.Profile()
	assert.Equal(t, 1, p.TotalSessions)
	assert.Equal(t, 45, p.TotalChillMinutes)
	assert.Equal(t, 45, p.TotalPoints)

	challenges, err := f.eng.Challenges(f.ctx)
	require.NoError(t, err)
	progress := map[challenge.Type]int{}
	for _, c := range challenges {
		progress[c.Type] = c.CurrentProgress
	}
	assert.Equal(t, 2, progress[challenge.TypeDistinctFriends])
	assert.Equal(t, 45, progress[challenge.TypeTotalMinutes])
	assert.Equal(t, 1, progress[challenge.TypeSessions])

	assert.Equal(t, []shared.EventType{
		shared.EventSessionStarted,
		shared.EventSessionEnded,
		shared.EventPointsEarned,
	}, f.rec.Types())

	_, ok := f.eng.ActiveSession()
	assert.False(t, ok)
}

func TestSession_TicksAccrueUntilEnd(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"lisa"}, false)
	require.NoError(t, err)

	var last engine.TickResult
	for i := 0; i < 3; i++ {
		last, err = f.eng.RecordTick(f.ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, last.DurationMinutes)
	assert.Equal(t, 3, last.PointsEarned)
	assert.Equal(t, 0, f.eng.TotalPoints())

	res, err := f.eng.EndAccruedSession(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.DurationMinutes)
	assert.Equal(t, 3, f.eng.TotalPoints())
}

func TestSession_PrivateTicksEarnNothingByDefault(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"lisa"}, true)
	require.NoError(t, err)
	res, err := f.eng.RecordTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DurationMinutes)
	assert.Zero(t, res.PointsEarned)
}

func TestSession_NegativeFiguresAreClamped(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)
	res, err := f.eng.EndSession(f.ctx, -5, -20)
	require.NoError(t, err)

	assert.Zero(t, res.DurationMinutes)
	assert.Zero(t, res.PointsEarned)
	assert.Equal(t, 0, f.eng.TotalPoints())
	assert.Equal(t, 1, f.eng.Profile().TotalSessions)
}

func TestSession_PrivacyModeAtEndChangesNothing(t *testing.T) {
	f := newFixture(t)
	before, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)

	_, err = f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)
	require.NoError(t, f.eng.SetPrivacyMode(f.ctx, true))

	res, err := f.eng.EndSession(f.ctx, 30, 30)
	require.NoError(t, err)
	assert.True(t, res.Private)
	assert.Zero(t, res.PointsAwarded)

	after, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalPoints, after.TotalPoints)
	assert.Equal(t, before.Profile.TotalSessions, after.Profile.TotalSessions)
	assert.Equal(t, before.Profile.TotalChillMinutes, after.Profile.TotalChillMinutes)
	assert.Equal(t, before.Friends, after.Friends)
	assert.Equal(t, before.WeeklyStats, after.WeeklyStats)
	assert.Equal(t, before.Challenges, after.Challenges)
	assert.Nil(t, after.ActiveSession)

	ended := f.rec.OfType(shared.EventSessionEnded)[0].(shared.SessionEndedEvent)
	assert.True(t, ended.Private)
	assert.Empty(t, f.rec.OfType(shared.EventPointsEarned))
}

func TestSession_DuplicateParticipantsCollapse(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"anna", "anna", "max"}, false)
	require.NoError(t, err)
	active, _ := f.eng.ActiveSession()
	assert.Equal(t, []string{"anna", "max"}, active.ParticipantIDs)

	_, err = f.eng.EndSession(f.ctx, 10, 10)
	require.NoError(t, err)
	anna, _ := f.eng.Friend("anna")
	assert.Equal(t, 10, anna.ChillMinutes)
}

// ══════════════════════════════════════════════════════════════════════════════
// SELECTION
// ══════════════════════════════════════════════════════════════════════════════

func TestSelection(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "nobody", f.eng.SelectedNames())
	require.NoError(t, f.eng.Select("anna"))
	assert.Equal(t, "Anna", f.eng.SelectedNames())
	require.NoError(t, f.eng.Select("max"))
	require.NoError(t, f.eng.Select("max"))
	assert.Equal(t, "Anna & Max", f.eng.SelectedNames())

	selected, err := f.eng.Toggle("lisa")
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, "Anna, Max & Lisa", f.eng.SelectedNames())

	selected, err = f.eng.Toggle("max")
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Len(t, f.eng.Selected(), 2)

	assert.ErrorIs(t, f.eng.Select("ghost"), shared.ErrNotFound)

	_, err = f.eng.StartSelectedSession(f.ctx)
	require.NoError(t, err)
	active, _ := f.eng.ActiveSession()
	assert.Equal(t, []string{"anna", "lisa"}, active.ParticipantIDs)

	_, err = f.eng.EndSession(f.ctx, 5, 5)
	require.NoError(t, err)
	assert.Empty(t, f.eng.Selected())
}

func TestSelection_EmptyCannotStart(t *testing.T) {
	f := newFixture(t)
	f.eng.ClearSelection()

	_, err := f.eng.StartSelectedSession(f.ctx)
	assert.ErrorIs(t, err, shared.ErrNoParticipants)
}

func TestAddFriend_Duplicate(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.AddFriend(f.ctx, friend.NewFriendParams{ID: "anna", Name: "Anna Again"})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = f.eng.AddFriend(f.ctx, friend.NewFriendParams{Name: "  "})
	assert.True(t, shared.IsValidation(err))

	added, err := f.eng.AddFriend(f.ctx, friend.NewFriendParams{Name: "Tom Fischer"})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Len(t, f.eng.Friends(), 4)
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEK ROLLOVER
// ══════════════════════════════════════════════════════════════════════════════

func TestEnsureCurrentWeek_Idempotent(t *testing.T) {
	f := newFixture(t)

	rolled, err := f.eng.EnsureCurrentWeek(f.ctx)
	require.NoError(t, err)
	assert.False(t, rolled)

	f.clock.Advance(7 * 24 * time.Hour)
	rolled, err = f.eng.EnsureCurrentWeek(f.ctx)
	require.NoError(t, err)
	assert.True(t, rolled)

	first, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)

	rolled, err = f.eng.EnsureCurrentWeek(f.ctx)
	require.NoError(t, err)
	assert.False(t, rolled)

	second, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, first.WeeklyStats, second.WeeklyStats)
	assert.Equal(t, first.Challenges, second.Challenges)
	assert.Len(t, f.rec.OfType(shared.EventWeekRolledOver), 1)
}

func TestRollover_AcrossWeekBoundary(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"anna", "max", "lisa"}, false)
	require.NoError(t, err)
	_, err = f.eng.EndSession(f.ctx, 70, 70)
	require.NoError(t, err)

	challenges, err := f.eng.Challenges(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, challenge.CompletedCount(challenges))
	oldIDs := map[string]bool{}
	for _, c := range challenges {
		oldIDs[c.ID] = true
	}

	// Sunday 23:59 is still the same week.
	f.clock.Set(time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC))
	stats, err := f.eng.WeeklyStats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SessionsCount)

	f.clock.Set(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	stats, err = f.eng.WeeklyStats(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.SessionsCount)
	assert.Zero(t, stats.TotalMinutes)
	assert.True(t, stats.WeekStart.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))

	challenges, err = f.eng.Challenges(f.ctx)
	require.NoError(t, err)
	require.Len(t, challenges, 3)
	for _, c := range challenges {
		assert.Zero(t, c.CurrentProgress)
		assert.False(t, oldIDs[c.ID])
	}

	rolled := f.rec.OfType(shared.EventWeekRolledOver)
	require.Len(t, rolled, 1)
	ev := rolled[0].(shared.WeekRolledOverEvent)
	assert.Equal(t, 1, ev.SessionsCount)
	assert.Equal(t, 70, ev.TotalMinutes)
	assert.Equal(t, []string{"anna", "lisa", "max"}, ev.UniqueFriends)

	// Lifetime figures survive.
	assert.Equal(t, 70, f.eng.TotalPoints())
	anna, _ := f.eng.Friend("anna")
	assert.Equal(t, 70, anna.ChillMinutes)
}

func TestRollover_SessionEndingInNewWeek(t *testing.T) {
	f := newFixture(t)

	f.clock.Set(time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC))
	_, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 19, 0, 30, 0, 0, time.UTC))
	_, err = f.eng.EndSession(f.ctx, 60, 60)
	require.NoError(t, err)

	stats, err := f.eng.WeeklyStats(f.ctx)
	require.NoError(t, err)
	assert.True(t, stats.WeekStart.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, stats.SessionsCount)
	assert.Equal(t, 60, stats.TotalMinutes)
}

func TestRollover_OnOpen(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)
	_, err = f.eng.EndSession(f.ctx, 30, 30)
	require.NoError(t, err)

	f.clock.Advance(14 * 24 * time.Hour)
	f.rec.Reset()
	reopened := f.open(t)

	assert.Len(t, f.rec.OfType(shared.EventWeekRolledOver), 1)
	stats, err := reopened.WeeklyStats(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.SessionsCount)
	assert.Equal(t, 30, reopened.TotalPoints())
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE
// ══════════════════════════════════════════════════════════════════════════════

func TestPersistence_RoundTrip(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"anna", "max"}, false)
	require.NoError(t, err)
	_, err = f.eng.EndSession(f.ctx, 45, 150)
	require.NoError(t, err)
	require.NoError(t, f.eng.SetPrivacyMode(f.ctx, true))
	_, err = f.eng.StartSession(f.ctx, []string{"lisa"}, false)
	require.NoError(t, err)
	_, err = f.eng.RecordTick(f.ctx)
	require.NoError(t, err)

	want, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)

	reopened := f.open(t)
	got, err := reopened.Snapshot(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, want.Profile, got.Profile)
	assert.Equal(t, want.TotalPoints, got.TotalPoints)
	assert.Equal(t, want.PrivacyMode, got.PrivacyMode)
	assert.Equal(t, want.Friends, got.Friends)
	assert.Equal(t, want.Challenges, got.Challenges)
	assert.Equal(t, want.WeeklyStats, got.WeeklyStats)
	assert.Equal(t, want.ActiveSession, got.ActiveSession)
	assert.Empty(t, got.SelectedIDs)

	// The restored session can be finished.
	res, err := reopened.EndAccruedSession(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DurationMinutes)
}

func TestPersistence_RecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)
	_, err = f.eng.EndSession(f.ctx, 25, 25)
	require.NoError(t, err)

	first, err := f.eng.Challenges(f.ctx)
	require.NoError(t, err)
	reopened := f.open(t)
	again, err := reopened.Challenges(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestPersistence_WarningKeepsMemoryState(t *testing.T) {
	f := newFixture(t)
	f.store.setFailing(true, false)

	res, err := f.eng.AwardPoints(f.ctx, 120)
	require.Error(t, err)
	assert.True(t, shared.IsPersistenceWarning(err))
	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.False(t, shared.IsInvalidOperation(err))
	assert.True(t, res.Applied)
	assert.Equal(t, 120, f.eng.TotalPoints())
	assert.Len(t, f.rec.OfType(shared.EventAchievementUnlocked), 1)

	id, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	assert.True(t, shared.IsPersistenceWarning(err))
	assert.NotEmpty(t, id)

	f.store.setFailing(false, false)
	require.NoError(t, f.eng.Save(f.ctx))

	reopened := f.open(t)
	assert.Equal(t, 120, reopened.TotalPoints())
	_, ok := reopened.ActiveSession()
	assert.True(t, ok)
}

func TestPersistence_SessionKeyRemovedOnEnd(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)
	_, err = f.store.Get(f.ctx, blob.KeyActiveSession)
	require.NoError(t, err)

	_, err = f.eng.EndSession(f.ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.store.Get(f.ctx, blob.KeyActiveSession)
	assert.True(t, blob.IsNotFound(err))
}

func TestSinkPanicDoesNotBreakEngine(t *testing.T) {
	eng, err := engine.Open(context.Background(), engine.Deps{
		Store:  memory.NewStore(),
		Sink:   shared.EventSinkFunc(func(shared.Event) { panic("listener bug") }),
		Clock:  timeutil.NewManualClock(wednesday, nil),
		Logger: quietLogger(),
	}, engine.DefaultConfig())
	require.NoError(t, err)

	res, err := eng.AwardPoints(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 100, eng.TotalPoints())
}

// ══════════════════════════════════════════════════════════════════════════════
// RESET
// ══════════════════════════════════════════════════════════════════════════════

func TestReset(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.AwardPoints(f.ctx, 300)
	require.NoError(t, err)
	require.NoError(t, f.eng.SetPrivacyMode(f.ctx, true))
	_, err = f.eng.StartSession(f.ctx, []string{"anna"}, false)
	require.NoError(t, err)

	require.NoError(t, f.eng.Reset(f.ctx))

	snap, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalPoints)
	assert.False(t, snap.PrivacyMode)
	assert.Nil(t, snap.ActiveSession)
	assert.Empty(t, snap.Friends)
	assert.Len(t, snap.Challenges, 3)

	_, err = f.store.Get(f.ctx, blob.KeyActiveSession)
	assert.True(t, blob.IsNotFound(err))

	reopened := f.open(t)
	assert.Zero(t, reopened.TotalPoints())
	assert.False(t, reopened.PrivacyMode())
}
