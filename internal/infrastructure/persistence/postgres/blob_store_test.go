package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/shared"
)

// newTestConnection connects to CHILL_TEST_DATABASE_URL and migrates, or skips.
func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv("CHILL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHILL_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := NewConnection(ctx, url, DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))
	return conn
}

func TestBlobStore_GetSetDelete(t *testing.T) {
	conn := newTestConnection(t)
	ctx := context.Background()
	s := NewBlobStore(conn, "test-"+uuid.NewString())

	_, err := s.Get(ctx, blob.KeyWeeklyStats)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	require.NoError(t, s.Set(ctx, blob.KeyWeeklyStats, []byte(`{"sessionsCount":1}`)))
	require.NoError(t, s.Set(ctx, blob.KeyWeeklyStats, []byte(`{"sessionsCount":2}`)))
	got, err := s.Get(ctx, blob.KeyWeeklyStats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionsCount":2}`, string(got))

	other := NewBlobStore(conn, "test-"+uuid.NewString())
	_, err = other.Get(ctx, blob.KeyWeeklyStats)
	assert.True(t, blob.IsNotFound(err))

	require.NoError(t, s.Delete(ctx, blob.KeyWeeklyStats))
	require.NoError(t, s.Delete(ctx, blob.KeyWeeklyStats))
	_, err = s.Get(ctx, blob.KeyWeeklyStats)
	assert.True(t, blob.IsNotFound(err))
}

func TestBlobStore_EmptyKey(t *testing.T) {
	s := NewBlobStore(nil, "")
	ctx := context.Background()

	_, err := s.Get(ctx, "")
	assert.ErrorIs(t, err, blob.ErrKeyEmpty)
	assert.ErrorIs(t, s.Set(ctx, "", []byte("x")), blob.ErrKeyEmpty)
	assert.ErrorIs(t, s.Delete(ctx, ""), blob.ErrKeyEmpty)
	assert.Equal(t, DefaultNamespace, s.namespace)
}

func TestWeekArchive(t *testing.T) {
	conn := newTestConnection(t)
	ctx := context.Background()
	archive := NewWeekArchive(conn, "test-"+uuid.NewString())

	week1 := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	week2 := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	week3 := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	require.NoError(t, archive.Handle(shared.NewWeekRolledOverEvent(week1, week2, 2, 50, []string{"anna"}, 50, week2)))
	require.NoError(t, archive.Handle(shared.NewWeekRolledOverEvent(week2, week3, 1, 30, nil, 0, week3)))
	require.NoError(t, archive.Handle(shared.NewPointsEarnedEvent(10, 10, week3)))

	weeks, err := archive.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.True(t, weeks[0].WeekStart.Equal(week2))
	assert.Equal(t, 30, weeks[0].TotalMinutes)
	assert.Empty(t, weeks[0].UniqueFriends)
	assert.Equal(t, []string{"anna"}, weeks[1].UniqueFriends)
}

func TestWeekArchive_IgnoresOtherEvents(t *testing.T) {
	archive := NewWeekArchive(nil, "")
	assert.NoError(t, archive.Handle(shared.NewPointsEarnedEvent(1, 1, time.Now())))
}

func TestMigrator_StatusAndRollback(t *testing.T) {
	conn := newTestConnection(t)
	ctx := context.Background()
	m := NewMigrator(conn)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, len(GetMigrations()))
	for _, mig := range status {
		assert.True(t, mig.IsApplied, "migration %d", mig.Version)
	}

	require.NoError(t, m.Rollback(ctx))
	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[0].IsApplied)
	assert.False(t, status[len(status)-1].IsApplied)

	require.NoError(t, m.Migrate(ctx))
	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[len(status)-1].IsApplied)
}
