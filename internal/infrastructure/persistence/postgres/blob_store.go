package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BLOB STORE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultNamespace is used when none is configured.
const DefaultNamespace = "default"

// BlobStore implements blob.Store on the engine_blobs table.
type BlobStore struct {
	conn      *Connection
	namespace string
}

// NewBlobStore creates a store for one namespace. Run the Migrator first.
func NewBlobStore(conn *Connection, namespace string) *BlobStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &BlobStore{conn: conn, namespace: namespace}
}

// Get implements blob.Store.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, blob.ErrKeyEmpty
	}

	var value []byte
	err := s.conn.QueryRow(ctx,
		`SELECT value FROM engine_blobs WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&value)
	if err != nil {
		if IsNoRows(err) {
			return nil, blob.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get %q: %w", key, err)
	}
	return value, nil
}

// Set implements blob.Store.
func (s *BlobStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return blob.ErrKeyEmpty
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO engine_blobs (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("postgres: set %q: %w", key, err)
	}
	return nil
}

// Delete implements blob.Store.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return blob.ErrKeyEmpty
	}
	_, err := s.conn.Exec(ctx,
		`DELETE FROM engine_blobs WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete %q: %w", key, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEK ARCHIVE
// ══════════════════════════════════════════════════════════════════════════════

// ArchivedWeek is one rolled-over weekly bucket.
type ArchivedWeek struct {
	WeekStart     time.Time
	SessionsCount int
	TotalMinutes  int
	UniqueFriends []string
	PointsEarned  int
	ArchivedAt    time.Time
}

// WeekArchive keeps rolled-over weekly buckets. Subscribe Handle to the
// event bus; the engine itself keeps no history.
type WeekArchive struct {
	conn      *Connection
	namespace string
	timeout   time.Duration
}

// NewWeekArchive creates an archive for one namespace.
func NewWeekArchive(conn *Connection, namespace string) *WeekArchive {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &WeekArchive{conn: conn, namespace: namespace, timeout: 5 * time.Second}
}

// Handle stores WeekRolledOver events and ignores everything else.
// Archiving the same week twice keeps the latest figures.
func (a *WeekArchive) Handle(event shared.Event) error {
	rolled, ok := event.(shared.WeekRolledOverEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	friends := rolled.UniqueFriends
	if friends == nil {
		friends = []string{}
	}

	_, err := a.conn.Exec(ctx, `
		INSERT INTO week_archive (namespace, week_start, sessions_count, total_minutes, unique_friends, points_earned)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace, week_start) DO UPDATE
		SET sessions_count = EXCLUDED.sessions_count,
		    total_minutes = EXCLUDED.total_minutes,
		    unique_friends = EXCLUDED.unique_friends,
		    points_earned = EXCLUDED.points_earned,
		    archived_at = NOW()
	`, a.namespace, rolled.PreviousWeekStart, rolled.SessionsCount, rolled.TotalMinutes, friends, rolled.PointsEarned)
	if err != nil {
		return fmt.Errorf("postgres: archive week %s: %w", rolled.PreviousWeekStart.Format(time.DateOnly), err)
	}
	return nil
}

// Recent returns up to limit archived weeks, newest first.
func (a *WeekArchive) Recent(ctx context.Context, limit int) ([]ArchivedWeek, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := a.conn.Query(ctx, `
		SELECT week_start, sessions_count, total_minutes, unique_friends, points_earned, archived_at
		FROM week_archive
		WHERE namespace = $1
		ORDER BY week_start DESC
		LIMIT $2
	`, a.namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query week archive: %w", err)
	}
	defer rows.Close()

	var weeks []ArchivedWeek
	for rows.Next() {
		var w ArchivedWeek
		if err := rows.Scan(&w.WeekStart, &w.SessionsCount, &w.TotalMinutes, &w.UniqueFriends, &w.PointsEarned, &w.ArchivedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan archived week: %w", err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}
