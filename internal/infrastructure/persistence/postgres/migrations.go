package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ENGINE BLOBS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per engine key. The namespace lets several users share a database.
CREATE TABLE IF NOT EXISTS engine_blobs (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value BYTEA NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (namespace, key),
    CONSTRAINT non_empty_key CHECK (key <> '')
);
`

const migration001Down = `
DROP TABLE IF EXISTS engine_blobs;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: WEEK ARCHIVE
// ══════════════════════════════════════════════════════════════════════════════

// Rolled-over weekly buckets, written by the archive listener.
const migration002Up = `
CREATE TABLE IF NOT EXISTS week_archive (
    namespace TEXT NOT NULL,
    week_start TIMESTAMP WITH TIME ZONE NOT NULL,
    sessions_count INTEGER NOT NULL DEFAULT 0,
    total_minutes INTEGER NOT NULL DEFAULT 0,
    unique_friends TEXT[] NOT NULL DEFAULT '{}',
    points_earned INTEGER NOT NULL DEFAULT 0,
    archived_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (namespace, week_start),
    CONSTRAINT valid_counters CHECK (sessions_count >= 0 AND total_minutes >= 0 AND points_earned >= 0)
);

CREATE INDEX IF NOT EXISTS idx_week_archive_recent ON week_archive(namespace, week_start DESC);
`

const migration002Down = `
DROP INDEX IF EXISTS idx_week_archive_recent;
DROP TABLE IF EXISTS week_archive;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_engine_blobs",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_week_archive",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
