package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMap_Defaults(t *testing.T) {
	cfg, err := LoadFromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "chill", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, 1, cfg.Engine.PointsPerMinute)
	assert.Zero(t, cfg.Engine.PrivateMultiplier)
	assert.Equal(t, "Chiller", cfg.Engine.ProfileName)
	assert.True(t, cfg.Engine.SeedDefaultRoster)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "chill.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
	assert.True(t, cfg.Events.Async)
	assert.Equal(t, 256, cfg.Events.QueueSize)

	level, err := cfg.Observability.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFromMap_Overrides(t *testing.T) {
	cfg, err := LoadFromMap(map[string]string{
		"CHILL_APP_ENV":                   "production",
		"CHILL_APP_TIMEZONE":              "Europe/Berlin",
		"CHILL_ENGINE_POINTS_PER_MINUTE":  "2",
		"CHILL_ENGINE_PRIVATE_MULTIPLIER": "0.5",
		"CHILL_STORAGE_BACKEND":           "postgres",
		"CHILL_DATABASE_URL":              "postgres://chill@localhost/chill",
		"CHILL_REDIS_PUBLISH_EVENTS":      "true",
		"CHILL_LOG_LEVEL":                 "debug",
		"CHILL_LOG_FORMAT":                "json",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "Europe/Berlin", cfg.App.Location.String())
	assert.Equal(t, 2, cfg.Engine.PointsPerMinute)
	assert.InDelta(t, 0.5, cfg.Engine.PrivateMultiplier, 1e-9)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.True(t, cfg.Redis.PublishEvents)

	level, err := cfg.Observability.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFromMap_ValidationCollectsAllErrors(t *testing.T) {
	_, err := LoadFromMap(map[string]string{
		"CHILL_APP_TIMEZONE":             "Mars/Olympus",
		"CHILL_STORAGE_BACKEND":          "postgres",
		"CHILL_ENGINE_POINTS_PER_MINUTE": "-1",
		"CHILL_LOG_FORMAT":               "xml",
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "CHILL_APP_TIMEZONE")
	assert.Contains(t, msg, "CHILL_DATABASE_URL")
	assert.Contains(t, msg, "CHILL_ENGINE_POINTS_PER_MINUTE")
	assert.Contains(t, msg, "CHILL_LOG_FORMAT")
}

func TestLoadFromMap_BadValues(t *testing.T) {
	_, err := LoadFromMap(map[string]string{"CHILL_EVENTS_QUEUE_SIZE": "many"})
	assert.Error(t, err)

	_, err = LoadFromMap(map[string]string{"CHILL_STORAGE_BACKEND": "floppy"})
	assert.ErrorContains(t, err, "CHILL_STORAGE_BACKEND")

	_, err = LoadFromMap(map[string]string{"CHILL_LOG_LEVEL": "loud"})
	assert.ErrorContains(t, err, "CHILL_LOG_LEVEL")
}
