package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetme/progression-engine/config"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/meetme/progression-engine/pkg/timeutil"
)

// harness shares one memory store across command runs, the way a real
// backend carries state from one process to the next.
type harness struct {
	t     *testing.T
	cfg   *config.Config
	store *memory.Store
	clock *timeutil.ManualClock
	log   *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.LoadFromMap(map[string]string{
		"CHILL_STORAGE_BACKEND":            "memory",
		"CHILL_EVENTS_ASYNC":               "false",
		"CHILL_ENGINE_SEED_DEFAULT_ROSTER": "false",
		"CHILL_ENGINE_PROFILE_NAME":        "Tester",
	})
	require.NoError(t, err)

	return &harness{
		t:     t,
		cfg:   cfg,
		store: memory.NewStore(),
		clock: timeutil.NewManualClock(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC), time.UTC),
		log:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func (h *harness) open(ctx context.Context) (*app, error) {
	return openApp(ctx, h.cfg, h.log, h.clock, h.store)
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := newRootCmd(h.open)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "chill %v", args)
	return out
}

func TestCLI_SessionFlow(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.mustRun("friend", "add", "--id", "anna", "--minutes", "30", "Anna Schmidt"), "added Anna Schmidt (anna)")
	h.mustRun("friend", "add", "--id", "max", "--username", "max_m", "Max Müller")

	friends := h.mustRun("friends")
	assert.Contains(t, friends, "anna")
	assert.Contains(t, friends, "@max_m")

	assert.Contains(t, h.mustRun("session", "start", "anna", "max"), "started with Anna Schmidt & Max Müller")

	status := h.mustRun("status")
	assert.Contains(t, status, "Tester, level 1")
	assert.Contains(t, status, "active session")

	assert.Contains(t, h.mustRun("session", "tick", "-n", "3"), "3 min, 3 points so far")
	assert.Contains(t, h.mustRun("session", "end"), "session ended: 3 min, 3 points earned, 3 awarded")

	status = h.mustRun("status")
	assert.Contains(t, status, "points: 3 (197 to next level)")
	assert.NotContains(t, status, "active session")
	assert.Contains(t, status, "closest friend: Anna Schmidt (33 min")

	week := h.mustRun("week")
	assert.Contains(t, week, "week of Mon 12 Oct 2026")
	assert.Contains(t, week, "sessions: 1, minutes: 3, points: 3")
	assert.Contains(t, week, "[anna max]")
}

func TestCLI_ExplicitEndAndPrivate(t *testing.T) {
	h := newHarness(t)
	h.mustRun("friend", "add", "--id", "lisa", "Lisa Weber")

	h.mustRun("session", "start", "lisa")
	assert.Contains(t, h.mustRun("session", "end", "--duration", "45", "--points", "45"), "45 min, 45 points earned, 45 awarded")

	h.mustRun("session", "start", "--private", "lisa")
	assert.Contains(t, h.mustRun("status"), "active private session")
	assert.Contains(t, h.mustRun("session", "end", "--duration", "20", "--points", "20"), "0 awarded")
	assert.Contains(t, h.mustRun("status"), "points: 45")

	_, err := h.run("session", "end", "--accrued", "--duration", "5")
	assert.Error(t, err)
}

func TestCLI_AwardAndPrivacy(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("award", "500")
	assert.Contains(t, out, "0 -> 500 points")
	assert.Contains(t, out, "level up: 1 -> 5")
	assert.Contains(t, out, "milestone: points_500 (Chill Master!)")
	assert.Contains(t, out, "milestone: level_5 (High Five!)")

	assert.Contains(t, h.mustRun("privacy", "on"), "privacy mode on")
	assert.Contains(t, h.mustRun("award", "10"), "nothing awarded")
	assert.Contains(t, h.mustRun("status"), "privacy mode: on")
	h.mustRun("privacy", "off")
	assert.Contains(t, h.mustRun("award", "10"), "500 -> 510 points")
}

func TestCLI_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("session", "end")
	assert.True(t, shared.IsInvalidOperation(err))

	_, err = h.run("session", "tick")
	assert.True(t, shared.IsInvalidOperation(err))

	_, err = h.run("session", "start", "ghost")
	assert.True(t, shared.IsInvalidOperation(err))

	_, err = h.run("award", "-5")
	assert.True(t, shared.IsInvalidOperation(err))

	_, err = h.run("award", "lots")
	assert.Error(t, err)

	_, err = h.run("privacy", "maybe")
	assert.Error(t, err)

	_, err = h.run("reset")
	assert.ErrorContains(t, err, "--yes")

	_, err = h.run("week", "--history", "3")
	assert.ErrorContains(t, err, "postgres")

	h.mustRun("friend", "add", "--id", "anna", "Anna")
	_, err = h.run("friend", "add", "--id", "anna", "Anna again")
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestCLI_SeedChallengesReset(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
friends:
  - id: anna
    name: Anna Schmidt
    chillMinutes: 90
  - id: tom
    name: Tom Fischer
    lastSeen: 1d ago
`), 0o600))

	assert.Contains(t, h.mustRun("seed", path), "imported 2 friends, skipped 0 existing")
	assert.Contains(t, h.mustRun("seed", path), "imported 0 friends, skipped 2 existing")
	assert.Contains(t, h.mustRun("friends", "--ranking"), "Anna Schmidt")

	assert.Contains(t, h.mustRun("challenges"), "[ ]")

	h.mustRun("award", "200")
	assert.Contains(t, h.mustRun("reset", "--yes"), "reset to defaults")
	assert.Contains(t, h.mustRun("friends"), "no friends yet")
	assert.Contains(t, h.mustRun("status"), "points: 0")
}

func TestJoinNames(t *testing.T) {
	assert.Equal(t, "nobody", joinNames(nil))
	assert.Equal(t, "Anna", joinNames([]string{"Anna"}))
	assert.Equal(t, "Anna & Max", joinNames([]string{"Anna", "Max"}))
	assert.Equal(t, "Anna, Max & Lisa", joinNames([]string{"Anna", "Max", "Lisa"}))
}

func runMigrate(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	cmd := newMigrateCmd(func() (*config.Config, error) { return config.LoadFromMap(env) })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_MigrateNeedsDatabase(t *testing.T) {
	_, err := runMigrate(t, map[string]string{}, "status")
	assert.ErrorContains(t, err, "CHILL_DATABASE_URL")

	_, err = runMigrate(t, map[string]string{}, "rollback")
	assert.ErrorContains(t, err, "--yes")
}

func TestCLI_MigrateAgainstPostgres(t *testing.T) {
	url := os.Getenv("CHILL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHILL_TEST_DATABASE_URL not set")
	}
	env := map[string]string{"CHILL_DATABASE_URL": url}

	out, err := runMigrate(t, env, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	out, err = runMigrate(t, env, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "create_engine_blobs")
	assert.NotContains(t, out, "pending")

	out, err = runMigrate(t, env, "rollback", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "rolled back")

	out, err = runMigrate(t, env, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")

	_, err = runMigrate(t, env, "up")
	require.NoError(t, err)
}
