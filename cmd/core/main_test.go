// Package main tests for the lifetrack command line.
package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/lifetrack/backend/internal/config"
	"github.com/kimhsiao/lifetrack/backend/internal/db"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
	"github.com/kimhsiao/lifetrack/backend/internal/session"
)

// =====================================================
// Helpers
// =====================================================

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LIFETRACK_TIMEZONE", "UTC")
	t.Setenv("LIFETRACK_LOGGING_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seed creates a daily tracker on 2026-01-01 and returns its id. The store
// is closed before returning so the command can open it.
func seed(t *testing.T, dataDir string, deleted bool) string {
	t.Helper()
	d, err := db.Open(dataDir)
	require.NoError(t, err)
	defer func() { require.NoError(t, d.Close()) }()
	_, err = d.Migrate()
	require.NoError(t, err)

	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store := db.NewStore(d,
		db.WithSession(session.Static("u1")),
		db.WithClock(func() time.Time { return created }))
	repos := db.NewRepositories(store)

	ctx := context.Background()
	rec, err := repos.TrackingRecurrings.Create(ctx, &models.TrackingRecurring{
		Name:         "Walk",
		ResponseType: models.ResponseBoolean,
		Recurrence:   models.Recurrence{RecurrenceType: recurrence.Daily},
		IsActive:     true,
	})
	require.NoError(t, err)
	if deleted {
		require.NoError(t, repos.TrackingRecurrings.SoftDelete(ctx, rec.ID))
	}
	return rec.ID
}

// =====================================================
// Commands
// =====================================================

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "lifetrack v"+Version+"\n", out)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "config", "init")
	require.NoError(t, err)
	path := config.DefaultPath(dir)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8090, cfg.Server.Port)

	_, err = run(t, dir, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, dir, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigInit_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "lifetrack.toml")

	_, err := run(t, dir, "--config", path, "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDue(t *testing.T) {
	dir := t.TempDir()
	id := seed(t, dir, false)

	out, err := run(t, dir, "due", id, "--from", "2025-12-30", "--to", "2026-01-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-01", "2026-01-02", "2026-01-03"}, strings.Fields(out))
}

func TestDue_Errors(t *testing.T) {
	dir := t.TempDir()
	id := seed(t, dir, false)

	_, err := run(t, dir, "due", id, "--from", "yesterday")
	assert.ErrorContains(t, err, "invalid --from")

	_, err = run(t, dir, "due", id, "--from", "2026-01-05", "--to", "2026-01-01")
	assert.Error(t, err)

	_, err = run(t, dir, "due", "missing", "--from", "2026-01-01", "--to", "2026-01-02")
	assert.Error(t, err)

	_, err = run(t, dir, "due")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, false)

	out, err := run(t, dir, "stats", "--from", "2026-01-01", "--to", "2026-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-01-01 .. 2026-01-02")
	assert.Contains(t, out, "Walk")
	assert.Contains(t, out, "0/2")
}

func TestQueue(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "queue")
	require.NoError(t, err)
	assert.Equal(t, "0 operations pending (0 failing, 0 waiting)\n", out)

	seed(t, dir, true)
	out, err = run(t, dir, "queue", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "2 operations pending")
	assert.Contains(t, out, "tracking_recurrings")
	assert.Contains(t, out, "#1 create tracking_recurrings/")
}

func TestTrashCount(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, true)

	out, err := run(t, dir, "trash", "count", "tracking_recurrings")
	require.NoError(t, err)
	assert.Equal(t, []string{"tracking_recurrings", "1"}, strings.Fields(out))

	out, err = run(t, dir, "trash", "count")
	require.NoError(t, err)
	assert.Contains(t, out, "total")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{"total", "1"}, strings.Fields(lines[len(lines)-1]))

	_, err = run(t, dir, "trash", "count", "nope")
	assert.ErrorContains(t, err, "unknown table")
}
