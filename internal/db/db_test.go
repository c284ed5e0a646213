package db_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/lifetrack/backend/internal/db"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	d, err := db.Open(dir)
	require.NoError(t, err)
	defer d.Close()

	_, err = os.Stat(filepath.Join(dir, db.FileName))
	assert.NoError(t, err, "database file should exist")

	var walMode string
	require.NoError(t, d.QueryRow("PRAGMA journal_mode").Scan(&walMode))
	assert.Equal(t, "wal", walMode)

	var fk int
	require.NoError(t, d.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	assert.Equal(t, 1, d.Stats().MaxOpenConnections)
}

func TestOpen_InvalidDataDir(t *testing.T) {
	_, err := db.Open("/dev/null/cannot/exist")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	d, err := db.Open(t.TempDir())
	require.NoError(t, err)
	defer d.Close()

	v, dirty, err := d.SchemaVersion()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	res, err := d.Migrate()
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Dirty)
	assert.Equal(t, uint(1), res.Version)

	res, err = d.Migrate()
	require.NoError(t, err)
	assert.False(t, res.Changed, "second run has nothing to apply")

	for _, table := range []string{
		"tracking_recurrings", "tracking_responses", "tracking_events", "journal_entries",
		"stock_products", "stock_routines", "work_sessions", "media_blobs",
		"sync_queue", "conflict_log",
	} {
		var name string
		err := d.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestSchema_RejectsInconsistentDeleteState(t *testing.T) {
	d, err := db.Open(t.TempDir())
	require.NoError(t, err)
	defer d.Close()
	_, err = d.Migrate()
	require.NoError(t, err)

	_, err = d.Exec(`INSERT INTO journal_entries (id, user_id, is_deleted, deleted_at, created_at, updated_at, data)
		VALUES ('a', 'u', 0, 5, 1, 1, '{}')`)
	assert.Error(t, err, "active row with a deletion time must be rejected")

	_, err = d.Exec(`INSERT INTO journal_entries (id, user_id, is_deleted, deleted_at, created_at, updated_at, data)
		VALUES ('b', 'u', 1, NULL, 1, 1, '{}')`)
	assert.Error(t, err, "deleted row without a deletion time must be rejected")
}
