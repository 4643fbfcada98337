package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupAndPrune(t *testing.T) {
	tempDir := t.TempDir()
	logger := zerolog.Nop()

	db, err := NewDB(filepath.Join(tempDir, "panel.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	createTestUser(t, db, "backed up")

	backupDir := filepath.Join(tempDir, "backups")
	path, err := db.Backup(context.Background(), backupDir)
	require.NoError(t, err)
	assert.FileExists(t, path)

	// The snapshot must be a usable database with the data in it.
	snap, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer snap.Close()

	n, err := snap.CountUsers(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Fresh snapshot survives a prune.
	removed, err := db.PruneBackups(backupDir, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.FileExists(t, path)

	// An old snapshot does not.
	old := filepath.Join(backupDir, "backup_20200101_000000.db")
	require.NoError(t, os.WriteFile(old, []byte("stale"), 0o644))
	oldTime := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	removed, err = db.PruneBackups(backupDir, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)

	// Unrelated files are never touched.
	other := filepath.Join(backupDir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(other, oldTime, oldTime))
	removed, err = db.PruneBackups(backupDir, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.FileExists(t, other)
}

func TestPruneBackups_ZeroRetentionKeepsAll(t *testing.T) {
	db := setupTestDB(t)

	removed, err := db.PruneBackups(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
