package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup writes a consistent snapshot of the store into dir and returns
// the snapshot path. VACUUM INTO works against the live WAL database, so
// no writer lock is needed. Triggered synchronously from the admin API;
// the engine schedules nothing itself.
func (db *DB) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("backup_%s.db", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if strings.ContainsRune(path, '\'') {
		return "", fmt.Errorf("backup path must not contain quotes: %s", path)
	}

	if _, err := db.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", path)); err != nil {
		return "", fmt.Errorf("vacuum into: %w", err)
	}

	db.logger.Info().Str("path", path).Msg("backup completed")
	return path, nil
}

// PruneBackups deletes snapshots older than retentionDays. Zero retention
// keeps everything.
func (db *DB) PruneBackups(dir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "backup_") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
