package database

import (
	"context"
	"path/filepath"
	"testing"

	"jetsflare/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "panel.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestSeedDefaultSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	trial, err := db.GetSettingInt(ctx, models.SettingTrialDays)
	require.NoError(t, err)
	assert.Equal(t, int64(3), trial)

	all, err := db.AllSettings(ctx)
	require.NoError(t, err)
	for key, want := range models.DefaultSettings {
		assert.Equal(t, want, all[key], "setting %s", key)
	}
}

func TestSettings_SetAndFallback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetSetting(ctx, models.SettingTrialDays, "7"))
	got, err := db.GetSettingInt(ctx, models.SettingTrialDays)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	// Unknown keys without a default surface as empty values.
	val, err := db.GetSetting(ctx, "no_such_key")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	price, err := db.GetSettingFloat(ctx, models.SettingVIPPriceUSDT)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, price, 0.001)
}
