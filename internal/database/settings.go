package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"jetsflare/internal/models"
)

func (db *DB) seedDefaultSettings(ctx context.Context) error {
	for key, value := range models.DefaultSettings {
		if _, err := db.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
			return err
		}
	}
	return nil
}

// GetSetting returns the stored value, falling back to the compiled-in
// default when the key is absent.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, db.db, key)
}

func getSetting(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func getSettingInt(ctx context.Context, q querier, key string) (int64, error) {
	raw, err := getSetting(ctx, q, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return n, nil
}

func (db *DB) GetSettingInt(ctx context.Context, key string) (int64, error) {
	return getSettingInt(ctx, db.db, key)
}

func (db *DB) GetSettingFloat(ctx context.Context, key string) (float64, error) {
	raw, err := getSetting(ctx, db.db, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not a number: %w", key, err)
	}
	return f, nil
}

func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// AllSettings returns defaults overlaid with stored values.
func (db *DB) AllSettings(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(models.DefaultSettings))
	for k, v := range models.DefaultSettings {
		out[k] = v
	}

	rows, err := db.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
