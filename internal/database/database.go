package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound marks a missing user, node or payment.
	ErrNotFound = errors.New("not found")

	// ErrCodeGeneration means the referral code retry budget ran out.
	// With a 36^8 code space this is effectively unreachable.
	ErrCodeGeneration = errors.New("referral code generation exhausted")
)

// DB is the shared store. SQLite in WAL mode: many readers, one writer,
// writes queued behind busy_timeout instead of failing.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every pool connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	store := &DB{db: db, logger: logger}
	if err := store.seedDefaultSettings(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed settings: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return store, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id                      INTEGER PRIMARY KEY AUTOINCREMENT,
            uuid                    TEXT NOT NULL UNIQUE,
            nickname                TEXT NOT NULL,
            tier                    TEXT NOT NULL DEFAULT 'free',
            status                  TEXT NOT NULL DEFAULT 'active',
            device_limit            INTEGER NOT NULL DEFAULT 2,
            daily_traffic_limit_mb  INTEGER NOT NULL DEFAULT 1024,
            subscription_expires_at DATETIME,
            referral_code           TEXT NOT NULL UNIQUE,
            referred_by             INTEGER REFERENCES users(id),
            telegram_id             INTEGER UNIQUE,
            telegram_username       TEXT NOT NULL DEFAULT '',
            created_at              DATETIME NOT NULL,
            updated_at              DATETIME NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS nodes (
            id                  TEXT PRIMARY KEY,
            node_name           TEXT NOT NULL,
            server_ip           TEXT NOT NULL,
            cf_domain           TEXT NOT NULL DEFAULT '',
            country_code        TEXT NOT NULL DEFAULT 'XX',
            country_name        TEXT NOT NULL DEFAULT 'Unknown',
            city                TEXT NOT NULL DEFAULT '',
            isp                 TEXT NOT NULL DEFAULT '',
            protocols           TEXT NOT NULL DEFAULT '["vless-ws-tls"]',
            xray_version        TEXT NOT NULL DEFAULT '',
            vless_link          TEXT NOT NULL DEFAULT '',
            vless_link_template TEXT NOT NULL DEFAULT '',
            ws_path             TEXT NOT NULL DEFAULT '/ws',
            status              TEXT NOT NULL DEFAULT 'online',
            last_seen           DATETIME,
            installed_at        TEXT NOT NULL DEFAULT '',
            created_at          DATETIME NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS traffic_logs (
            id              INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id         INTEGER NOT NULL REFERENCES users(id),
            node_id         TEXT NOT NULL,
            uplink_bytes    INTEGER NOT NULL DEFAULT 0,
            downlink_bytes  INTEGER NOT NULL DEFAULT 0,
            recorded_at     DATETIME NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS daily_traffic (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id     INTEGER NOT NULL REFERENCES users(id),
            date        TEXT NOT NULL,
            total_bytes INTEGER NOT NULL DEFAULT 0,
            UNIQUE(user_id, date)
        )`,

		`CREATE TABLE IF NOT EXISTS payments (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id     INTEGER NOT NULL REFERENCES users(id),
            amount      REAL NOT NULL,
            currency    TEXT NOT NULL DEFAULT 'USDT',
            invoice_id  TEXT UNIQUE,
            status      TEXT NOT NULL DEFAULT 'pending',
            days_added  INTEGER NOT NULL DEFAULT 30,
            paid_at     DATETIME,
            created_at  DATETIME NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS referrals (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            referrer_id INTEGER NOT NULL REFERENCES users(id),
            referred_id INTEGER NOT NULL REFERENCES users(id),
            bonus_days  INTEGER NOT NULL DEFAULT 5,
            applied_at  DATETIME NOT NULL,
            UNIQUE(referrer_id, referred_id)
        )`,

		`CREATE TABLE IF NOT EXISTS settings (
            key   TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_users_uuid ON users(uuid)`,
		`CREATE INDEX IF NOT EXISTS idx_users_referral_code ON users(referral_code)`,
		`CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id)`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_user_date ON traffic_logs(user_id, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_traffic ON daily_traffic(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec %q: %w", query[:40], err)
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so settings and user
// reads can run inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn inside a transaction; any error rolls the whole unit back.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (db *DB) PingContext(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// ExecContext runs a raw statement. Used by tests and migrations.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

func (db *DB) Close() error {
	return db.db.Close()
}
