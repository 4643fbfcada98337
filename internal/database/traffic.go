package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jetsflare/internal/models"
)

// RecordTraffic ingests one node report. Entries with malformed
// identifiers or a zero total are skipped, not rejected: a batch can mix
// valid counters with stale identifiers from a node that has not refreshed
// its client list yet. Returns the number of entries actually recorded.
//
// The daily upsert is additive, so reports from many nodes commute and can
// arrive in any order.
func (db *DB) RecordTraffic(ctx context.Context, nodeID string, report models.TrafficReport) (int, error) {
	now := time.Now().UTC()
	day := models.TrafficDay(now)
	recorded := 0

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for email, entry := range report {
			userID, ok := models.ParseClientEmail(email)
			if !ok {
				db.logger.Debug().Str("email", email).Str("node_id", nodeID).Msg("skipping malformed client identifier")
				continue
			}

			total := entry.Uplink + entry.Downlink
			if total <= 0 {
				continue
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO traffic_logs (user_id, node_id, uplink_bytes, downlink_bytes, recorded_at)
                 VALUES (?, ?, ?, ?, ?)`,
				userID, nodeID, entry.Uplink, entry.Downlink, now); err != nil {
				return fmt.Errorf("insert traffic log: %w", err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO daily_traffic (user_id, date, total_bytes)
                 VALUES (?, ?, ?)
                 ON CONFLICT(user_id, date) DO UPDATE SET
                    total_bytes = total_bytes + excluded.total_bytes`,
				userID, day, total); err != nil {
				return fmt.Errorf("upsert daily traffic: %w", err)
			}

			recorded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recorded, nil
}

// GetTodayTraffic returns the user's byte total for the current UTC day,
// zero when nothing was recorded yet.
func (db *DB) GetTodayTraffic(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := db.db.QueryRowContext(ctx,
		`SELECT total_bytes FROM daily_traffic WHERE user_id = ? AND date = ?`,
		userID, models.TrafficDay(time.Now().UTC())).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get today traffic: %w", err)
	}
	return total, nil
}

// ActiveClients returns the identifiers nodes should authorize right now:
// active users with a live (or absent) expiry, minus free-tier users that
// burned through today's quota. The quota cutoff applies to the free tier
// only; vip users are never filtered on traffic, whatever their stored
// limit says. Computed fresh on every call because traffic keeps
// accumulating between pulls.
func (db *DB) ActiveClients(ctx context.Context, now time.Time) ([]models.Client, error) {
	day := models.TrafficDay(now)
	rows, err := db.db.QueryContext(ctx,
		`SELECT u.id, u.uuid
         FROM users u
         LEFT JOIN daily_traffic dt ON dt.user_id = u.id AND dt.date = ?
         WHERE u.status = ?
           AND (u.subscription_expires_at IS NULL OR u.subscription_expires_at > ?)
           AND (u.tier = ?
                OR u.daily_traffic_limit_mb = 0
                OR COALESCE(dt.total_bytes, 0) < u.daily_traffic_limit_mb * 1048576)
         ORDER BY u.id`,
		day, models.UserActive, now.UTC(), models.TierVIP)
	if err != nil {
		return nil, fmt.Errorf("active clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var id int64
		var userUUID string
		if err := rows.Scan(&id, &userUUID); err != nil {
			return nil, err
		}
		clients = append(clients, models.Client{
			ID:    userUUID,
			Email: models.ClientEmail(id),
		})
	}
	return clients, rows.Err()
}
