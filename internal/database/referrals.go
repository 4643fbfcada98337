package database

import (
	"context"
	"fmt"

	"jetsflare/internal/models"
)

// ReferralCount returns how many users the given user has brought in.
func (db *DB) ReferralCount(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("referral count: %w", err)
	}
	return n, nil
}

// TopReferrers builds the admin leaderboard: users with at least one
// referral, ordered by referral count.
func (db *DB) TopReferrers(ctx context.Context, limit int) ([]models.ReferralStat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.db.QueryContext(ctx,
		`SELECT u.id, u.nickname, u.referral_code,
                COUNT(r.id) AS ref_count,
                COALESCE(SUM(r.bonus_days), 0) AS total_bonus
         FROM users u
         JOIN referrals r ON r.referrer_id = u.id
         GROUP BY u.id
         ORDER BY ref_count DESC, u.id
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}
	defer rows.Close()

	var stats []models.ReferralStat
	for rows.Next() {
		var s models.ReferralStat
		if err := rows.Scan(&s.UserID, &s.Nickname, &s.ReferralCode, &s.Referrals, &s.BonusDays); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
