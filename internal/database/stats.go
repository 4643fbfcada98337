package database

import (
	"context"
	"fmt"
	"time"

	"jetsflare/internal/models"
)

// DashboardStats gathers the admin dashboard aggregates in one call.
func (db *DB) DashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	var s models.DashboardStats
	var err error

	if s.TotalUsers, err = db.CountUsers(ctx, "", ""); err != nil {
		return nil, err
	}
	if s.FreeUsers, err = db.CountUsers(ctx, models.TierFree, ""); err != nil {
		return nil, err
	}
	if s.VIPUsers, err = db.CountUsers(ctx, models.TierVIP, ""); err != nil {
		return nil, err
	}
	if s.BlockedUsers, err = db.CountUsers(ctx, "", models.UserBlocked); err != nil {
		return nil, err
	}

	err = db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users
         WHERE status = ?
           AND (subscription_expires_at IS NULL OR subscription_expires_at > ?)`,
		models.UserActive, now.UTC()).Scan(&s.ActiveUsers)
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}

	if err = db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&s.NodesTotal); err != nil {
		return nil, fmt.Errorf("nodes total: %w", err)
	}
	err = db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE status = ?`, models.NodeOnline).Scan(&s.NodesOnline)
	if err != nil {
		return nil, fmt.Errorf("nodes online: %w", err)
	}

	if s.RevenueTotal, err = db.PaidRevenue(ctx, nil); err != nil {
		return nil, err
	}
	cutoff := now.AddDate(0, 0, -30)
	if s.Revenue30d, err = db.PaidRevenue(ctx, &cutoff); err != nil {
		return nil, err
	}

	return &s, nil
}
