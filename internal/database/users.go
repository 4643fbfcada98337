package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"jetsflare/internal/models"

	"github.com/google/uuid"
)

const userColumns = `id, uuid, nickname, tier, status, device_limit, daily_traffic_limit_mb,
        subscription_expires_at, referral_code, referred_by, telegram_id, telegram_username,
        created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.UUID,
		&u.Nickname,
		&u.Tier,
		&u.Status,
		&u.DeviceLimit,
		&u.DailyTrafficLimitMB,
		&u.ExpiresAt,
		&u.ReferralCode,
		&u.ReferredBy,
		&u.TelegramID,
		&u.TelegramUsername,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUserParams carries everything a registration needs.
type CreateUserParams struct {
	Nickname         string
	ReferralCodeUsed string
	TelegramID       sql.NullInt64
	TelegramUsername string
}

// CreateUser registers a user on the trial plan. If the supplied referral
// code resolves to an existing user, the referral edge and the referrer's
// bonus extension are applied inside the same transaction.
func (db *DB) CreateUser(ctx context.Context, p CreateUserParams) (*models.User, error) {
	now := time.Now().UTC()
	var userID int64

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		code, err := genReferralCode(ctx, func(ctx context.Context, code string) (bool, error) {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE referral_code = ?`, code).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return false, nil
			}
			return err == nil, err
		})
		if err != nil {
			return err
		}

		trialDays, err := getSettingInt(ctx, tx, models.SettingTrialDays)
		if err != nil {
			return err
		}
		freeLimit, err := getSettingInt(ctx, tx, models.SettingFreeDailyTrafficMB)
		if err != nil {
			return err
		}
		freeDevices, err := getSettingInt(ctx, tx, models.SettingFreeDeviceLimit)
		if err != nil {
			return err
		}

		var referredBy sql.NullInt64
		if p.ReferralCodeUsed != "" {
			var referrerID int64
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM users WHERE referral_code = ?`, p.ReferralCodeUsed).Scan(&referrerID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if err == nil {
				referredBy = sql.NullInt64{Int64: referrerID, Valid: true}
			}
		}

		expires := now.AddDate(0, 0, int(trialDays))
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users
                (uuid, nickname, tier, status, device_limit, daily_traffic_limit_mb,
                 subscription_expires_at, referral_code, referred_by,
                 telegram_id, telegram_username, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), p.Nickname, models.TierFree, models.UserActive,
			freeDevices, freeLimit, expires, code, referredBy,
			p.TelegramID, p.TelegramUsername, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		userID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		if referredBy.Valid {
			if err := applyReferralBonus(ctx, tx, referredBy.Int64, userID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(ctx, userID)
}

// applyReferralBonus inserts the (referrer, referred) edge and extends the
// referrer once. A pre-existing edge means the bonus was already granted,
// so the whole step turns into a no-op.
func applyReferralBonus(ctx context.Context, tx *sql.Tx, referrerID, referredID int64, now time.Time) error {
	bonus, err := getSettingInt(ctx, tx, models.SettingReferralBonusDays)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO referrals (referrer_id, referred_id, bonus_days, applied_at)
         VALUES (?, ?, ?, ?)`,
		referrerID, referredID, bonus, now)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}

	return extendSubscription(ctx, tx, referrerID, bonus, now)
}

// genReferralCode samples codes from the fixed alphabet until one is free,
// bounded by ReferralCodeAttempts. The existence check is injected so the
// loop stays independent of the storage behind it.
func genReferralCode(ctx context.Context, taken func(ctx context.Context, code string) (bool, error)) (string, error) {
	buf := make([]byte, models.ReferralCodeLength)
	for attempt := 0; attempt < models.ReferralCodeAttempts; attempt++ {
		for i := range buf {
			buf[i] = models.ReferralCodeAlphabet[rand.IntN(len(models.ReferralCodeAlphabet))]
		}
		code := string(buf)

		exists, err := taken(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeGeneration
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(db.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (db *DB) GetUserByUUID(ctx context.Context, userUUID string) (*models.User, error) {
	return scanUser(db.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uuid = ?`, userUUID))
}

func (db *DB) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return scanUser(db.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = ?`, code))
}

func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return scanUser(db.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID))
}

func (db *DB) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []any

	if f.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, f.Tier)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += ` AND (nickname LIKE ? OR referral_code LIKE ? OR uuid LIKE ?)`
		s := "%" + f.Search + "%"
		args = append(args, s, s, s)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID, &u.UUID, &u.Nickname, &u.Tier, &u.Status,
			&u.DeviceLimit, &u.DailyTrafficLimitMB, &u.ExpiresAt,
			&u.ReferralCode, &u.ReferredBy, &u.TelegramID, &u.TelegramUsername,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) CountUsers(ctx context.Context, tier, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM users WHERE 1=1`
	var args []any
	if tier != "" {
		query += ` AND tier = ?`
		args = append(args, tier)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}

	var n int64
	err := db.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// updatableUserFields is the allow-list for partial updates. The uuid,
// referral code and referred_by are immutable after creation.
var updatableUserFields = map[string]bool{
	"nickname":                true,
	"tier":                    true,
	"status":                  true,
	"device_limit":            true,
	"daily_traffic_limit_mb":  true,
	"subscription_expires_at": true,
	"telegram_id":             true,
	"telegram_username":       true,
}

// UpdateUserFields applies a partial update. Keys outside the allow-list
// are ignored, not rejected.
func (db *DB) UpdateUserFields(ctx context.Context, id int64, fields map[string]any) error {
	var sets []string
	var args []any
	for key, value := range fields {
		if !updatableUserFields[key] {
			continue
		}
		sets = append(sets, key+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := db.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExtendSubscription adds days on top of max(now, current expiry). An
// expired subscription therefore restarts from the moment of extension.
func (db *DB) ExtendSubscription(ctx context.Context, id int64, days int64) error {
	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return extendSubscription(ctx, tx, id, days, now)
	})
}

func extendSubscription(ctx context.Context, tx *sql.Tx, id int64, days int64, now time.Time) error {
	var current sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT subscription_expires_at FROM users WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	base := now
	if current.Valid && current.Time.After(now) {
		base = current.Time
	}
	newExpiry := base.AddDate(0, 0, int(days))

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET subscription_expires_at = ?, updated_at = ? WHERE id = ?`,
		newExpiry, now, id)
	if err != nil {
		return fmt.Errorf("extend subscription: %w", err)
	}
	return nil
}

// SetTier switches the tier and forces its derived limits: vip gets
// unlimited daily traffic and the vip device budget, free gets the free
// defaults back.
func (db *DB) SetTier(ctx context.Context, id int64, tier string) error {
	if tier != models.TierFree && tier != models.TierVIP {
		return fmt.Errorf("unknown tier %q", tier)
	}
	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return setTier(ctx, tx, id, tier, now)
	})
}

func setTier(ctx context.Context, tx *sql.Tx, id int64, tier string, now time.Time) error {
	var trafficLimit, deviceLimit int64
	var err error

	if tier == models.TierVIP {
		trafficLimit = 0
		deviceLimit, err = getSettingInt(ctx, tx, models.SettingVIPDeviceLimit)
	} else {
		trafficLimit, err = getSettingInt(ctx, tx, models.SettingFreeDailyTrafficMB)
		if err == nil {
			deviceLimit, err = getSettingInt(ctx, tx, models.SettingFreeDeviceLimit)
		}
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET tier = ?, daily_traffic_limit_mb = ?, device_limit = ?, updated_at = ?
         WHERE id = ?`,
		tier, trafficLimit, deviceLimit, now, id)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and everything owned by them: referral edges
// on both sides, traffic rows and payments. One transaction, no orphans.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			query string
			args  []any
		}{
			{`DELETE FROM referrals WHERE referrer_id = ? OR referred_id = ?`, []any{id, id}},
			{`DELETE FROM daily_traffic WHERE user_id = ?`, []any{id}},
			{`DELETE FROM traffic_logs WHERE user_id = ?`, []any{id}},
			{`DELETE FROM payments WHERE user_id = ?`, []any{id}},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, step.args...); err != nil {
				return fmt.Errorf("delete user cascade: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
