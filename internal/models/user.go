package models

import (
	"database/sql"
	"time"
)

const (
	TierFree = "free"
	TierVIP  = "vip"
)

const (
	UserActive  = "active"
	UserBlocked = "blocked"
)

type User struct {
	ID                  int64         `json:"id"`
	UUID                string        `json:"uuid"`
	Nickname            string        `json:"nickname"`
	Tier                string        `json:"tier"`   // free, vip
	Status              string        `json:"status"` // active, blocked
	DeviceLimit         int64         `json:"device_limit"`
	DailyTrafficLimitMB int64         `json:"daily_traffic_limit_mb"` // 0 = unlimited
	ExpiresAt           sql.NullTime  `json:"subscription_expires_at"`
	ReferralCode        string        `json:"referral_code"`
	ReferredBy          sql.NullInt64 `json:"referred_by"`
	TelegramID          sql.NullInt64 `json:"telegram_id"`
	TelegramUsername    string        `json:"telegram_username"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// DaysLeft returns whole days until the subscription expires, never negative.
// Users without an expiry are treated as unlimited (-1).
func (u *User) DaysLeft(now time.Time) int {
	if !u.ExpiresAt.Valid {
		return -1
	}
	d := int(u.ExpiresAt.Time.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether the user has an expiry in the past.
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt.Valid && !u.ExpiresAt.Time.After(now)
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Tier   string
	Status string
	Search string
	Limit  int
	Offset int
}
