package models

import (
	"database/sql"
	"time"
)

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

type Payment struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Amount    float64      `json:"amount"`
	Currency  string       `json:"currency"`
	InvoiceID string       `json:"invoice_id"` // external gateway id, idempotency key
	Status    string       `json:"status"`     // pending, paid
	DaysAdded int64        `json:"days_added"`
	PaidAt    sql.NullTime `json:"paid_at"`
	CreatedAt time.Time    `json:"created_at"`
}

type Referral struct {
	ID         int64     `json:"id"`
	ReferrerID int64     `json:"referrer_id"`
	ReferredID int64     `json:"referred_id"`
	BonusDays  int64     `json:"bonus_days"`
	AppliedAt  time.Time `json:"applied_at"`
}

// ReferralStat is one leaderboard row.
type ReferralStat struct {
	UserID       int64  `json:"user_id"`
	Nickname     string `json:"nickname"`
	ReferralCode string `json:"referral_code"`
	Referrals    int64  `json:"referrals"`
	BonusDays    int64  `json:"bonus_days"`
}
