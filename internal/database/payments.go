package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jetsflare/internal/models"
)

// CreatePayment stores a pending payment against an external invoice id.
// The invoice id is unique, so a replayed gateway response cannot produce
// a second confirmable row.
func (db *DB) CreatePayment(ctx context.Context, userID int64, amount float64, currency string, days int64, invoiceID string) (int64, error) {
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO payments (user_id, amount, currency, invoice_id, status, days_added, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, amount, currency, invoiceID, models.PaymentPending, days, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return res.LastInsertId()
}

// ConfirmPayment settles a pending invoice exactly once: mark paid, extend
// the subscription by the stored day count and upgrade the user to vip.
// Replays return applied=false because the row is no longer pending. The
// whole transition is one transaction.
func (db *DB) ConfirmPayment(ctx context.Context, invoiceID string) (applied bool, err error) {
	now := time.Now().UTC()
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		var paymentID, userID, days int64
		row := tx.QueryRowContext(ctx,
			`SELECT id, user_id, days_added FROM payments
             WHERE invoice_id = ? AND status = ?`,
			invoiceID, models.PaymentPending)
		if err := row.Scan(&paymentID, &userID, &days); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil // unknown or already paid: no-op
			}
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, paid_at = ? WHERE id = ?`,
			models.PaymentPaid, now, paymentID); err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}

		if err := extendSubscription(ctx, tx, userID, days, now); err != nil {
			return err
		}
		if err := setTier(ctx, tx, userID, models.TierVIP, now); err != nil {
			return err
		}

		applied = true
		return nil
	})
	return applied, err
}

func (db *DB) GetPaymentByInvoice(ctx context.Context, invoiceID string) (*models.Payment, error) {
	var p models.Payment
	err := db.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, currency, invoice_id, status, days_added, paid_at, created_at
         FROM payments WHERE invoice_id = ?`, invoiceID).Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.InvoiceID,
		&p.Status, &p.DaysAdded, &p.PaidAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) ListUserPayments(ctx context.Context, userID int64) ([]models.Payment, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, user_id, amount, currency, invoice_id, status, days_added, paid_at, created_at
         FROM payments WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.InvoiceID,
			&p.Status, &p.DaysAdded, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// PaidRevenue sums confirmed payments, optionally limited to those paid
// after the given cutoff.
func (db *DB) PaidRevenue(ctx context.Context, since *time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = ?`
	args := []any{models.PaymentPaid}
	if since != nil {
		query += ` AND paid_at > ?`
		args = append(args, since.UTC())
	}

	var total float64
	err := db.db.QueryRowContext(ctx, query, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("paid revenue: %w", err)
	}
	return total, nil
}
