package database

import (
	"context"
	"testing"
	"time"

	"jetsflare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmPayment_SettlesOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "buyer")
	baseExpiry := user.ExpiresAt.Time

	_, err := db.CreatePayment(ctx, user.ID, 5.0, "USDT", 30, "inv-100")
	require.NoError(t, err)

	applied, err := db.ConfirmPayment(ctx, "inv-100")
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierVIP, got.Tier)
	assert.Equal(t, int64(0), got.DailyTrafficLimitMB)
	assert.WithinDuration(t, baseExpiry.AddDate(0, 0, 30), got.ExpiresAt.Time, 5*time.Second)

	payment, err := db.GetPaymentByInvoice(ctx, "inv-100")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, payment.Status)
	assert.True(t, payment.PaidAt.Valid)

	// Replay: no further extension, no error.
	applied, err = db.ConfirmPayment(ctx, "inv-100")
	require.NoError(t, err)
	assert.False(t, applied)

	unchanged, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ExpiresAt.Time, unchanged.ExpiresAt.Time)
}

func TestConfirmPayment_UnknownInvoiceIsNoop(t *testing.T) {
	db := setupTestDB(t)

	applied, err := db.ConfirmPayment(context.Background(), "no-such-invoice")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestCreatePayment_DuplicateInvoiceRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "dup")
	_, err := db.CreatePayment(ctx, user.ID, 5.0, "USDT", 30, "inv-dup")
	require.NoError(t, err)

	_, err = db.CreatePayment(ctx, user.ID, 5.0, "USDT", 30, "inv-dup")
	assert.Error(t, err)
}

func TestListUserPaymentsAndRevenue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "regular")
	_, err := db.CreatePayment(ctx, user.ID, 5.0, "USDT", 30, "inv-a")
	require.NoError(t, err)
	_, err = db.CreatePayment(ctx, user.ID, 7.5, "TON", 30, "inv-b")
	require.NoError(t, err)

	_, err = db.ConfirmPayment(ctx, "inv-b")
	require.NoError(t, err)

	payments, err := db.ListUserPayments(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	// Newest first.
	assert.Equal(t, "inv-b", payments[0].InvoiceID)

	// Only the confirmed payment counts as revenue.
	revenue, err := db.PaidRevenue(ctx, nil)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, revenue, 0.001)

	future := time.Now().Add(time.Hour)
	revenue, err = db.PaidRevenue(ctx, &future)
	require.NoError(t, err)
	assert.InDelta(t, 0, revenue, 0.001)
}

func TestDashboardStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "free one")
	vip := createTestUser(t, db, "vip one")
	require.NoError(t, db.SetTier(ctx, vip.ID, models.TierVIP))

	blocked := createTestUser(t, db, "bad one")
	require.NoError(t, db.UpdateUserFields(ctx, blocked.ID, map[string]any{"status": models.UserBlocked}))

	_, err := db.UpsertNode(ctx, RegisterNodeParams{ServerIP: "10.2.0.1"})
	require.NoError(t, err)

	_, err = db.CreatePayment(ctx, vip.ID, 5.0, "USDT", 30, "inv-stats")
	require.NoError(t, err)
	_, err = db.ConfirmPayment(ctx, "inv-stats")
	require.NoError(t, err)

	stats, err := db.DashboardStats(ctx, time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.FreeUsers)
	assert.Equal(t, int64(1), stats.VIPUsers)
	assert.Equal(t, int64(1), stats.BlockedUsers)
	assert.Equal(t, int64(2), stats.ActiveUsers)
	assert.Equal(t, int64(1), stats.NodesTotal)
	assert.Equal(t, int64(1), stats.NodesOnline)
	assert.InDelta(t, 5.0, stats.RevenueTotal, 0.001)
	assert.InDelta(t, 5.0, stats.Revenue30d, 0.001)
}
