package service

import (
	"context"
	"testing"

	"jetsflare/internal/database"
	"jetsflare/internal/events"
	"jetsflare/internal/gateway"
	"jetsflare/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-memory domain.InvoiceGateway double. Invoices are
// keyed by the string form of their numeric id, matching gateway.InvoiceKey.
type fakeGateway struct {
	configured bool
	createErr  error
	nextID     int64
	invoices   map[string]*gateway.Invoice
	lastAsset  string
	lastDesc   string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		configured: true,
		nextID:     100,
		invoices:   make(map[string]*gateway.Invoice),
	}
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) CreateInvoice(_ context.Context, asset, amount, description, payload string) (*gateway.Invoice, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextID++
	g.lastAsset = asset
	g.lastDesc = description
	inv := &gateway.Invoice{
		InvoiceID: g.nextID,
		Status:    "active",
		Asset:     asset,
		Amount:    amount,
		PayURL:    "https://t.me/CryptoBot?start=fake",
		Payload:   payload,
	}
	g.invoices[gateway.InvoiceKey(inv.InvoiceID)] = inv
	return inv, nil
}

func (g *fakeGateway) GetInvoice(_ context.Context, invoiceID string) (*gateway.Invoice, error) {
	return g.invoices[invoiceID], nil
}

func (g *fakeGateway) VerifyWebhook(_ []byte, _ string) bool { return g.configured }

func (g *fakeGateway) markPaid(invoiceID string) {
	g.invoices[invoiceID].Status = gateway.InvoiceStatusPaid
}

func newPaymentService(t *testing.T) (*PaymentService, *fakeGateway, *database.DB, *events.EventBus) {
	t.Helper()
	db := setupStore(t)
	gw := newFakeGateway()
	bus := events.NewEventBus()
	logger := zerolog.Nop()
	return NewPaymentService(db, gw, bus, &logger), gw, db, bus
}

func registerUser(t *testing.T, db *database.DB, nickname string) *models.User {
	t.Helper()
	user, err := db.CreateUser(context.Background(), database.CreateUserParams{Nickname: nickname})
	require.NoError(t, err)
	return user
}

func TestStartVIPPurchase(t *testing.T) {
	svc, gw, db, _ := newPaymentService(t)
	ctx := context.Background()
	user := registerUser(t, db, "buyer")

	intent, err := svc.StartVIPPurchase(ctx, user.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "USDT", gw.lastAsset, "empty asset falls back to USDT")
	assert.Equal(t, "USDT", intent.Currency)
	assert.Equal(t, 5.0, intent.Amount)
	assert.Equal(t, int64(30), intent.Days)
	assert.NotEmpty(t, intent.PayURL)
	assert.Contains(t, gw.lastDesc, "VIP, 30 days")

	payment, err := db.GetPaymentByInvoice(ctx, intent.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, payment.UserID)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, int64(30), payment.DaysAdded)
}

func TestStartVIPPurchase_GatewayFailureLeavesNoRow(t *testing.T) {
	svc, gw, db, _ := newPaymentService(t)
	ctx := context.Background()
	user := registerUser(t, db, "buyer")

	gw.createErr = gateway.ErrUnavailable
	_, err := svc.StartVIPPurchase(ctx, user.ID, "TON")
	require.ErrorIs(t, err, gateway.ErrUnavailable)

	payments, err := db.ListUserPayments(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestStartVIPPurchase_GatewayDisabled(t *testing.T) {
	svc, gw, db, _ := newPaymentService(t)
	user := registerUser(t, db, "buyer")

	gw.configured = false
	_, err := svc.StartVIPPurchase(context.Background(), user.ID, "USDT")
	assert.ErrorIs(t, err, ErrGatewayDisabled)
}

func TestConfirm_Idempotent(t *testing.T) {
	svc, _, db, bus := newPaymentService(t)
	ctx := context.Background()
	user := registerUser(t, db, "buyer")

	var confirmed []*events.Event
	bus.Subscribe(events.EventPaymentConfirmed, func(e *events.Event) error {
		confirmed = append(confirmed, e)
		return nil
	})

	intent, err := svc.StartVIPPurchase(ctx, user.ID, "USDT")
	require.NoError(t, err)

	applied, err := svc.Confirm(ctx, intent.InvoiceID)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierVIP, got.Tier)
	expiry := got.ExpiresAt.Time

	// Replay: no second settlement, no second event, expiry untouched.
	applied, err = svc.Confirm(ctx, intent.InvoiceID)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Time.Equal(expiry))
	assert.Len(t, confirmed, 1)
}

func TestConfirm_UnknownInvoice(t *testing.T) {
	svc, _, _, _ := newPaymentService(t)

	applied, err := svc.Confirm(context.Background(), "999999")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestCheckInvoice(t *testing.T) {
	svc, gw, db, _ := newPaymentService(t)
	ctx := context.Background()
	user := registerUser(t, db, "buyer")

	intent, err := svc.StartVIPPurchase(ctx, user.ID, "USDT")
	require.NoError(t, err)

	// Still active at the gateway: nothing settles.
	applied, err := svc.CheckInvoice(ctx, intent.InvoiceID)
	require.NoError(t, err)
	assert.False(t, applied)

	payment, err := db.GetPaymentByInvoice(ctx, intent.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)

	// Gateway reports paid: settlement applies exactly once.
	gw.markPaid(intent.InvoiceID)
	applied, err = svc.CheckInvoice(ctx, intent.InvoiceID)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = svc.CheckInvoice(ctx, intent.InvoiceID)
	require.NoError(t, err)
	assert.False(t, applied, "second check must be a no-op")
}

func TestCheckInvoice_GatewayDisabled(t *testing.T) {
	svc, gw, _, _ := newPaymentService(t)

	gw.configured = false
	_, err := svc.CheckInvoice(context.Background(), "101")
	assert.ErrorIs(t, err, ErrGatewayDisabled)
}

func TestHistory(t *testing.T) {
	svc, _, db, _ := newPaymentService(t)
	ctx := context.Background()
	user := registerUser(t, db, "buyer")

	first, err := svc.StartVIPPurchase(ctx, user.ID, "USDT")
	require.NoError(t, err)
	second, err := svc.StartVIPPurchase(ctx, user.ID, "TON")
	require.NoError(t, err)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.InvoiceID, history[0].InvoiceID, "newest first")
	assert.Equal(t, first.InvoiceID, history[1].InvoiceID)
	assert.Equal(t, "TON", history[0].Currency)
}
