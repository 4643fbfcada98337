package service

import (
	"context"
	"fmt"
	"strconv"

	"jetsflare/internal/domain"
	"jetsflare/internal/events"
	"jetsflare/internal/gateway"
	"jetsflare/internal/metrics"
	"jetsflare/internal/models"

	"github.com/rs/zerolog"
)

// PaymentService drives the VIP purchase flow: invoice creation at the
// gateway, local pending record, and idempotent settlement.
type PaymentService struct {
	store    domain.Store
	gateway  domain.InvoiceGateway
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewPaymentService(store domain.Store, gw domain.InvoiceGateway, eventBus domain.EventPublisher, logger *zerolog.Logger) *PaymentService {
	return &PaymentService{
		store:    store,
		gateway:  gw,
		eventBus: eventBus,
		logger:   logger,
	}
}

// PurchaseIntent is a created-but-unpaid invoice handed back to the bot.
type PurchaseIntent struct {
	InvoiceID string
	PayURL    string
	Amount    float64
	Currency  string
	Days      int64
}

// StartVIPPurchase creates a gateway invoice priced from settings and
// records a pending payment keyed by the gateway invoice id. The gateway
// call happens before the local insert so a gateway failure leaves no
// orphan rows.
func (s *PaymentService) StartVIPPurchase(ctx context.Context, userID int64, asset string) (*PurchaseIntent, error) {
	if !s.gateway.Configured() {
		return nil, ErrGatewayDisabled
	}
	if asset == "" {
		asset = "USDT"
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	price, err := s.store.GetSettingFloat(ctx, models.SettingVIPPriceUSDT)
	if err != nil {
		return nil, err
	}
	days, err := s.store.GetSettingInt(ctx, models.SettingVIPDurationDays)
	if err != nil {
		return nil, err
	}
	brand, err := s.store.GetSetting(ctx, models.SettingBrandName)
	if err != nil {
		return nil, err
	}

	amount := strconv.FormatFloat(price, 'f', 2, 64)
	description := fmt.Sprintf("%s VIP, %d days", brand, days)
	payload := strconv.FormatInt(user.ID, 10)

	invoice, err := s.gateway.CreateInvoice(ctx, asset, amount, description, payload)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	invoiceID := gateway.InvoiceKey(invoice.InvoiceID)
	if _, err := s.store.CreatePayment(ctx, user.ID, price, asset, days, invoiceID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("invoice_id", invoiceID).
		Str("asset", asset).
		Msg("invoice created")

	return &PurchaseIntent{
		InvoiceID: invoiceID,
		PayURL:    invoice.PayURL,
		Amount:    price,
		Currency:  asset,
		Days:      days,
	}, nil
}

// Confirm settles an invoice. Unknown and already-paid invoices are
// no-ops; the bool reports whether this call applied the settlement.
func (s *PaymentService) Confirm(ctx context.Context, invoiceID string) (bool, error) {
	applied, err := s.store.ConfirmPayment(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	metrics.IncPaymentConfirmed()

	payment, err := s.store.GetPaymentByInvoice(ctx, invoiceID)
	if err != nil {
		s.logger.Warn().Err(err).Str("invoice_id", invoiceID).Msg("confirmed payment readback failed")
		return true, nil
	}

	if s.eventBus != nil {
		payload := events.PaymentConfirmedPayload{
			UserID:    payment.UserID,
			InvoiceID: payment.InvoiceID,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			DaysAdded: payment.DaysAdded,
		}
		if err := s.eventBus.PublishJSON(events.EventPaymentConfirmed, payload); err != nil {
			s.logger.Warn().Err(err).Str("invoice_id", invoiceID).Msg("failed to publish payment_confirmed event")
		}
	}

	s.logger.Info().
		Int64("user_id", payment.UserID).
		Str("invoice_id", invoiceID).
		Float64("amount", payment.Amount).
		Msg("payment confirmed")

	return true, nil
}

// CheckInvoice pulls the invoice status from the gateway and settles it if
// the gateway reports it paid. Used by the bot's "check payment" button as
// a fallback for lost webhooks.
func (s *PaymentService) CheckInvoice(ctx context.Context, invoiceID string) (bool, error) {
	if !s.gateway.Configured() {
		return false, ErrGatewayDisabled
	}

	invoice, err := s.gateway.GetInvoice(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	if invoice == nil || invoice.Status != gateway.InvoiceStatusPaid {
		return false, nil
	}

	return s.Confirm(ctx, invoiceID)
}

// History returns a user's payments, newest first.
func (s *PaymentService) History(ctx context.Context, userID int64) ([]models.Payment, error) {
	return s.store.ListUserPayments(ctx, userID)
}
