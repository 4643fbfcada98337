package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jetsflare/internal/models"
	"jetsflare/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, update tgbotapi.Update) {
	callback := update.CallbackQuery
	data := callback.Data

	// Answer right away to stop the client spinner.
	if _, err := b.sender.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("callback answer failed")
	}

	switch {
	case strings.HasPrefix(data, "pay_"):
		b.handlePayCallback(ctx, callback, strings.TrimPrefix(data, "pay_"))

	case strings.HasPrefix(data, "check_"):
		b.handleCheckCallback(ctx, callback, strings.TrimPrefix(data, "check_"))
	}
}

// handlePayCallback creates an invoice for the chosen asset and replies
// with the payment link plus a "check payment" button.
func (b *Bot) handlePayCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, asset string) {
	chatID := callback.Message.Chat.ID
	logger := zerolog.Ctx(ctx)

	user, err := b.store.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		b.sendMessage(chatID, "You do not have an account yet. Send /start to create one.")
		return
	}

	intent, err := b.payments.StartVIPPurchase(ctx, user.ID, asset)
	if err != nil {
		if errors.Is(err, service.ErrGatewayDisabled) {
			b.sendMessage(chatID, "Payments are temporarily disabled. Please try again later.")
			return
		}
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("invoice creation failed")
		b.sendMessage(chatID, "Could not create the invoice. Please try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID,
		fmt.Sprintf("🧾 Invoice for %.2f %s (%d days of VIP).\nPay via the button, then press Check payment.",
			intent.Amount, intent.Currency, intent.Days))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Pay", intent.PayURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Check payment", "check_"+intent.InvoiceID),
		),
	)
	if _, err := b.sender.Send(msg); err != nil {
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

// handleCheckCallback pulls the invoice from the gateway as a fallback for
// lost webhooks.
func (b *Bot) handleCheckCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, invoiceID string) {
	chatID := callback.Message.Chat.ID
	logger := zerolog.Ctx(ctx)

	applied, err := b.payments.CheckInvoice(ctx, invoiceID)
	if err != nil {
		logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("invoice check failed")
		b.sendMessage(chatID, "Could not check the payment right now. Please try again in a minute.")
		return
	}

	if applied {
		b.sendMessage(chatID, "✅ Payment received! Your VIP is active. Check /status.")
		return
	}

	payment, err := b.store.GetPaymentByInvoice(ctx, invoiceID)
	if err == nil && payment.Status == models.PaymentPaid {
		b.sendMessage(chatID, "✅ This payment was already processed. Check /status.")
		return
	}

	b.sendMessage(chatID, "⏳ Payment not confirmed yet. Pay the invoice first, then press the button again.")
}
