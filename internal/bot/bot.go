package bot

import (
	"context"
	"os"
	"time"

	"jetsflare/internal/config"
	"jetsflare/internal/domain"
	"jetsflare/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bot is the Telegram front end of the panel: self-service registration,
// subscription status, connection links and VIP purchase.
type Bot struct {
	sender   domain.TelegramSender
	config   *config.Config
	store    domain.Store
	states   domain.StateRepository
	accounts *service.AccountService
	payments *service.PaymentService
	logger   *zerolog.Logger
}

func NewBot(
	sender domain.TelegramSender,
	cfg *config.Config,
	store domain.Store,
	states domain.StateRepository,
	accounts *service.AccountService,
	payments *service.PaymentService,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		sender:   sender,
		config:   cfg,
		store:    store,
		states:   states,
		accounts: accounts,
		payments: payments,
		logger:   logger,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.sender.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.sender.GetSelf().UserName).Msg("authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("bot stopping")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.sender == nil {
		return
	}
	b.sender.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.NewString()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		var chatID int64
		if update.Message != nil {
			chatID = update.Message.Chat.ID
		} else if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
		if chatID == 0 {
			return
		}

		allowed, err := b.states.CheckRateLimit(updateCtx, chatID,
			b.config.Bot.RateLimitMessages,
			time.Duration(b.config.Bot.RateLimitWindow)*time.Second)
		if err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("rate limit check failed")
		} else if !allowed {
			l.Warn().Int64("chat_id", chatID).Msg("rate limit exceeded")
			if update.Message != nil {
				b.sendMessage(chatID, "⚠️ You are sending messages too fast. Please wait a moment.")
			}
			return
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update)
			return
		}

		if update.Message == nil {
			return
		}

		b.handleMessage(updateCtx, update)
	})
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

// sendHTML is for messages carrying <code> blocks with connection links.
func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}
