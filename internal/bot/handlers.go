package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"jetsflare/internal/database"
	"jetsflare/internal/models"
	"jetsflare/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID

	if message.IsCommand() {
		// A command always aborts any dialog in progress.
		if err := b.states.ClearState(ctx, chatID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("clear state failed")
		}

		switch message.Command() {
		case "start":
			b.handleStart(ctx, message)
		case "status":
			b.handleStatus(ctx, message)
		case "config":
			b.handleConfig(ctx, message)
		case "referral":
			b.handleReferral(ctx, message)
		case "pay":
			b.handlePay(ctx, message)
		case "name":
			b.handleNameCommand(ctx, message)
		case "help":
			b.handleHelp(ctx, message)
		default:
			b.sendMessage(chatID, "Unknown command. Try /help.")
		}
		return
	}

	state, err := b.states.GetState(ctx, chatID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("get state failed")
	}
	if state != nil && state.Step == models.StepAwaitingNickname {
		b.handleNicknameInput(ctx, message)
		return
	}

	b.sendMessage(chatID, "I did not understand that. Try /help.")
}

// handleStart registers a new account with a trial subscription, or greets
// a returning one. A deep-link payload of the form ref_<code> credits the
// referrer.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	logger := zerolog.Ctx(ctx)

	user, err := b.store.GetUserByTelegramID(ctx, message.From.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		logger.Error().Err(err).Msg("user lookup failed")
		b.sendMessage(chatID, "Something went wrong. Please try again later.")
		return
	}

	brand, _ := b.store.GetSetting(ctx, models.SettingBrandName)

	if user != nil {
		b.sendMessage(chatID, fmt.Sprintf("Welcome back to %s, %s! Use /status to check your subscription.", brand, user.Nickname))
		return
	}

	referralCode := strings.TrimPrefix(strings.TrimSpace(message.CommandArguments()), "ref_")

	user, err = b.accounts.Register(ctx, database.CreateUserParams{
		Nickname:         displayName(message.From),
		ReferralCodeUsed: referralCode,
		TelegramID:       sql.NullInt64{Int64: message.From.ID, Valid: true},
		TelegramUsername: message.From.UserName,
	})
	if err != nil {
		logger.Error().Err(err).Msg("registration failed")
		b.sendMessage(chatID, "Could not create your account. Please try again later.")
		return
	}

	trialDays, _ := b.store.GetSettingInt(ctx, models.SettingTrialDays)

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 Welcome to %s, %s!\n\n", brand, user.Nickname)
	fmt.Fprintf(&sb, "Your trial is active for %d days.\n", trialDays)
	if user.ReferredBy.Valid {
		sb.WriteString("Referral bonus applied to your inviter. 🤝\n")
	}
	sb.WriteString("\nYour connection links:\n")
	sb.WriteString(b.renderLinks(ctx, user.ID))
	sb.WriteString("\nUse /help to see what I can do.")

	b.sendHTML(chatID, sb.String())
}

func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	user := b.requireUser(ctx, message)
	if user == nil {
		return
	}

	profile, err := b.accounts.Profile(ctx, user.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("profile failed")
		b.sendMessage(chatID, "Something went wrong. Please try again later.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n", profile.User.Nickname)
	fmt.Fprintf(&sb, "Tier: %s\n", strings.ToUpper(profile.User.Tier))
	fmt.Fprintf(&sb, "Status: %s\n", profile.User.Status)
	switch {
	case profile.DaysLeft < 0:
		sb.WriteString("Subscription: unlimited\n")
	case profile.DaysLeft == 0:
		sb.WriteString("Subscription: expired ⛔\n")
	default:
		fmt.Fprintf(&sb, "Subscription: %d days left\n", profile.DaysLeft)
	}
	if profile.DailyLimitMB > 0 {
		fmt.Fprintf(&sb, "Traffic today: %s of %d MB\n", formatBytes(profile.TodayBytes), profile.DailyLimitMB)
	} else {
		fmt.Fprintf(&sb, "Traffic today: %s (unlimited)\n", formatBytes(profile.TodayBytes))
	}
	fmt.Fprintf(&sb, "Invited friends: %d\n", profile.ReferralCount)

	b.sendMessage(chatID, sb.String())
}

func (b *Bot) handleConfig(ctx context.Context, message *tgbotapi.Message) {
	user := b.requireUser(ctx, message)
	if user == nil {
		return
	}

	links := b.renderLinks(ctx, user.ID)
	if links == "" {
		b.sendMessage(message.Chat.ID, "No servers are available right now. Please try again later.")
		return
	}
	b.sendHTML(message.Chat.ID, "Your connection links:\n"+links)
}

func (b *Bot) handleReferral(ctx context.Context, message *tgbotapi.Message) {
	user := b.requireUser(ctx, message)
	if user == nil {
		return
	}

	count, err := b.store.ReferralCount(ctx, user.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("referral count failed")
	}

	bonusDays, _ := b.store.GetSettingInt(ctx, models.SettingReferralBonusDays)

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔗 Your referral code: %s\n", user.ReferralCode)
	fmt.Fprintf(&sb, "Share this link: https://t.me/%s?start=ref_%s\n\n", b.sender.GetSelf().UserName, user.ReferralCode)
	fmt.Fprintf(&sb, "Each friend who joins gives you +%d days. Invited so far: %d.", bonusDays, count)

	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) handlePay(ctx context.Context, message *tgbotapi.Message) {
	user := b.requireUser(ctx, message)
	if user == nil {
		return
	}

	price, _ := b.store.GetSettingFloat(ctx, models.SettingVIPPriceUSDT)
	days, _ := b.store.GetSettingInt(ctx, models.SettingVIPDurationDays)

	msg := tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("💎 VIP: %d days for %.2f USDT.\nUnlimited traffic, more devices.\n\nChoose a payment asset:", days, price))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("USDT", "pay_USDT"),
			tgbotapi.NewInlineKeyboardButtonData("TON", "pay_TON"),
			tgbotapi.NewInlineKeyboardButtonData("BTC", "pay_BTC"),
		),
	)
	if _, err := b.sender.Send(msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("send failed")
	}
}

func (b *Bot) handleNameCommand(ctx context.Context, message *tgbotapi.Message) {
	user := b.requireUser(ctx, message)
	if user == nil {
		return
	}

	state := &models.ChatState{ChatID: message.Chat.ID, Step: models.StepAwaitingNickname}
	if err := b.states.SetState(ctx, state); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("set state failed")
		b.sendMessage(message.Chat.ID, "Something went wrong. Please try again later.")
		return
	}
	b.sendMessage(message.Chat.ID, "Send me your new display name.")
}

func (b *Bot) handleNicknameInput(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	user := b.requireUser(ctx, message)
	if user == nil {
		return
	}

	if err := b.accounts.Rename(ctx, user.ID, message.Text); err != nil {
		if errors.Is(err, service.ErrValidation) {
			b.sendMessage(chatID, "That name will not work. 2 to 64 printable characters, please. Try again or send /help to cancel.")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("rename failed")
		b.sendMessage(chatID, "Something went wrong. Please try again later.")
		return
	}

	if err := b.states.ClearState(ctx, chatID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("clear state failed")
	}
	b.sendMessage(chatID, fmt.Sprintf("Done! You are now %s.", strings.TrimSpace(message.Text)))
}

func (b *Bot) handleHelp(ctx context.Context, message *tgbotapi.Message) {
	brand, _ := b.store.GetSetting(ctx, models.SettingBrandName)
	b.sendMessage(message.Chat.ID, fmt.Sprintf(`%s commands:

/status — subscription and traffic
/config — your connection links
/pay — upgrade to VIP
/referral — invite friends, earn days
/name — change your display name
/help — this message`, brand))
}

// requireUser resolves the sender's account and nudges unregistered chats
// toward /start.
func (b *Bot) requireUser(ctx context.Context, message *tgbotapi.Message) *models.User {
	user, err := b.store.GetUserByTelegramID(ctx, message.From.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			b.sendMessage(message.Chat.ID, "You do not have an account yet. Send /start to create one.")
			return nil
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("user lookup failed")
		b.sendMessage(message.Chat.ID, "Something went wrong. Please try again later.")
		return nil
	}
	return user
}

// renderLinks formats the first MaxWelcomeLinks access links as a flagged
// list. Empty string means no node is currently usable.
func (b *Bot) renderLinks(ctx context.Context, userID int64) string {
	links, err := b.accounts.AccessLinks(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("access links failed")
		return ""
	}
	if len(links) == 0 {
		return ""
	}

	if limit := b.config.Bot.MaxWelcomeLinks; limit > 0 && len(links) > limit {
		links = links[:limit]
	}

	var sb strings.Builder
	for _, link := range links {
		location := link.CountryName
		if link.City != "" {
			location += ", " + link.City
		}
		fmt.Fprintf(&sb, "\n%s %s (%s)\n<code>%s</code>\n", countryFlag(link.CountryCode), link.NodeName, location, link.Link)
	}
	return sb.String()
}

func displayName(from *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(from.FirstName) + " " + strings.TrimSpace(from.LastName))
	if len([]rune(name)) >= 2 {
		return name
	}
	if from.UserName != "" {
		return from.UserName
	}
	return fmt.Sprintf("user%d", from.ID)
}
