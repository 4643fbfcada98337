package domain

import (
	"context"
	"time"

	"jetsflare/internal/database"
	"jetsflare/internal/gateway"
	"jetsflare/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Store is the transactional ledger shared by the panel and the bot.
// *database.DB is the only production implementation.
type Store interface {
	// Identity & subscription ledger
	CreateUser(ctx context.Context, p database.CreateUserParams) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUUID(ctx context.Context, uuid string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, tier, status string) (int64, error)
	UpdateUserFields(ctx context.Context, id int64, fields map[string]any) error
	ExtendSubscription(ctx context.Context, id int64, days int64) error
	SetTier(ctx context.Context, id int64, tier string) error
	DeleteUser(ctx context.Context, id int64) error

	// Node registry
	UpsertNode(ctx context.Context, p database.RegisterNodeParams) (string, error)
	Heartbeat(ctx context.Context, nodeID string) error
	GetNode(ctx context.Context, nodeID string) (*models.Node, error)
	ListNodes(ctx context.Context) ([]models.Node, error)
	DeleteNode(ctx context.Context, nodeID string) error

	// Traffic accounting
	RecordTraffic(ctx context.Context, nodeID string, report models.TrafficReport) (int, error)
	GetTodayTraffic(ctx context.Context, userID int64) (int64, error)
	ActiveClients(ctx context.Context, now time.Time) ([]models.Client, error)

	// Payment settlement
	CreatePayment(ctx context.Context, userID int64, amount float64, currency string, days int64, invoiceID string) (int64, error)
	ConfirmPayment(ctx context.Context, invoiceID string) (bool, error)
	GetPaymentByInvoice(ctx context.Context, invoiceID string) (*models.Payment, error)
	ListUserPayments(ctx context.Context, userID int64) ([]models.Payment, error)

	// Referrals & reporting
	ReferralCount(ctx context.Context, userID int64) (int64, error)
	TopReferrers(ctx context.Context, limit int) ([]models.ReferralStat, error)
	DashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error)

	// Settings store
	GetSetting(ctx context.Context, key string) (string, error)
	GetSettingInt(ctx context.Context, key string) (int64, error)
	GetSettingFloat(ctx context.Context, key string) (float64, error)
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]string, error)
}

// StateRepository keeps bot dialog state and flood counters.
type StateRepository interface {
	GetState(ctx context.Context, chatID int64) (*models.ChatState, error)
	SetState(ctx context.Context, state *models.ChatState) error
	ClearState(ctx context.Context, chatID int64) error
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
}

// InvoiceGateway is the external payment provider.
type InvoiceGateway interface {
	Configured() bool
	CreateInvoice(ctx context.Context, asset, amount, description, payload string) (*gateway.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error)
	VerifyWebhook(body []byte, signature string) bool
}

// EventPublisher decouples state transitions from their observers.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// TelegramSender is the thin slice of the bot API the handlers use.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
