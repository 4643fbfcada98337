package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"jetsflare/internal/bot"
	"jetsflare/internal/config"
	"jetsflare/internal/database"
	"jetsflare/internal/domain"
	"jetsflare/internal/events"
	"jetsflare/internal/gateway"
	"jetsflare/internal/logging"
	"jetsflare/internal/repository"
	"jetsflare/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const stateTTL = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, states := initStateRepository(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	gatewayClient := gateway.NewClient(cfg.CryptoPay.Token, cfg.CryptoPay.Testnet, &logger)

	eventBus := events.NewEventBus()
	accounts := service.NewAccountService(db, eventBus, &logger)
	payments := service.NewPaymentService(db, gatewayClient, eventBus, &logger)

	return startBot(ctx, cfg, db, states, accounts, payments, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}

// initStateRepository prefers redis; memory is always the fallback so the
// bot keeps working through a redis outage.
func initStateRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.StateRepository) {
	fallback := repository.NewMemoryStateRepository(stateTTL)
	if cfg.Redis.Address == "" {
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, starting on the in-memory fallback")
	}

	primary := repository.NewRedisStateRepository(redisClient, stateTTL)
	return redisClient, repository.NewFailoverStateRepository(primary, fallback, logger)
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	states domain.StateRepository,
	accounts *service.AccountService,
	payments *service.PaymentService,
	logger *zerolog.Logger,
) error {
	if cfg.Telegram.BotToken == "" {
		logger.Error().Msg("telegram bot token is not set")
		return os.ErrInvalid
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create bot api")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	telegramBot := bot.NewBot(bot.NewAPIWrapper(botAPI), cfg, db, states, accounts, payments, logger)

	logger.Info().Msg("bot started")
	telegramBot.Start(ctx)

	logger.Info().Msg("shutdown complete")
	return nil
}
