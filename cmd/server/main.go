package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/region23/tablebook/internal/bot"
	botservice "github.com/region23/tablebook/internal/bot/service"
	"github.com/region23/tablebook/internal/config"
	"github.com/region23/tablebook/internal/reservation"
	"github.com/region23/tablebook/internal/scheduler"
	"github.com/region23/tablebook/internal/server"
	"github.com/region23/tablebook/internal/storage/sqlite"
	"github.com/region23/tablebook/internal/tables"
	"github.com/region23/tablebook/internal/tokens"
	"github.com/region23/tablebook/internal/tokens/memory"
	redistokens "github.com/region23/tablebook/internal/tokens/redis"
	"github.com/region23/tablebook/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tablebook: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	log.Info("Starting tablebook", logger.String("version", server.Version))

	location, err := cfg.Reservation.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	// Инициализируем хранилище
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", logger.Error(err))
		}
	}()
	log.Info("Storage initialized", logger.String("path", cfg.Database.Path))

	tokenStore, err := newTokenStore(cfg, log)
	if err != nil {
		return err
	}

	telegramBot, err := tgbot.New(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	engine := tables.NewEngine(store, log)
	allocator := reservation.NewAllocator(engine, store, cfg.Reservation.SlotDuration, location, log)
	reservations := reservation.NewService(store, location, log)

	botService := botservice.NewService(telegramBot, store, reservations, tokenStore, botservice.Options{
		BotUsername: cfg.Telegram.BotUsername,
		TokenTTL:    cfg.Tokens.TTL,
		Location:    location,
	}, log)
	dispatcher := bot.NewDispatcher(botService, log)

	reminder := scheduler.NewReminder(store, botService, cfg.Reminder.IOTimeout, log)
	runner, err := scheduler.NewRunner(reminder, tokenStore, scheduler.Options{
		ReminderInterval: cfg.Reminder.Interval,
		SweepInterval:    cfg.Tokens.SweepInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	srv, err := server.New(cfg, server.Deps{
		Storage:      store,
		Tables:       engine,
		Allocator:    allocator,
		Reservations: reservations,
		Bot:          botService,
		Dispatcher:   dispatcher,
		Tokens:       tokenStore,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.WebhookURL != "" {
		if err := setupWebhook(ctx, telegramBot, cfg.Telegram, log); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		log.Warn("TELEGRAM_WEBHOOK_URL is empty, webhook is not registered")
	}

	runner.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received, stopping background jobs")
		return runner.Stop()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server stopped gracefully")
	return nil
}

// newTokenStore выбирает хранилище токенов привязки
func newTokenStore(cfg *config.Config, log *logger.Logger) (tokens.Store, error) {
	if cfg.Tokens.Backend != "redis" {
		log.Info("Using in-memory token store")
		return memory.NewStore(), nil
	}

	client, err := redistokens.NewClient(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	store := redistokens.NewStore(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Using redis token store")
	return store, nil
}

// setupWebhook настраивает webhook для Telegram бота
func setupWebhook(ctx context.Context, b *tgbot.Bot, cfg config.TelegramConfig, log *logger.Logger) error {
	// Удаляем существующий webhook
	if _, err := b.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		log.Warn("Failed to delete existing webhook", logger.Error(err))
	}

	params := &tgbot.SetWebhookParams{
		URL:         cfg.WebhookURL,
		SecretToken: cfg.SecretToken,
	}
	if _, err := b.SetWebhook(ctx, params); err != nil {
		return err
	}

	log.Info("Webhook set", logger.String("url", cfg.WebhookURL))
	return nil
}
