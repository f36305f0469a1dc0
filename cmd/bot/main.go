package main

import (
	"context"
	"log"

	"pdf-chat-bot/internal/bootstrap"
	"pdf-chat-bot/internal/config"
	"pdf-chat-bot/internal/server"
	"pdf-chat-bot/pkg/database"
	"pdf-chat-bot/pkg/telegram"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if cfg.Telegram.Token == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}

	// 2. Connect to Telegram
	bot, err := telegram.NewClient(cfg.Telegram.Token)
	if err != nil {
		log.Fatalf("Unable to connect to Telegram: %v", err)
	}
	log.Printf("[INFO] Logged in as @%s", bot.Username())

	// 3. Initialize Database (optional; falls back to in-memory stores)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg, bot)
	defer container.Logger.Sync()

	ctx := context.Background()

	// 5. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Fatalf("Unable to start consumer: %v", err)
	}

	// 6. Initial Index Sync (before accepting any chat traffic)
	report, err := container.IndexerService.Sync(ctx, cfg.App.DocsDir)
	if err != nil {
		log.Printf("[WARN] Initial sync failed: %v", err)
	} else {
		log.Printf("[INFO] Initial sync: %d indexed, %d unchanged, %d failed, %d removed",
			report.Indexed, report.Skipped, report.Failed, report.Removed)
	}

	// 7. Wire Update Delivery: webhook when a public URL is configured,
	// long polling otherwise.
	if cfg.Telegram.WebhookURL != "" {
		url := cfg.Telegram.WebhookURL + "/webhook/" + cfg.Telegram.WebhookSecret
		if err := bot.SetWebhook(url); err != nil {
			log.Fatalf("Unable to set webhook: %v", err)
		}
		log.Printf("[INFO] Webhook registered at %s/webhook/***", cfg.Telegram.WebhookURL)
	} else {
		if err := bot.DeleteWebhook(); err != nil {
			log.Printf("[WARN] Failed to delete stale webhook: %v", err)
		}
		go container.TelegramController.RunPolling(ctx, bot.Updates(ctx))
	}

	// 8. Run Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
