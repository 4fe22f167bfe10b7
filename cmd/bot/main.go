package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"assistant-relay/internal/app"
	"assistant-relay/internal/auth"
	"assistant-relay/internal/config"
	"assistant-relay/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	if cfg.TelegramBotToken == "" {
		log.Fatal("❌ TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build relay: %v", err)
	}
	defer a.Close()

	authSvc, err := auth.NewWithRepo(fileRepo(cfg.AllowlistFilePath), fileRepo(cfg.PendingFilePath), cfg.AllowedUsers, cfg.AdminUserID)
	if err != nil {
		log.Fatalf("failed to init auth: %v", err)
	}

	var exp telegram.Exporter
	if a.Exporter != nil {
		exp = a.Exporter
	}
	bot, err := telegram.New(cfg.TelegramBotToken, authSvc, a.Sessions, a.Tasks, exp)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	if err := a.AddReport(bot.SendToAdmin); err != nil {
		log.Fatalf("failed to schedule report: %v", err)
	}
	a.Scheduler.Start()

	log.Printf("✅ Bot started")
	bot.Start(ctx)
	log.Printf("👋 Bot stopped")
}

func fileRepo(path string) auth.Repository {
	if path == "" {
		return nil
	}
	repo, err := auth.NewFileRepository(path)
	if err != nil {
		log.Printf("failed to init repo %s: %v", path, err)
		return nil
	}
	return repo
}
