package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"assistant-relay/internal/app"
	"assistant-relay/internal/config"
	"assistant-relay/internal/httpapi"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg := config.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build relay: %v", err)
	}
	defer a.Close()

	if err := a.AddReport(func(ctx context.Context, text string) error {
		log.Printf("📊 Daily report:\n%s", text)
		return nil
	}); err != nil {
		log.Fatalf("failed to schedule report: %v", err)
	}
	a.Scheduler.Start()

	var exp httpapi.Exporter
	if a.Exporter != nil {
		exp = a.Exporter
	}
	e := httpapi.NewServer(httpapi.NewHandler(a.Sessions, a.Tasks, exp))

	go func() {
		log.Printf("🌐 HTTP server listening on %s", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("failed to shut down HTTP server: %v", err)
	}
	log.Printf("👋 Server stopped")
}
