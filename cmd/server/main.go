package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/paqtrack/paqtrack-be/internal/config"
	"github.com/paqtrack/paqtrack-be/internal/logging"
	"github.com/paqtrack/paqtrack-be/internal/photo"
	"github.com/paqtrack/paqtrack-be/internal/server"
	"github.com/paqtrack/paqtrack-be/internal/storage/postgres"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.LogLevel)

	ctx := context.Background()
	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	defer store.Close()

	photos, err := photo.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("init photo store: %v", err)
	}

	srv := server.New(cfg, store, photos, logger)

	go func() {
		logger.Info("paqtrack backend listening", "addr", cfg.HTTPAddress())
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", "error", err)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
