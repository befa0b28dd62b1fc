package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/app"
	"github.com/Freeeeeet/tutor_backend/internal/config"
)

func main() {
	cfg, fromFile, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting tutor backend",
		zap.String("environment", cfg.Environment),
		zap.Bool("dotenv", fromFile),
		zap.String("addr", cfg.HTTPAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
