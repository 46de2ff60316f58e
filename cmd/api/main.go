package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/ecograd-backend/internal/config"
	"github.com/shinyyama/ecograd-backend/internal/db"
	"github.com/shinyyama/ecograd-backend/internal/imagestore"
	"github.com/shinyyama/ecograd-backend/internal/obs"
	"github.com/shinyyama/ecograd-backend/internal/realtime"
	"github.com/shinyyama/ecograd-backend/internal/server"
	"github.com/shinyyama/ecograd-backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := obs.NewLogger(cfg.AppEnv)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	conn, err := db.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	uploader, closeImages, err := imagestore.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("image store: %w", err)
	}
	defer func() { _ = closeImages() }()
	var images service.ImageStore
	if uploader != nil {
		images = uploader
	}

	hub := realtime.NewHub(logger)
	var publisher realtime.Publisher = hub
	if cfg.RedisURL != "" {
		rdb, err := realtime.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		relay := realtime.NewRedisRelay(rdb, hub, realtime.DefaultChannel, logger)
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("push relay: %w", err)
		}
		publisher = relay
	}

	srv := server.New(server.Deps{
		DB:        conn,
		Config:    cfg,
		Logger:    logger,
		Images:    images,
		Hub:       hub,
		Publisher: publisher,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	hub.Close()
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
