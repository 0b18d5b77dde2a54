package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"sejf-plikow/internal/api"
	"sejf-plikow/internal/audit"
	"sejf-plikow/internal/config"
	"sejf-plikow/internal/database"
	"sejf-plikow/internal/migrate"
	"sejf-plikow/internal/service"
	"sejf-plikow/internal/storage"
	"sejf-plikow/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	if err := migrate.Up(ctx, cfg.DB.Source); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	blobs, err := buildStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize storage backend", zap.Error(err))
	}
	logger.Info("storage backend ready", zap.String("backend", cfg.Storage.Backend))

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	store := database.NewStore(dbpool)
	recorder := audit.NewRecorder(store, wsHub, logger, cfg.Audit.MaxEvents)
	authService := service.NewAuthService(store, recorder, cfg, logger)
	fileService := service.NewFileService(store, blobs, recorder, cfg, logger)
	server := api.NewServer(cfg, store, authService, fileService, recorder, wsHub, logger)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.Routes(),
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.Blob, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			Bucket:    cfg.Storage.S3.Bucket,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
		})
	default:
		return storage.NewLocalStorage(cfg.Storage.Path)
	}
}
