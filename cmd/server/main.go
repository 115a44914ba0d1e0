package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guychuk210/lullaby-sub000/internal/api"
	"github.com/Guychuk210/lullaby-sub000/internal/config"
	"github.com/Guychuk210/lullaby-sub000/internal/database"
	"github.com/Guychuk210/lullaby-sub000/internal/feed"
	"github.com/Guychuk210/lullaby-sub000/internal/logger"
	"github.com/Guychuk210/lullaby-sub000/internal/repositories"
	"github.com/Guychuk210/lullaby-sub000/internal/services"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "lullaby-sync")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to create postgres pool", zap.Error(err))
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Failed to create redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// Repositories
	deviceRepo := repositories.NewPostgresDeviceRepository(postgresPool)
	eventRepo := repositories.NewPostgresEventRepository(postgresPool)
	eventFeed := repositories.NewRedisEventFeed(redisClient, eventRepo, cfg.LiveWindow)
	statusRepo := repositories.NewRedisStatusRepository(redisClient)
	notificationRepo := repositories.NewPostgresNotificationRepository(postgresPool)

	// Services
	feedClient := feed.NewClient(cfg.FeedBaseURL, cfg.FeedAPIKey, zapLogger)
	identity := services.NewIdentity(cfg.JWTSecret)
	hub := services.NewHub(
		deviceRepo,
		eventRepo,
		eventFeed,
		statusRepo,
		feedClient,
		notificationRepo,
		cfg.StalenessWindow,
		cfg.PollInterval,
		cfg.LookbackDays,
		zapLogger,
	)
	defer hub.Close()

	// HTTP server
	apiServer := api.NewServer(identity, hub, deviceRepo, zapLogger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: apiServer.Router(),
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		zapLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	zapLogger.Info("Starting server", zap.String("port", cfg.ServerPort))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		zapLogger.Fatal("Server error", zap.Error(err))
	}

	zapLogger.Info("Server stopped gracefully")
}
