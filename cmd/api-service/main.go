package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/partimer-be/internal/api/handler"
	"github.com/cuongbtq/partimer-be/internal/api/router"
	"github.com/cuongbtq/partimer-be/internal/config"
	"github.com/cuongbtq/partimer-be/internal/detour"
	"github.com/cuongbtq/partimer-be/internal/matching"
	"github.com/cuongbtq/partimer-be/internal/matching/storage"
	"github.com/cuongbtq/partimer-be/shared/logger"
	"github.com/cuongbtq/partimer-be/shared/postgresql"
	"github.com/cuongbtq/partimer-be/shared/rabbitmq"
	"github.com/cuongbtq/partimer-be/shared/redis"
)

const redisConnectTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := postgresql.NewClient(cfg.PostgresConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	opts := []matching.Option{}
	if events := initEvents(cfg.Redis.URL, appLogger.Logger); events != nil {
		defer events.Close()
		opts = append(opts, matching.WithNotifier(events))
	}

	store := storage.NewPostgresStore(dbClient.GetDB(), appLogger.Logger)
	matchingService := matching.NewService(store, appLogger.Logger, cfg.MatchingServiceConfig(), opts...)
	routeService := detour.NewService(detour.NewPostgresStore(dbClient.GetDB()), appLogger.Logger)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:   appLogger.Logger,
		Matching: matchingService,
		Routes:   routeService,
		Queue:    rabbitClient,
	}, cfg.App.Name, dbClient)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running", slog.String("address", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initEvents connects the Redis event bus. Matching keeps running without
// events when Redis is not configured or unreachable.
func initEvents(url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		logger.Info("Redis not configured, match events disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, url, logger)
	if err != nil {
		logger.Warn("Redis unavailable, match events disabled", slog.Any("error", err))
		return nil
	}
	return client
}
