package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relnotes/widget-tracker/internal/api"
	"github.com/relnotes/widget-tracker/internal/batcher"
	"github.com/relnotes/widget-tracker/internal/cache"
	"github.com/relnotes/widget-tracker/internal/config"
	"github.com/relnotes/widget-tracker/internal/handler"
	"github.com/relnotes/widget-tracker/internal/logger"
	"github.com/relnotes/widget-tracker/internal/retry"
	"github.com/relnotes/widget-tracker/internal/storage"

	_ "github.com/lib/pq"
)

// Connection timeouts.
const (
	dbPingTimeout    = 5 * time.Second
	redisPingTimeout = 5 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)
	return db, nil
}

// connectRedis creates the optional content cache client. Returns nil when
// Redis is disabled or unreachable; the service then reads straight through.
func connectRedis(cfg *config.Config, log logger.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not available, content cache disabled",
			logger.Error(err),
		)
		_ = client.Close()
		return nil
	}

	log.Info("Content cache connected",
		logger.String("redis_address", cfg.Redis.Address),
	)
	return client
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	store := storage.NewStore(db, log)

	redisClient := connectRedis(cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	content := cache.NewContent(redisClient, cfg.Widget.CacheTTL, log)

	retryCfg := retry.Config{
		MaxRetries: cfg.Widget.MaxRetries,
		BaseDelay:  cfg.Widget.RetryBaseDelay,
	}

	views := batcher.New(store, log, batcher.Config{
		FlushThreshold: cfg.Widget.FlushThreshold,
		FlushDelay:     cfg.Widget.FlushDelay,
		ChunkSize:      cfg.Widget.ChunkSize,
		ChunkPause:     cfg.Widget.ChunkPause,
		FlushTimeout:   cfg.Widget.FlushTimeout,
		Retry:          retryCfg,
	})

	widgetHandler := handler.NewWidgetHandler(store, views, content, retryCfg, log)
	proxyHandler := handler.NewProxyHandler(&http.Client{Timeout: cfg.Proxy.Timeout}, log)

	checks := map[string]api.HealthCheck{
		"database": {Probe: store.Ping, Critical: true},
	}
	if content.Enabled() {
		checks["redis"] = api.HealthCheck{Probe: content.Ping}
	}

	// done stops background goroutines (rate limiter cleanup) on shutdown.
	done := make(chan struct{})
	defer close(done)

	server := api.NewServer(cfg, widgetHandler, proxyHandler, checks, log, done)

	log.Info("Widget-tracker starting",
		logger.Int("port", cfg.Service.Port),
	)

	err := server.Run()

	// Drain pending increments before the process goes away.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Widget.FlushTimeout)
	defer cancel()
	if drainErr := views.Close(drainCtx); drainErr != nil {
		log.Warn("View batcher drain incomplete", logger.Error(drainErr))
	}

	if err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Widget-tracker exited cleanly")
	return 0
}
