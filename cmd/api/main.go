package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/batch"
	"github.com/jeffreymoya/photoeditor-sub011/internal/blob"
	"github.com/jeffreymoya/photoeditor-sub011/internal/config"
	handler "github.com/jeffreymoya/photoeditor-sub011/internal/delivery/http"
	"github.com/jeffreymoya/photoeditor-sub011/internal/queue/amqp"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
	"github.com/jeffreymoya/photoeditor-sub011/internal/storage/postgres"
	"github.com/jeffreymoya/photoeditor-sub011/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting PhotoEditor API Server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Connect to PostgreSQL
	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	store := postgres.NewStore(dbPool)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis (dedupe locks live here; the API only pings it so a
	// misconfigured deployment fails fast)
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := goredis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	// Initialize RabbitMQ publisher
	pub, err := amqp.NewPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	// Blob store backed by the local filesystem
	blobs := blob.NewLocalFS(cfg.Blob.Root, cfg.Server.PublicBaseURL, cfg.Blob.HandleTTL)

	// Initialize repository and use cases
	jobRepo := repository.NewItemRepository(store)
	agg := batch.NewAggregator(jobRepo, logger)

	submitJobUC := usecase.NewSubmitJobUsecase(jobRepo, blobs, pub, logger)
	submitBatchUC := usecase.NewSubmitBatchUsecase(jobRepo, agg, blobs, pub, logger)
	getJobUC := usecase.NewGetJobUsecase(jobRepo, logger)
	getBatchUC := usecase.NewGetBatchUsecase(jobRepo, logger)

	// Health probes over the live connections
	checks := map[string]handler.Checker{
		"postgres": func(ctx context.Context) error { return dbPool.Ping(ctx) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"rabbitmq": func(ctx context.Context) error { return pub.Healthy() },
	}

	// Initialize router
	router := handler.NewRouter(handler.RouterDeps{
		SubmitJob:       submitJobUC,
		SubmitBatch:     submitBatchUC,
		GetJob:          getJobUC,
		GetBatch:        getBatchUC,
		Transfer:        blobs,
		Logger:          logger,
		Checks:          checks,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		StreamInterval:  cfg.Server.StreamInterval,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}
