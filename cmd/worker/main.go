package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/batch"
	"github.com/jeffreymoya/photoeditor-sub011/internal/config"
	"github.com/jeffreymoya/photoeditor-sub011/internal/provider"
	"github.com/jeffreymoya/photoeditor-sub011/internal/queue"
	"github.com/jeffreymoya/photoeditor-sub011/internal/queue/amqp"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
	redisrepo "github.com/jeffreymoya/photoeditor-sub011/internal/repository/redis"
	"github.com/jeffreymoya/photoeditor-sub011/internal/storage/postgres"
	"github.com/jeffreymoya/photoeditor-sub011/internal/worker"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting PhotoEditor Worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
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

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Initialize repository, dedupe store and aggregator
	jobRepo := repository.NewItemRepository(store)
	dedupe := redisrepo.NewRedisDedupeStore(redisClient)
	agg := batch.NewAggregator(jobRepo, logger)

	// Editing provider
	prov := provider.NewHTTPProvider(cfg.Provider.Endpoint, cfg.Provider.Timeout, logger)

	// Coordinator ties the lifecycle pieces together
	coordinator := worker.NewCoordinator(jobRepo, dedupe, prov, agg, logger)

	// Create buffered job channel
	jobsChan := make(chan *queue.JobMessage, cfg.Worker.PoolSize*2)

	// Initialize AMQP consumer
	consumer, err := amqp.NewConsumer(cfg.RabbitMQ.URL, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pool
	workerPool := worker.NewPool(cfg.Worker.PoolSize, int64(cfg.Worker.MaxDeliveries), jobsChan, coordinator, logger)
	workerPool.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight jobs
	workerPool.Stop()

	logger.Info("Worker stopped")
}
