package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/blob"
	"github.com/jeffreymoya/photoeditor-sub011/internal/delivery/http/middleware"
	"github.com/jeffreymoya/photoeditor-sub011/internal/usecase"
)

// RouterDeps bundles everything the router needs wired in.
type RouterDeps struct {
	SubmitJob   *usecase.SubmitJobUsecase
	SubmitBatch *usecase.SubmitBatchUsecase
	GetJob      *usecase.GetJobUsecase
	GetBatch    *usecase.GetBatchUsecase
	Transfer    blob.Transfer
	Logger      *zap.Logger

	// Checks maps a dependency name to its health probe.
	Checks map[string]Checker

	RateLimitPerMin int
	MaxBodyBytes    int64
	StreamInterval  time.Duration
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.Logger, deps.Checks)
		v1.GET("/health", healthHandler.Health)

		// Supported image formats
		formatHandler := NewFormatHandler()
		v1.GET("/formats", formatHandler.List)

		// Submissions (rate limited, bounded request bodies)
		limited := v1.Group("")
		limited.Use(middleware.RateLimiter(deps.RateLimitPerMin))
		limited.Use(middleware.BodySizeLimit(deps.MaxBodyBytes))

		jobHandler := NewJobHandler(deps.SubmitJob, deps.GetJob, deps.Logger)
		limited.POST("/jobs", jobHandler.Submit)
		v1.GET("/jobs/:id", jobHandler.GetByID)

		batchHandler := NewBatchHandler(deps.SubmitBatch, deps.GetBatch, deps.Logger)
		limited.POST("/batches", batchHandler.Submit)
		v1.GET("/batches/:id", batchHandler.GetByID)

		// Image bytes in and out
		transferHandler := NewTransferHandler(deps.Transfer, deps.Logger)
		v1.PUT("/uploads/:token", transferHandler.Upload)
		v1.GET("/downloads/:token", transferHandler.Download)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.GetJob, deps.StreamInterval, deps.Logger)
		v1.GET("/jobs/:id/stream", wsHandler.Stream)
	}

	return router
}
