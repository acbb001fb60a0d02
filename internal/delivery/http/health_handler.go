package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Checker probes one dependency and returns an error when it is unreachable.
type Checker func(ctx context.Context) error

// HealthHandler reports the reachability of the engine's dependencies.
type HealthHandler struct {
	checks map[string]Checker
	logger *zap.Logger
}

// NewHealthHandler creates a HealthHandler over the given named checks.
func NewHealthHandler(logger *zap.Logger, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// Health handles GET /api/v1/health. Every check is run; a single failing
// dependency degrades the response to 503 so load balancers stop routing here.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	services := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Dependency health check failed",
				zap.String("service", name),
				zap.Error(err),
			)
			services[name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		services[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":   status,
		"services": services,
	})
}
