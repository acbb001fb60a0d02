package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/usecase"
)

const defaultStreamInterval = 500 * time.Millisecond

// WebSocketHandler pushes job status snapshots over a WebSocket until the job
// goes terminal, so clients do not have to poll GET /jobs/:id themselves.
type WebSocketHandler struct {
	getJobUC *usecase.GetJobUsecase
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler creates a WebSocketHandler polling the job at the given
// interval. A non-positive interval falls back to the default.
func NewWebSocketHandler(getJobUC *usecase.GetJobUsecase, interval time.Duration, logger *zap.Logger) *WebSocketHandler {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	return &WebSocketHandler{
		getJobUC: getJobUC,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development; restrict in production
			},
		},
		logger: logger,
	}
}

// Stream handles GET /api/v1/jobs/:id/stream (WebSocket upgrade). The first
// snapshot is sent immediately; later ones follow each tick until the job is
// terminal or the client goes away.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("job_id", idStr))

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		job, err := h.getJobUC.Execute(ctx, id)
		if err != nil {
			conn.WriteJSON(gin.H{"error": "Job not found"})
			return
		}

		if err := conn.WriteJSON(job); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			return
		}

		if job.Status.IsTerminal() {
			h.logger.Debug("Job reached terminal state, closing WebSocket", zap.String("job_id", idStr))
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
