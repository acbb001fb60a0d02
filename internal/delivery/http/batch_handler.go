package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/usecase"
)

// BatchHandler handles HTTP requests for batch submissions.
type BatchHandler struct {
	submitUC   *usecase.SubmitBatchUsecase
	getBatchUC *usecase.GetBatchUsecase
	logger     *zap.Logger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(submitUC *usecase.SubmitBatchUsecase, getBatchUC *usecase.GetBatchUsecase, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		submitUC:   submitUC,
		getBatchUC: getBatchUC,
		logger:     logger,
	}
}

// Submit handles POST /api/v1/batches
func (h *BatchHandler) Submit(c *gin.Context) {
	var req domain.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), requestUser(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyBatch), errors.Is(err, domain.ErrEmptyFileName):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrJobAlreadyExists), errors.Is(err, domain.ErrBatchAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Submit batch failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// GetByID handles GET /api/v1/batches/:id
func (h *BatchHandler) GetByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch ID format"})
		return
	}

	b, err := h.getBatchUC.Execute(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
			return
		}
		h.logger.Error("Get batch failed", zap.Error(err), zap.String("batch_job_id", idStr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, b)
}
