package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/blob"
)

// TransferHandler moves image bytes in and out of the blob store through
// time-limited handles. It never touches job state.
type TransferHandler struct {
	transfer blob.Transfer
	logger   *zap.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transfer blob.Transfer, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{transfer: transfer, logger: logger}
}

// Upload handles PUT /api/v1/uploads/:token
func (h *TransferHandler) Upload(c *gin.Context) {
	token := c.Param("token")

	locator, err := h.transfer.ResolveUpload(token)
	if err != nil {
		if errors.Is(err, blob.ErrHandleExpired) {
			c.JSON(http.StatusGone, gin.H{"error": "Upload handle expired or unknown"})
			return
		}
		h.logger.Error("Resolve upload handle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.transfer.Put(locator, c.Request.Body); err != nil {
		h.logger.Error("Store upload failed", zap.Error(err), zap.String("locator", locator))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Download handles GET /api/v1/downloads/:token
func (h *TransferHandler) Download(c *gin.Context) {
	token := c.Param("token")

	locator, err := h.transfer.ResolveDownload(token)
	if err != nil {
		if errors.Is(err, blob.ErrHandleExpired) {
			c.JSON(http.StatusGone, gin.H{"error": "Download handle expired or unknown"})
			return
		}
		h.logger.Error("Resolve download handle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	obj, err := h.transfer.Open(locator)
	if err != nil {
		if errors.Is(err, blob.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Object not found"})
			return
		}
		h.logger.Error("Open object failed", zap.Error(err), zap.String("locator", locator))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer obj.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, obj); err != nil {
		h.logger.Debug("Download stream interrupted", zap.Error(err))
	}
}
