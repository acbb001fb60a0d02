package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
)

// FormatHandler handles image format listing requests.
type FormatHandler struct{}

// NewFormatHandler creates a new FormatHandler.
func NewFormatHandler() *FormatHandler {
	return &FormatHandler{}
}

// List handles GET /api/v1/formats
func (h *FormatHandler) List(c *gin.Context) {
	formats := []domain.FormatInfo{
		{
			Name:       "JPEG",
			MimeType:   "image/jpeg",
			Extensions: []string{".jpg", ".jpeg"},
		},
		{
			Name:       "PNG",
			MimeType:   "image/png",
			Extensions: []string{".png"},
		},
		{
			Name:       "WebP",
			MimeType:   "image/webp",
			Extensions: []string{".webp"},
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"formats": formats,
	})
}
