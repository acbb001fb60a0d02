package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID tags each request with a time-ordered UUID, echoed in the response
// header. A caller-supplied X-Request-ID is honored only when it is itself a
// valid UUID, so arbitrary client strings never reach the logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(rid); err != nil {
			id, genErr := uuid.NewV7()
			if genErr != nil {
				id = uuid.New()
			}
			rid = id.String()
		}

		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}
