package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	ContextRequestIDKey = "request_id"
	headerRequestID     = "X-Request-Id"
)

// RequestID tags every request with an id, reusing the caller's when it
// sends one, and logs the finished request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
		logutil.GetLogger(c.Request.Context()).Debug("request finished",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
