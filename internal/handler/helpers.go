package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/middleware"
	"github.com/xxxsen/finwise/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("session_id", middleware.SessionID(c)),
		zap.Error(err),
	)
	response.Fail(c, err)
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
