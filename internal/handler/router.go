package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/finwise/internal/middleware"
)

type RouterDeps struct {
	Sessions   *SessionHandler
	Ask        *AskHandler
	Documents  *DocumentHandler
	JWTSecret  []byte
	RatePerSec float64
	RateBurst  int
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/session", deps.Sessions.Create)
	api.GET("/classify", deps.Ask.Classify)

	authGroup := api.Group("")
	authGroup.Use(middleware.SessionAuth(deps.JWTSecret))
	authGroup.GET("/session", deps.Sessions.Get)
	authGroup.DELETE("/session", deps.Sessions.Delete)

	askGroup := authGroup.Group("/ask")
	askGroup.Use(middleware.RateLimit(deps.RatePerSec, deps.RateBurst))
	askGroup.POST("", deps.Ask.Ask)
	askGroup.POST("/consent", deps.Ask.Consent)
	askGroup.POST("/cancel", deps.Ask.Cancel)

	authGroup.POST("/documents", deps.Documents.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.DELETE("/documents", deps.Documents.DeleteAll)
	authGroup.DELETE("/documents/:name", deps.Documents.Delete)
	authGroup.GET("/documents/raw/:hash", deps.Documents.Raw)
}
