package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/finwise/internal/middleware"
	"github.com/xxxsen/finwise/internal/pkg/errcode"
	"github.com/xxxsen/finwise/internal/pkg/response"
)

type AskHandler struct {
	router Router
}

func NewAskHandler(router Router) *AskHandler {
	return &AskHandler{router: router}
}

type askRequest struct {
	Query string `json:"query"`
}

type consentRequest struct {
	Allow *bool `json:"allow"`
}

// Ask accepts an empty query: it resumes whatever the session has
// pending.
func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	reply, err := h.router.Ask(c.Request.Context(), middleware.SessionID(c), req.Query)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, reply)
}

func (h *AskHandler) Consent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Allow == nil {
		response.Error(c, errcode.ErrInvalid, "allow is required")
		return
	}
	reply, err := h.router.Consent(c.Request.Context(), middleware.SessionID(c), *req.Allow)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, reply)
}

func (h *AskHandler) Cancel(c *gin.Context) {
	reply, err := h.router.Cancel(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, reply)
}

func (h *AskHandler) Classify(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Error(c, errcode.ErrInvalid, "q is required")
		return
	}
	response.Success(c, gin.H{"query": q, "category": h.router.Classify(c.Request.Context(), q)})
}
