package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/finwise/internal/middleware"
	"github.com/xxxsen/finwise/internal/model"
	"github.com/xxxsen/finwise/internal/pkg/errcode"
	"github.com/xxxsen/finwise/internal/pkg/jwt"
	"github.com/xxxsen/finwise/internal/pkg/response"
)

// Router is the query routing surface the chat endpoints need.
type Router interface {
	NewSession(ctx context.Context) (*model.Session, error)
	Session(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Ask(ctx context.Context, sessionID, query string) (*model.Reply, error)
	Consent(ctx context.Context, sessionID string, allow bool) (*model.Reply, error)
	Cancel(ctx context.Context, sessionID string) (*model.Reply, error)
	Classify(ctx context.Context, query string) model.Category
}

type SessionHandler struct {
	router Router
	secret []byte
	ttl    time.Duration
}

func NewSessionHandler(router Router, secret []byte, ttl time.Duration) *SessionHandler {
	return &SessionHandler{router: router, secret: secret, ttl: ttl}
}

type sessionResponse struct {
	Token   string         `json:"token,omitempty"`
	Session *model.Session `json:"session"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	sess, err := h.router.NewSession(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	token, err := jwt.GenerateToken(sess.ID, h.secret, h.ttl)
	if err != nil {
		response.Error(c, errcode.ErrInternal, "failed to issue token")
		return
	}
	response.Success(c, sessionResponse{Token: token, Session: sess})
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.router.Session(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sessionResponse{Session: sess})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.router.DeleteSession(c.Request.Context(), middleware.SessionID(c)); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
