package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/finwise/internal/pkg/errcode"
	"github.com/xxxsen/finwise/internal/pkg/jwt"
	"github.com/xxxsen/finwise/internal/pkg/response"
)

const ContextSessionIDKey = "session_id"

// SessionAuth resolves the bearer token to the chat session it was
// issued for.
func SessionAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextSessionIDKey, claims.SessionID)
		c.Next()
	}
}

func SessionID(c *gin.Context) string {
	v, _ := c.Get(ContextSessionIDKey)
	id, _ := v.(string)
	return id
}
