package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/finwise/internal/pkg/jwt"
)

func TestSessionAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("secret")
	token, err := jwt.GenerateToken("sess-1", secret, time.Hour)
	require.NoError(t, err)

	engine := gin.New()
	engine.GET("/me", SessionAuth(secret), func(c *gin.Context) {
		c.String(http.StatusOK, SessionID(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)
	require.Equal(t, "sess-1", w.Body.String())

	for _, header := range []string{"", "Basic abc", "Bearer not-a-token"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		engine.ServeHTTP(w, req)
		require.NotContains(t, w.Body.String(), "sess-1", header)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(CORS([]string{"https://app.example.com"}))
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	engine.ServeHTTP(w, req)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	engine.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc")
	engine.ServeHTTP(w, req)
	require.Equal(t, "abc", w.Header().Get("X-Request-Id"))
}
