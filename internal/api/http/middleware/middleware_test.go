package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sonenae10-blip/todo/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(logger.Discard()))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c.Request.Context()))
	})

	t.Run("echoes incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", "abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))
		assert.Equal(t, "abc", w.Body.String())
	})

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, w.Header().Get("X-Request-Id"), 36)
		assert.Equal(t, w.Header().Get("X-Request-Id"), w.Body.String())
	})
}

func TestUserRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewUserRateLimiter(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))

	now = now.Add(2 * time.Minute)
	l.Sweep()
	assert.Empty(t, l.limiters)
}

func TestUserRateLimiter_Middleware(t *testing.T) {
	l := NewUserRateLimiter(0.001, 1, time.Minute)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("firebase_uid", c.GetHeader("X-User-Id"))
		c.Next()
	})
	r.Use(l.Middleware("firebase_uid"))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(uid string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-User-Id", uid)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))
	assert.Equal(t, http.StatusNoContent, do("u2"))
	assert.Equal(t, http.StatusNoContent, do(""))
	assert.Equal(t, http.StatusNoContent, do(""))
}
