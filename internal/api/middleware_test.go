package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedRouter(maxRequests int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{
		MaxRequests: maxRequests,
		Window:      time.Minute,
	})

	router.POST("/checkout", userIdentity(), rateLimitMiddleware(limiter, "checkout"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func doPost(router *gin.Engine, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUserIdentityRequired(t *testing.T) {
	router := limitedRouter(5)

	w := doPost(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	router := limitedRouter(2)

	for i := 0; i < 2; i++ {
		w := doPost(router, "user-1")
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := doPost(router, "user-1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitIsPerUser(t *testing.T) {
	router := limitedRouter(1)

	require.Equal(t, http.StatusOK, doPost(router, "user-1").Code)
	require.Equal(t, http.StatusTooManyRequests, doPost(router, "user-1").Code)

	assert.Equal(t, http.StatusOK, doPost(router, "user-2").Code,
		"another user's budget is untouched")
}

func TestRateLimitRemainingHeader(t *testing.T) {
	router := limitedRouter(3)

	w := doPost(router, "user-1")
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))

	w = doPost(router, "user-1")
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}
